package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
)

const (
	// MessageNotFound is returned for unmatched routes.
	MessageNotFound = "Endpoint bulunamadı"
	// MessageServerError is returned when a handler panics.
	MessageServerError = "Sunucu hatası oluştu"
)

// NotFound answers unmatched routes and methods with the JSON 404 envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Fail(w, http.StatusNotFound, MessageNotFound, nil)
}

// Recoverer turns handler panics into the JSON 500 envelope so a single
// request never takes the process down.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				if logger != nil {
					logger.Error("panic recovered", slog.String("path", r.URL.Path), slog.Any("error", err))
				}
				Fail(w, http.StatusInternalServerError, MessageServerError, err)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
