// Package httpx provides the JSON envelope shared by every endpoint.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
)

// Failure is the error envelope returned to the desktop client.
type Failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Fail sends the error envelope. err may be nil.
func Fail(w http.ResponseWriter, status int, message string, err error) {
	body := Failure{Success: false, Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	JSON(w, status, body)
}

// ReadBody reads the request body, refusing bodies larger than limit bytes.
// The returned error wraps *http.MaxBytesError when the limit is hit.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body := r.Body
	if limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	defer body.Close()
	return io.ReadAll(body)
}
