package dataset

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stoktakip/stoktakip/internal/platform/httpx"
)

const (
	msgReadAllOK      = "Tüm veriler başarıyla getirildi"
	msgReadAllFailed  = "Veriler okunurken hata oluştu"
	msgSaveAllOK      = "Tüm veriler başarıyla kaydedildi"
	msgSaveAllFailed  = "Veriler kaydedilirken hata oluştu"
	msgSaveAllInvalid = "Geçersiz veri formatı. stokListesi, satisGecmisi ve musteriler bekleniyor."
	msgBodyTooLarge   = "İstek gövdesi çok büyük"
)

// Handler serves the full-dataset synchronization endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	maxBodyBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, maxBodyBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, maxBodyBytes: maxBodyBytes}
}

// MountRoutes attaches the dataset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/tum-veriler", h.readAll)
	r.Post("/tum-veriler", h.saveAll)
}

type readAllResponse struct {
	Success bool    `json:"success"`
	Data    Dataset `json:"data"`
	Message string  `json:"message"`
}

type saveAllResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stats   Stats  `json:"stats"`
}

func (h *Handler) readAll(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ReadAll(r.Context())
	if err != nil {
		httpx.Fail(w, http.StatusInternalServerError, msgReadAllFailed, err)
		return
	}
	httpx.JSON(w, http.StatusOK, readAllResponse{Success: true, Data: data, Message: msgReadAllOK})
}

func (h *Handler) saveAll(w http.ResponseWriter, r *http.Request) {
	payload, err := httpx.ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		FailWrite(w, err, msgSaveAllInvalid, msgSaveAllFailed)
		return
	}
	stats, err := h.service.SaveAll(r.Context(), payload)
	if err != nil {
		FailWrite(w, err, msgSaveAllInvalid, msgSaveAllFailed)
		return
	}
	httpx.JSON(w, http.StatusOK, saveAllResponse{Success: true, Message: msgSaveAllOK, Stats: stats})
}

// FailWrite maps a save error to its status: validation problems are the
// caller's fault, anything else is a persistence failure.
func FailWrite(w http.ResponseWriter, err error, invalidMsg, failedMsg string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		httpx.Fail(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge, err)
	case errors.Is(err, ErrValidation):
		httpx.Fail(w, http.StatusBadRequest, invalidMsg, err)
	default:
		httpx.Fail(w, http.StatusInternalServerError, failedMsg, err)
	}
}
