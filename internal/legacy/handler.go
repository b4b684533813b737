// Package legacy keeps the product-only endpoints used by older desktop
// clients. It holds no state; every call goes through the same dataset
// service, so both protocols observe one store.
package legacy

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stoktakip/stoktakip/internal/dataset"
	"github.com/stoktakip/stoktakip/internal/platform/httpx"
)

const (
	msgReadOK      = "Ürünler başarıyla getirildi"
	msgReadFailed  = "Ürünler okunurken hata oluştu"
	msgSaveOK      = "Ürünler başarıyla kaydedildi"
	msgSaveFailed  = "Ürünler kaydedilirken hata oluştu"
	msgSaveInvalid = "Geçersiz veri formatı. stokListesi objesi bekleniyor."
)

// ProductService is the subset of dataset.Service the shim needs.
type ProductService interface {
	ReadProducts(ctx context.Context) (map[string]dataset.Product, error)
	SaveProducts(ctx context.Context, payload []byte) (int, error)
}

// Handler serves /urunler.
type Handler struct {
	logger       *slog.Logger
	service      ProductService
	maxBodyBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service ProductService, maxBodyBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, maxBodyBytes: maxBodyBytes}
}

// MountRoutes attaches the legacy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.save)
}

type listResponse struct {
	Success bool                       `json:"success"`
	Data    map[string]dataset.Product `json:"data"`
	Message string                     `json:"message"`
}

type saveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ReadProducts(r.Context())
	if err != nil {
		httpx.Fail(w, http.StatusInternalServerError, msgReadFailed, err)
		return
	}
	if products == nil {
		products = map[string]dataset.Product{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Data: products, Message: msgReadOK})
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	payload, err := httpx.ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		dataset.FailWrite(w, err, msgSaveInvalid, msgSaveFailed)
		return
	}
	count, err := h.service.SaveProducts(r.Context(), payload)
	if err != nil {
		h.logger.Warn("legacy product save rejected", slog.Any("error", err))
		dataset.FailWrite(w, err, msgSaveInvalid, msgSaveFailed)
		return
	}
	httpx.JSON(w, http.StatusOK, saveResponse{Success: true, Message: msgSaveOK, Count: count})
}
