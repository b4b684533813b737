package app

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stoktakip/stoktakip/internal/dataset"
	"github.com/stoktakip/stoktakip/internal/legacy"
	"github.com/stoktakip/stoktakip/internal/observability"
	"github.com/stoktakip/stoktakip/internal/platform/httpx"
	"github.com/stoktakip/stoktakip/jobs"
	"github.com/stoktakip/stoktakip/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	// Ready reports whether the storage medium is reachable.
	Ready func(ctx context.Context) error

	DatasetHandler *dataset.Handler
	LegacyHandler  *legacy.Handler
	JobHandler     *jobs.Handler
	TriggerHandler *jobs.TriggerHandler
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(httpx.NotFound)
	r.MethodNotAllowed(httpx.NotFound)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if params.Config != nil {
			resp.Storage = params.Config.StorageBackend
		}
		if params.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Ready(ctx); err != nil {
				resp.Status = "degraded"
				resp.Error = err.Error()
				httpx.JSON(w, http.StatusServiceUnavailable, resp)
				return
			}
		}
		httpx.JSON(w, http.StatusOK, resp)
	})

	r.Get("/", indexHandler(params.Config, logger))

	r.Route("/api", func(r chi.Router) {
		if params.DatasetHandler != nil {
			params.DatasetHandler.MountRoutes(r)
		}
		if params.TriggerHandler != nil {
			params.TriggerHandler.MountRoutes(r)
		}
	})
	if params.LegacyHandler != nil {
		r.Route("/urunler", params.LegacyHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	registerStaticTypes(logger)
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// indexHandler serves INDEX_FILE when configured and the embedded page
// otherwise.
func indexHandler(cfg *Config, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg != nil && cfg.IndexFile != "" {
			http.ServeFile(w, r, cfg.IndexFile)
			return
		}
		page, err := web.Static.ReadFile("static/index.html")
		if err != nil {
			logger.Error("read embedded index", slog.Any("error", err))
			httpx.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(page)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
