package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/stoktakip/stoktakip/internal/dataset"
	"github.com/stoktakip/stoktakip/internal/legacy"
	"github.com/stoktakip/stoktakip/internal/observability"
	"github.com/stoktakip/stoktakip/jobs"
	_ "github.com/stoktakip/stoktakip/testing"
)

type RouterSuite struct {
	suite.Suite
	cfg     *Config
	ready   error
	handler http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.cfg = &Config{
		StorageBackend:  BackendFile,
		DataDir:         s.T().TempDir(),
		AppMaxBodyBytes: 1 << 20,
		AppRateLimit:    1000,
	}
	s.ready = nil
	storage, err := OpenStorage(context.Background(), s.cfg, logger)
	s.Require().NoError(err)
	svc := dataset.NewService(storage.Backend, logger, dataset.ServiceConfig{Timeout: s.cfg.StoreTimeout})

	s.handler = NewRouter(RouterParams{
		Logger:  logger,
		Config:  s.cfg,
		Metrics: observability.NewMetrics(),
		Ready: func(ctx context.Context) error {
			if s.ready != nil {
				return s.ready
			}
			return storage.Ready(ctx)
		},
		DatasetHandler: dataset.NewHandler(logger, svc, s.cfg.AppMaxBodyBytes),
		LegacyHandler:  legacy.NewHandler(logger, svc, s.cfg.AppMaxBodyBytes),
		JobHandler:     jobs.NewHandler(nil, nil, logger),
		TriggerHandler: jobs.NewTriggerHandler(nil, logger),
	})
}

func (s *RouterSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func (s *RouterSuite) TestUnknownRouteReturnsJSON404() {
	rec := s.do(http.MethodGet, "/api/yok", "")
	s.Equal(http.StatusNotFound, rec.Code)
	body := s.decode(rec)
	s.Equal(false, body["success"])
	s.Equal("Endpoint bulunamadı", body["message"])
}

func (s *RouterSuite) TestWrongMethodReturnsJSON404() {
	rec := s.do(http.MethodDelete, "/api/tum-veriler", "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("Endpoint bulunamadı", s.decode(rec)["message"])
}

func (s *RouterSuite) TestSyncRoundTripThroughMiddleware() {
	payload := `{"stokListesi":{"1":{"ad":"Ekmek"}},"satisGecmisi":[],"musteriler":{}}`
	rec := s.do(http.MethodPost, "/api/tum-veriler", payload)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("DENY", rec.Header().Get("X-Frame-Options"))
	s.NotEmpty(rec.Header().Get("X-Content-Type-Options"))

	rec = s.do(http.MethodGet, "/urunler", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(s.decode(rec)["data"], "1")
}

func (s *RouterSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("file", s.decode(rec)["storage"])

	s.ready = errors.New("data dir missing")
	rec = s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal("degraded", s.decode(rec)["status"])
}

func (s *RouterSuite) TestIndexAndStatic() {
	rec := s.do(http.MethodGet, "/", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "<title>Stok Takip</title>")

	rec = s.do(http.MethodGet, "/static/app.css", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("public, max-age=3600", rec.Header().Get("Cache-Control"))
}

func (s *RouterSuite) TestIndexFileOverride() {
	path := filepath.Join(s.T().TempDir(), "index.html")
	s.Require().NoError(os.WriteFile(path, []byte("<html>masaüstü</html>"), 0o644))
	s.cfg.IndexFile = path

	rec := s.do(http.MethodGet, "/", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "masaüstü")
}

func (s *RouterSuite) TestOpsEndpoints() {
	s.do(http.MethodGet, "/healthz", "")
	rec := s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `stoktakip_http_requests_total{code="200",route="/healthz"}`)

	rec = s.do(http.MethodGet, "/jobs/health", "")
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/yedek", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func TestPanicsBecomeJSON500(t *testing.T) {
	r := NewRouter(RouterParams{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	mux, ok := r.(*chi.Mux)
	require.True(t, ok)
	mux.Get("/panik", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panik", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sunucu hatası oluştu")
}

func TestRequestsAreLoggedOnceThroughSlog(t *testing.T) {
	var stdlog, structured bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&stdlog)
	t.Cleanup(func() { log.SetOutput(prev) })

	logger := slog.New(slog.NewTextHandler(&structured, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewRouter(RouterParams{Logger: logger})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, stdlog.String())
	assert.Equal(t, 1, strings.Count(structured.String(), "msg=request"))
	assert.Contains(t, structured.String(), "path=/healthz")
}
