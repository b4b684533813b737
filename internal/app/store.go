package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/stoktakip/stoktakip/internal/dataset"
	"github.com/stoktakip/stoktakip/internal/dataset/filestore"
	"github.com/stoktakip/stoktakip/internal/dataset/pgstore"
	"github.com/stoktakip/stoktakip/internal/platform/db"
)

// Storage is the opened persistence backend plus a readiness check.
type Storage struct {
	Backend dataset.Backend
	Ready   func(ctx context.Context) error
}

// OpenStorage opens the backend selected by STORAGE_BACKEND. The postgres
// backend applies its schema before returning.
func OpenStorage(ctx context.Context, cfg *Config, logger *slog.Logger) (*Storage, error) {
	switch cfg.StorageBackend {
	case BackendPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ConnectTimeout: cfg.StoreTimeout})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dataset.ErrStorageUnavailable, err)
		}
		store := pgstore.New(pool, logger)
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("%w: %v", dataset.ErrStorageUnavailable, err)
		}
		logger.Info("storage ready", slog.String("backend", BackendPostgres))
		return &Storage{Backend: store, Ready: pool.Ping}, nil
	case BackendFile, "":
		store, err := filestore.Open(cfg.DataDir, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("storage ready", slog.String("backend", BackendFile), slog.String("dir", store.Dir()))
		return &Storage{
			Backend: store,
			Ready: func(context.Context) error {
				_, err := os.Stat(store.Dir())
				return err
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
