// Command migrate copies a file-store dataset into PostgreSQL.
//
//	DATA_DIR=veriler PG_DSN=postgres://... go run ./scripts/migrate
package main

import (
	"context"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stoktakip/stoktakip/internal/app"
	"github.com/stoktakip/stoktakip/internal/dataset"
	"github.com/stoktakip/stoktakip/internal/dataset/filestore"
	"github.com/stoktakip/stoktakip/internal/dataset/pgstore"
	"github.com/stoktakip/stoktakip/internal/platform/db"
)

func main() {
	dataDir := getenv("DATA_DIR", "veriler")
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		log.Fatal("PG_DSN must be set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger := app.NewLogger(&app.Config{LogFormat: getenv("LOG_FORMAT", "pretty"), LogLevel: "info"})

	var (
		source *filestore.Store
		target *pgstore.Store
		data   dataset.Dataset
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if source, err = filestore.Open(dataDir, logger); err != nil {
			return err
		}
		data, err = source.ReadAll(gctx)
		return err
	})
	g.Go(func() error {
		pool, err := db.New(gctx, dsn, db.Options{ConnectTimeout: 10 * time.Second})
		if err != nil {
			return err
		}
		target = pgstore.New(pool, logger)
		return target.Migrate(gctx)
	})
	if err := g.Wait(); err != nil {
		if target != nil {
			_ = target.Close()
		}
		log.Fatalf("prepare: %v", err)
	}
	defer target.Close()

	log.Printf("→ copying %d products, %d sales, %d customers from %s", len(data.StokListesi), len(data.SatisGecmisi), len(data.Musteriler), dataDir)
	stats, debts, err := target.Import(ctx, data)
	if err != nil {
		log.Fatalf("import dataset: %v", err)
	}

	check, err := target.ReadAll(ctx)
	if err != nil {
		log.Fatalf("verify: %v", err)
	}
	if check.Stats() != stats || len(check.Borclarim) != debts {
		log.Fatalf("verify: wrote %+v and %d debts, read back %+v and %d debts", stats, debts, check.Stats(), len(check.Borclarim))
	}
	log.Printf("✓ done: %d products, %d sales, %d customers, %d debts", stats.StokSayisi, stats.SatisSayisi, stats.MusteriSayisi, debts)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
