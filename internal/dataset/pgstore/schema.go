package pgstore

import (
	"context"
	"fmt"
	"log/slog"
)

// Product rows carry an internal BIGSERIAL id; the application identity is
// barkod. Sale ids are written explicitly so a repeated save yields the
// same ids.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS urunler (
    id           BIGSERIAL PRIMARY KEY,
    barkod       TEXT NOT NULL UNIQUE,
    ad           TEXT NOT NULL DEFAULT '',
    miktar       BIGINT NOT NULL DEFAULT 0,
    alis_fiyati  DOUBLE PRECISION NOT NULL DEFAULT 0,
    satis_fiyati DOUBLE PRECISION NOT NULL DEFAULT 0,
    kategori     TEXT NOT NULL DEFAULT '',
    aciklama     TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS satis_gecmisi (
    id           BIGINT PRIMARY KEY,
    barkod       TEXT NOT NULL DEFAULT '',
    miktar       BIGINT NOT NULL DEFAULT 0,
    satis_fiyati DOUBLE PRECISION NOT NULL DEFAULT 0,
    alis_fiyati  DOUBLE PRECISION NOT NULL DEFAULT 0,
    musteri_id   TEXT,
    tarih        TEXT NOT NULL DEFAULT '',
    veresiye     BOOLEAN NOT NULL DEFAULT FALSE,
    toplam       DOUBLE PRECISION NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS musteriler (
    id      TEXT PRIMARY KEY,
    ad      TEXT NOT NULL DEFAULT '',
    telefon TEXT NOT NULL DEFAULT '',
    adres   TEXT NOT NULL DEFAULT '',
    bakiye  DOUBLE PRECISION NOT NULL DEFAULT 0
)`,
	`CREATE TABLE IF NOT EXISTS borclar (
    id         TEXT PRIMARY KEY,
    musteri_id TEXT NOT NULL DEFAULT '',
    tutar      DOUBLE PRECISION NOT NULL DEFAULT 0,
    aciklama   TEXT NOT NULL DEFAULT '',
    tarih      TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS satis_gecmisi_barkod_idx ON satis_gecmisi (barkod)`,
	`CREATE INDEX IF NOT EXISTS borclar_musteri_idx ON borclar (musteri_id)`,
}

// Migrate creates the four tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgstore: migrate step %d: %w", i+1, err)
		}
	}
	s.logger.Info("schema ready", slog.Int("statements", len(schema)))
	return nil
}
