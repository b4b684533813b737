// Package filestore keeps the dataset as JSON documents in a data directory.
//
// The combined document (tum-veriler.json) is the single source of truth:
// it is published with one atomic rename, so a reader always sees one whole
// dataset. The per-table files are mirrors kept for older tooling and for
// bootstrapping from the first-generation layout, which only had stok.json.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stoktakip/stoktakip/internal/dataset"
)

const (
	CombinedFile  = "tum-veriler.json"
	ProductsFile  = "stok.json"
	SalesFile     = "satis-gecmisi.json"
	CustomersFile = "musteriler.json"
	DebtsFile     = "borclar.json"
)

// Store implements dataset.Backend on the local filesystem.
type Store struct {
	dir    string
	logger *slog.Logger
	// writers holds one token; readers never take it.
	writers chan struct{}
}

var _ dataset.Backend = (*Store)(nil)

// Open prepares dir and makes sure a combined document exists.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("%w: %v", dataset.ErrStorageUnavailable, err)
	}
	s := &Store{
		dir:     dir,
		logger:  logger.With(slog.String("store", "file"), slog.String("dir", dir)),
		writers: make(chan struct{}, 1),
	}
	if err := s.bootstrap(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Close is a no-op; the store holds no open handles.
func (s *Store) Close() error { return nil }

// ReadAll reads the combined document.
func (s *Store) ReadAll(ctx context.Context) (dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return dataset.Dataset{}, fmt.Errorf("%w: %v", dataset.ErrStorageUnavailable, err)
	}
	return s.readCombined()
}

// ReadProducts reads the product table out of the combined document.
func (s *Store) ReadProducts(ctx context.Context) (map[string]dataset.Product, error) {
	data, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return data.StokListesi, nil
}

// ReplaceAll swaps products, sales and customers in one rename. Debts are
// carried over from the current state.
func (s *Store) ReplaceAll(ctx context.Context, products map[string]dataset.Product, sales []dataset.SaleRecord, customers map[string]dataset.Customer) (dataset.Stats, error) {
	if err := s.lock(ctx); err != nil {
		return dataset.Stats{}, err
	}
	defer s.unlock()

	next := dataset.Dataset{
		StokListesi:  products,
		SatisGecmisi: dataset.NumberSales(sales),
		Musteriler:   customers,
		Borclarim:    s.currentDebts(),
	}
	next.Normalize()

	if err := s.commit(ctx, next, ProductsFile, SalesFile, CustomersFile); err != nil {
		return dataset.Stats{}, err
	}
	return next.Stats(), nil
}

// ReplaceProducts swaps only the product table, keeping everything else.
func (s *Store) ReplaceProducts(ctx context.Context, products map[string]dataset.Product) (int, error) {
	if err := s.lock(ctx); err != nil {
		return 0, err
	}
	defer s.unlock()

	current, err := s.readCombined()
	if err != nil {
		return 0, fmt.Errorf("%w: load current dataset: %v", dataset.ErrPersistence, err)
	}
	current.StokListesi = products
	current.Normalize()

	if err := s.commit(ctx, current, ProductsFile); err != nil {
		return 0, err
	}
	return len(current.StokListesi), nil
}

func (s *Store) lock(ctx context.Context) error {
	select {
	case s.writers <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for writer lock: %v", dataset.ErrPersistence, ctx.Err())
	}
}

func (s *Store) unlock() {
	<-s.writers
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) readCombined() (dataset.Dataset, error) {
	var data dataset.Dataset
	if err := readJSON(s.path(CombinedFile), &data); err != nil {
		return dataset.Dataset{}, fmt.Errorf("%w: %v", dataset.ErrStorageUnavailable, err)
	}
	data.Normalize()
	return data, nil
}

// currentDebts prefers the combined document and falls back to the mirror,
// so a damaged combined file does not make the store unwritable.
func (s *Store) currentDebts() map[string]dataset.Debt {
	current, err := s.readCombined()
	if err == nil {
		return current.Borclarim
	}
	s.logger.Warn("combined document unreadable, using debt mirror", slog.Any("error", err))
	var debts map[string]dataset.Debt
	if err := readJSON(s.path(DebtsFile), &debts); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("debt mirror unreadable", slog.Any("error", err))
	}
	return debts
}

// commit stages every file first; nothing is visible until the combined
// document is renamed. Mirrors follow and only log on failure.
func (s *Store) commit(ctx context.Context, data dataset.Dataset, mirrors ...string) error {
	combinedTmp, err := stageJSON(s.dir, CombinedFile, data)
	if err != nil {
		return fmt.Errorf("%w: stage %s: %v", dataset.ErrPersistence, CombinedFile, err)
	}
	staged := make(map[string]string, len(mirrors))
	discard := func() {
		_ = os.Remove(combinedTmp)
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}
	for _, name := range mirrors {
		tmp, err := stageJSON(s.dir, name, mirrorValue(data, name))
		if err != nil {
			discard()
			return fmt.Errorf("%w: stage %s: %v", dataset.ErrPersistence, name, err)
		}
		staged[name] = tmp
	}
	if err := ctx.Err(); err != nil {
		discard()
		return fmt.Errorf("%w: %v", dataset.ErrPersistence, err)
	}

	if err := os.Rename(combinedTmp, s.path(CombinedFile)); err != nil {
		discard()
		return fmt.Errorf("%w: publish %s: %v", dataset.ErrPersistence, CombinedFile, err)
	}
	for _, name := range mirrors {
		if err := os.Rename(staged[name], s.path(name)); err != nil {
			_ = os.Remove(staged[name])
			s.logger.Warn("mirror not updated", slog.String("file", name), slog.Any("error", err))
		}
	}
	syncDir(s.dir)
	return nil
}

// bootstrap builds the combined document from whatever per-table files
// exist when it is missing.
func (s *Store) bootstrap() error {
	_, err := os.Stat(s.path(CombinedFile))
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %v", dataset.ErrStorageUnavailable, CombinedFile, err)
	}

	data := dataset.Empty()
	found := []string{}
	load := func(name string, target any) error {
		err := readJSON(s.path(name), target)
		switch {
		case err == nil:
			found = append(found, name)
			return nil
		case errors.Is(err, fs.ErrNotExist):
			return nil
		default:
			return fmt.Errorf("%w: %v", dataset.ErrStorageUnavailable, err)
		}
	}
	if err := load(ProductsFile, &data.StokListesi); err != nil {
		return err
	}
	if err := load(SalesFile, &data.SatisGecmisi); err != nil {
		return err
	}
	if err := load(CustomersFile, &data.Musteriler); err != nil {
		return err
	}
	if err := load(DebtsFile, &data.Borclarim); err != nil {
		return err
	}
	data.Normalize()
	data.StokListesi = dataset.KeyProducts(data.StokListesi)
	data.Musteriler = dataset.KeyCustomers(data.Musteriler)

	if err := s.commit(context.Background(), data, ProductsFile, SalesFile, CustomersFile); err != nil {
		return err
	}
	s.logger.Info("combined document created", slog.Any("migrated_from", found), slog.Int("products", len(data.StokListesi)))
	return nil
}

func mirrorValue(data dataset.Dataset, name string) any {
	switch name {
	case ProductsFile:
		return data.StokListesi
	case SalesFile:
		return data.SatisGecmisi
	case CustomersFile:
		return data.Musteriler
	case DebtsFile:
		return data.Borclarim
	default:
		return nil
	}
}
