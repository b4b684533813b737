// Package pgstore keeps the dataset in PostgreSQL.
//
// Every replace runs in one transaction guarded by an advisory lock, and
// every read runs in one repeatable-read snapshot, so readers see either the
// previous or the next dataset and never a mixture.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stoktakip/stoktakip/internal/dataset"
	"github.com/stoktakip/stoktakip/internal/platform/db"
)

// replaceLockKey serialises writers across processes sharing the database.
const replaceLockKey int64 = 0x53544f4b

var (
	productColumns  = []string{"barkod", "ad", "miktar", "alis_fiyati", "satis_fiyati", "kategori", "aciklama"}
	saleColumns     = []string{"id", "barkod", "miktar", "satis_fiyati", "alis_fiyati", "musteri_id", "tarih", "veresiye", "toplam"}
	customerColumns = []string{"id", "ad", "telefon", "adres", "bakiye"}
	debtColumns     = []string{"id", "musteri_id", "tutar", "aciklama", "tarih"}
)

// Store implements dataset.Backend on PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ dataset.Backend = (*Store)(nil)

// New constructs a Store over an existing pool. The caller owns the pool
// unless Close is called.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger.With(slog.String("store", "postgres"))}
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ReadAll loads the four tables inside one snapshot.
func (s *Store) ReadAll(ctx context.Context) (dataset.Dataset, error) {
	var data dataset.Dataset
	err := db.WithSnapshot(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		if data.StokListesi, err = selectProducts(ctx, tx); err != nil {
			return err
		}
		if data.SatisGecmisi, err = selectSales(ctx, tx); err != nil {
			return err
		}
		if data.Musteriler, err = selectCustomers(ctx, tx); err != nil {
			return err
		}
		if data.Borclarim, err = selectDebts(ctx, tx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return dataset.Dataset{}, wrap(dataset.ErrStorageUnavailable, "read dataset", err)
	}
	data.Normalize()
	return data, nil
}

// ReadProducts loads only the product table.
func (s *Store) ReadProducts(ctx context.Context) (map[string]dataset.Product, error) {
	var products map[string]dataset.Product
	err := db.WithSnapshot(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		products, err = selectProducts(ctx, tx)
		return err
	})
	if err != nil {
		return nil, wrap(dataset.ErrStorageUnavailable, "read products", err)
	}
	return products, nil
}

// ReplaceAll deletes and repopulates products, sales and customers in one
// transaction. Debts are untouched.
func (s *Store) ReplaceAll(ctx context.Context, products map[string]dataset.Product, sales []dataset.SaleRecord, customers map[string]dataset.Customer) (dataset.Stats, error) {
	var stats dataset.Stats
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockReplace(ctx, tx); err != nil {
			return err
		}
		var err error
		if stats.StokSayisi, err = replaceProducts(ctx, tx, products); err != nil {
			return err
		}
		if stats.SatisSayisi, err = replaceSales(ctx, tx, dataset.NumberSales(sales)); err != nil {
			return err
		}
		if stats.MusteriSayisi, err = replaceCustomers(ctx, tx, customers); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return dataset.Stats{}, wrap(dataset.ErrPersistence, "replace dataset", err)
	}
	return stats, nil
}

// ReplaceProducts deletes and repopulates only the product table.
func (s *Store) ReplaceProducts(ctx context.Context, products map[string]dataset.Product) (int, error) {
	var count int
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockReplace(ctx, tx); err != nil {
			return err
		}
		var err error
		count, err = replaceProducts(ctx, tx, products)
		return err
	})
	if err != nil {
		return 0, wrap(dataset.ErrPersistence, "replace products", err)
	}
	return count, nil
}

// Import replaces all four tables, debts included, in one transaction. The
// sync endpoints never write debts; this exists for copying an existing
// store into the database.
func (s *Store) Import(ctx context.Context, data dataset.Dataset) (dataset.Stats, int, error) {
	var (
		stats dataset.Stats
		debts int
	)
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockReplace(ctx, tx); err != nil {
			return err
		}
		var err error
		if stats.StokSayisi, err = replaceProducts(ctx, tx, data.StokListesi); err != nil {
			return err
		}
		if stats.SatisSayisi, err = replaceSales(ctx, tx, dataset.NumberSales(data.SatisGecmisi)); err != nil {
			return err
		}
		if stats.MusteriSayisi, err = replaceCustomers(ctx, tx, data.Musteriler); err != nil {
			return err
		}
		debts, err = replaceDebts(ctx, tx, data.Borclarim)
		return err
	})
	if err != nil {
		return dataset.Stats{}, 0, wrap(dataset.ErrPersistence, "import dataset", err)
	}
	return stats, debts, nil
}

func replaceDebts(ctx context.Context, tx pgx.Tx, debts map[string]dataset.Debt) (int, error) {
	if _, err := tx.Exec(ctx, "DELETE FROM borclar"); err != nil {
		return 0, fmt.Errorf("clear borclar: %w", err)
	}
	rows := make([][]any, 0, len(debts))
	for key, d := range debts {
		rows = append(rows, []any{key, d.MusteriID, d.Tutar, d.Aciklama, d.Tarih})
	}
	return copyRows(ctx, tx, "borclar", debtColumns, rows)
}

func lockReplace(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", replaceLockKey); err != nil {
		return fmt.Errorf("acquire replace lock: %w", err)
	}
	return nil
}

// DELETE rather than TRUNCATE: TRUNCATE is not MVCC-safe, so a snapshot
// reader that started earlier would see the tables empty after commit.
func replaceProducts(ctx context.Context, tx pgx.Tx, products map[string]dataset.Product) (int, error) {
	if _, err := tx.Exec(ctx, "DELETE FROM urunler"); err != nil {
		return 0, fmt.Errorf("clear urunler: %w", err)
	}
	keys := make([]string, 0, len(products))
	for key := range products {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	rows := make([][]any, 0, len(keys))
	for _, key := range keys {
		p := products[key]
		rows = append(rows, []any{key, p.Ad, int64(p.Miktar), p.AlisFiyati, p.SatisFiyati, p.Kategori, p.Aciklama})
	}
	return copyRows(ctx, tx, "urunler", productColumns, rows)
}

func replaceSales(ctx context.Context, tx pgx.Tx, sales []dataset.SaleRecord) (int, error) {
	if _, err := tx.Exec(ctx, "DELETE FROM satis_gecmisi"); err != nil {
		return 0, fmt.Errorf("clear satis_gecmisi: %w", err)
	}
	rows := make([][]any, 0, len(sales))
	for _, r := range sales {
		rows = append(rows, []any{r.ID, r.Barkod, int64(r.Miktar), r.SatisFiyati, r.AlisFiyati, r.MusteriID, r.Tarih, r.Veresiye, r.Toplam})
	}
	return copyRows(ctx, tx, "satis_gecmisi", saleColumns, rows)
}

func replaceCustomers(ctx context.Context, tx pgx.Tx, customers map[string]dataset.Customer) (int, error) {
	if _, err := tx.Exec(ctx, "DELETE FROM musteriler"); err != nil {
		return 0, fmt.Errorf("clear musteriler: %w", err)
	}
	rows := make([][]any, 0, len(customers))
	for key, c := range customers {
		rows = append(rows, []any{key, c.Ad, c.Telefon, c.Adres, c.Bakiye})
	}
	return copyRows(ctx, tx, "musteriler", customerColumns, rows)
}

func copyRows(ctx context.Context, tx pgx.Tx, table string, columns []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return int(n), nil
}

func selectProducts(ctx context.Context, tx pgx.Tx) (map[string]dataset.Product, error) {
	rows, err := tx.Query(ctx, `SELECT barkod, ad, miktar, alis_fiyati, satis_fiyati, kategori, aciklama FROM urunler ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select urunler: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dataset.Product, error) {
		var p dataset.Product
		var miktar int64
		err := row.Scan(&p.Barkod, &p.Ad, &miktar, &p.AlisFiyati, &p.SatisFiyati, &p.Kategori, &p.Aciklama)
		p.Miktar = int(miktar)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan urunler: %w", err)
	}
	products := make(map[string]dataset.Product, len(list))
	for _, p := range list {
		products[p.Barkod] = p
	}
	return products, nil
}

func selectSales(ctx context.Context, tx pgx.Tx) ([]dataset.SaleRecord, error) {
	rows, err := tx.Query(ctx, `SELECT id, barkod, miktar, satis_fiyati, alis_fiyati, musteri_id, tarih, veresiye, toplam FROM satis_gecmisi ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select satis_gecmisi: %w", err)
	}
	sales, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dataset.SaleRecord, error) {
		var r dataset.SaleRecord
		var miktar int64
		err := row.Scan(&r.ID, &r.Barkod, &miktar, &r.SatisFiyati, &r.AlisFiyati, &r.MusteriID, &r.Tarih, &r.Veresiye, &r.Toplam)
		r.Miktar = int(miktar)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan satis_gecmisi: %w", err)
	}
	return sales, nil
}

func selectCustomers(ctx context.Context, tx pgx.Tx) (map[string]dataset.Customer, error) {
	rows, err := tx.Query(ctx, `SELECT id, ad, telefon, adres, bakiye FROM musteriler ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select musteriler: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dataset.Customer, error) {
		var c dataset.Customer
		err := row.Scan(&c.ID, &c.Ad, &c.Telefon, &c.Adres, &c.Bakiye)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan musteriler: %w", err)
	}
	customers := make(map[string]dataset.Customer, len(list))
	for _, c := range list {
		customers[c.ID] = c
	}
	return customers, nil
}

func selectDebts(ctx context.Context, tx pgx.Tx) (map[string]dataset.Debt, error) {
	rows, err := tx.Query(ctx, `SELECT id, musteri_id, tutar, aciklama, tarih FROM borclar ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select borclar: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (dataset.Debt, error) {
		var d dataset.Debt
		err := row.Scan(&d.ID, &d.MusteriID, &d.Tutar, &d.Aciklama, &d.Tarih)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan borclar: %w", err)
	}
	debts := make(map[string]dataset.Debt, len(list))
	for _, d := range list {
		debts[d.ID] = d
	}
	return debts, nil
}

func wrap(kind error, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s: %s (sqlstate %s)", kind, op, pgErr.Message, pgErr.Code)
	}
	return fmt.Errorf("%w: %s: %v", kind, op, err)
}
