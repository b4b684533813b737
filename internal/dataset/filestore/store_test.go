package filestore

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/stoktakip/stoktakip/internal/dataset"
)

func ptr[T any](v T) *T { return &v }

func firstDataset() dataset.Dataset {
	return dataset.Dataset{
		StokListesi: map[string]dataset.Product{
			"1234567890123": {Barkod: "1234567890123", Ad: "Ekmek", Miktar: 10, AlisFiyati: 2.5, SatisFiyati: 4, Kategori: "Gıda"},
			"8690000000001": {Barkod: "8690000000001", Ad: "Süt", Miktar: 5, AlisFiyati: 12, SatisFiyati: 18, Kategori: "Gıda"},
		},
		SatisGecmisi: []dataset.SaleRecord{
			{ID: 1, Barkod: "1234567890123", Miktar: 2, SatisFiyati: 4, AlisFiyati: 2.5, Tarih: "2025-01-10T09:00:00.000Z", Toplam: 8},
		},
		Musteriler: map[string]dataset.Customer{
			"m1": {ID: "m1", Ad: "Ayşe", Telefon: "05550000000", Bakiye: -40},
		},
		Borclarim: map[string]dataset.Debt{},
	}
}

func secondDataset() dataset.Dataset {
	return dataset.Dataset{
		StokListesi: map[string]dataset.Product{
			"5000000000009": {Barkod: "5000000000009", Ad: "Çay", Miktar: 3, AlisFiyati: 50, SatisFiyati: 75, Kategori: "İçecek"},
		},
		SatisGecmisi: []dataset.SaleRecord{
			{ID: 1, Barkod: "5000000000009", Miktar: 1, SatisFiyati: 75, AlisFiyati: 50, MusteriID: ptr("m2"), Tarih: "2025-02-01", Veresiye: true, Toplam: 75},
			{ID: 2, Barkod: "5000000000009", Miktar: 1, SatisFiyati: 75, AlisFiyati: 50, Tarih: "2025-02-02", Toplam: 75},
		},
		Musteriler: map[string]dataset.Customer{
			"m2": {ID: "m2", Ad: "Mehmet", Adres: "Kadıköy", Bakiye: -75},
		},
		Borclarim: map[string]dataset.Debt{},
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func replace(t *testing.T, store *Store, d dataset.Dataset) {
	t.Helper()
	_, err := store.ReplaceAll(context.Background(), d.StokListesi, d.SatisGecmisi, d.Musteriler)
	require.NoError(t, err)
}

func TestOpenCreatesEmptyCombinedDocument(t *testing.T) {
	store := openStore(t)

	data, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, data.StokListesi)
	require.NotNil(t, data.SatisGecmisi)
	require.NotNil(t, data.Musteriler)
	require.Empty(t, data.StokListesi)
	require.FileExists(t, filepath.Join(store.Dir(), CombinedFile))
}

func TestOpenMigratesFirstGenerationLayout(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"1234567890123":{"ad":"Ekmek","miktar":10,"alisFiyati":2.5,"satisFiyati":4,"kategori":"Gıda","aciklama":""}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProductsFile), []byte(legacy), 0o644))

	store, err := Open(dir, nil)
	require.NoError(t, err)

	products, err := store.ReadProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, "1234567890123", products["1234567890123"].Barkod)
	require.Equal(t, 10, products["1234567890123"].Miktar)
}

func TestOpenRejectsCorruptLegacyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProductsFile), []byte("{not json"), 0o644))

	_, err := Open(dir, nil)
	require.ErrorIs(t, err, dataset.ErrStorageUnavailable)
}

func TestReplaceAllLeavesNoResidue(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	replace(t, store, firstDataset())
	got, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, firstDataset(), got)

	replace(t, store, secondDataset())
	got, err = store.ReadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, secondDataset(), got)
}

func TestReplaceAllIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	d := secondDataset()
	for i := range d.SatisGecmisi {
		d.SatisGecmisi[i].ID = 0
	}

	replace(t, store, d)
	first, err := store.ReadAll(ctx)
	require.NoError(t, err)

	replace(t, store, d)
	second, err := store.ReadAll(ctx)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, secondDataset(), second)
}

func TestReplaceAllReportsCounts(t *testing.T) {
	store := openStore(t)
	d := secondDataset()

	stats, err := store.ReplaceAll(context.Background(), d.StokListesi, d.SatisGecmisi, d.Musteriler)
	require.NoError(t, err)
	require.Equal(t, dataset.Stats{StokSayisi: 1, SatisSayisi: 2, MusteriSayisi: 1}, stats)
}

func TestReplaceAllFailureRetainsPreviousState(t *testing.T) {
	store := openStore(t)
	replace(t, store, firstDataset())

	broken := secondDataset()
	broken.StokListesi["5000000000009"] = dataset.Product{Barkod: "5000000000009", AlisFiyati: math.NaN()}
	_, err := store.ReplaceAll(context.Background(), broken.StokListesi, broken.SatisGecmisi, broken.Musteriler)
	require.ErrorIs(t, err, dataset.ErrPersistence)

	got, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, firstDataset(), got)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	for _, entry := range entries {
		require.False(t, strings.HasSuffix(entry.Name(), ".tmp"), "temp file left behind: %s", entry.Name())
	}
}

func TestReplaceAllKeepsDebts(t *testing.T) {
	dir := t.TempDir()
	debts := `{"b1":{"id":"b1","musteriId":"m1","tutar":40,"aciklama":"veresiye","tarih":"2025-01-10"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DebtsFile), []byte(debts), 0o644))
	store, err := Open(dir, nil)
	require.NoError(t, err)

	replace(t, store, secondDataset())

	got, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Borclarim, 1)
	require.InDelta(t, 40.0, got.Borclarim["b1"].Tutar, 0.0001)
}

func TestReplaceProductsKeepsOtherTables(t *testing.T) {
	store := openStore(t)
	replace(t, store, firstDataset())

	products := secondDataset().StokListesi
	count, err := store.ReplaceProducts(context.Background(), products)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	got, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, products, got.StokListesi)
	require.Equal(t, firstDataset().SatisGecmisi, got.SatisGecmisi)
	require.Equal(t, firstDataset().Musteriler, got.Musteriler)
}

func TestMirrorsFollowCombinedDocument(t *testing.T) {
	store := openStore(t)
	replace(t, store, firstDataset())

	raw, err := os.ReadFile(filepath.Join(store.Dir(), ProductsFile))
	require.NoError(t, err)
	var products map[string]dataset.Product
	require.NoError(t, json.Unmarshal(raw, &products))
	require.Equal(t, firstDataset().StokListesi, products)

	raw, err = os.ReadFile(filepath.Join(store.Dir(), SalesFile))
	require.NoError(t, err)
	var sales []dataset.SaleRecord
	require.NoError(t, json.Unmarshal(raw, &sales))
	require.Equal(t, firstDataset().SatisGecmisi, sales)
}

func TestReadAllReportsCorruptCombinedDocument(t *testing.T) {
	store := openStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), CombinedFile), []byte("{"), 0o644))

	_, err := store.ReadAll(context.Background())
	require.ErrorIs(t, err, dataset.ErrStorageUnavailable)
}

func TestWriterLockHonoursCancellation(t *testing.T) {
	store := openStore(t)
	store.writers <- struct{}{}
	defer store.unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	d := firstDataset()
	_, err := store.ReplaceAll(ctx, d.StokListesi, d.SatisGecmisi, d.Musteriler)
	require.ErrorIs(t, err, dataset.ErrPersistence)
}

func TestConcurrentReadsSeeWholeDatasets(t *testing.T) {
	store := openStore(t)
	replace(t, store, firstDataset())
	first, second := firstDataset(), secondDataset()

	ctx := context.Background()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 0; i < 40; i++ {
			d := first
			if i%2 == 0 {
				d = second
			}
			if _, err := store.ReplaceAll(gctx, d.StokListesi, d.SatisGecmisi, d.Musteriler); err != nil {
				return err
			}
		}
		return nil
	})
	for r := 0; r < 4; r++ {
		g.Go(func() error {
			for i := 0; i < 40; i++ {
				got, err := store.ReadAll(gctx)
				if err != nil {
					return err
				}
				if !assertOneOf(got, first, second) {
					t.Errorf("read mixed dataset: %+v", got.Stats())
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func assertOneOf(got dataset.Dataset, candidates ...dataset.Dataset) bool {
	gotRaw, _ := json.Marshal(got)
	for _, c := range candidates {
		raw, _ := json.Marshal(c)
		if string(raw) == string(gotRaw) {
			return true
		}
	}
	return false
}
