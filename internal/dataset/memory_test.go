package dataset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

var errBackendDown = errors.New("disk gone")

// memoryBackend is an in-process Backend for service and handler tests.
type memoryBackend struct {
	mu       sync.Mutex
	data     Dataset
	writeErr error
	readErr  error
	writes   int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: Empty()}
}

func (m *memoryBackend) ReadAll(context.Context) (Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return Dataset{}, m.readErr
	}
	return m.data, nil
}

func (m *memoryBackend) ReplaceAll(_ context.Context, products map[string]Product, sales []SaleRecord, customers map[string]Customer) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return Stats{}, m.writeErr
	}
	m.writes++
	next := Dataset{StokListesi: products, SatisGecmisi: NumberSales(sales), Musteriler: customers, Borclarim: m.data.Borclarim}
	next.Normalize()
	m.data = next
	return next.Stats(), nil
}

func (m *memoryBackend) ReadProducts(ctx context.Context) (map[string]Product, error) {
	data, err := m.ReadAll(ctx)
	return data.StokListesi, err
}

func (m *memoryBackend) ReplaceProducts(_ context.Context, products map[string]Product) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes++
	m.data.StokListesi = products
	m.data.Normalize()
	return len(products), nil
}

func (m *memoryBackend) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
