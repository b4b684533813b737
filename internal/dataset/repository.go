package dataset

import (
	"context"
	"errors"
)

var (
	// ErrValidation marks a malformed or incomplete payload.
	ErrValidation = errors.New("dataset: validation failed")
	// ErrStorageUnavailable marks a medium that cannot be read at all.
	ErrStorageUnavailable = errors.New("dataset: storage unavailable")
	// ErrPersistence marks a failed write; the previous state is retained.
	ErrPersistence = errors.New("dataset: persistence failure")
	// ErrBackupDelivery marks a snapshot that was produced but not delivered.
	ErrBackupDelivery = errors.New("dataset: backup delivery failed")
)

// Backend persists the full dataset. Implementations must make ReplaceAll
// atomic across the three synchronised tables and must never expose a read
// that mixes two different writes.
type Backend interface {
	// ReadAll returns the complete dataset with non-nil containers.
	ReadAll(ctx context.Context) (Dataset, error)
	// ReplaceAll discards products, sales and customers and stores the given ones.
	ReplaceAll(ctx context.Context, products map[string]Product, sales []SaleRecord, customers map[string]Customer) (Stats, error)
	// ReadProducts returns only the product table.
	ReadProducts(ctx context.Context) (map[string]Product, error)
	// ReplaceProducts replaces only the product table.
	ReplaceProducts(ctx context.Context, products map[string]Product) (int, error)
	Close() error
}
