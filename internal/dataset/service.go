package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// SaveAllRequest is the full-dataset payload. Every field is mandatory;
// an explicit null counts as missing.
type SaveAllRequest struct {
	StokListesi  map[string]Product  `json:"stokListesi" validate:"required"`
	SatisGecmisi []SaleRecord        `json:"satisGecmisi" validate:"required"`
	Musteriler   map[string]Customer `json:"musteriler" validate:"required"`
}

// SaveProductsRequest is the legacy product-only payload.
type SaveProductsRequest struct {
	StokListesi map[string]Product `json:"stokListesi" validate:"required"`
}

// ServiceConfig tunes the service.
type ServiceConfig struct {
	// Timeout bounds every backend call; zero disables it.
	Timeout time.Duration
}

// Service validates payloads and delegates to the configured Backend.
type Service struct {
	backend  Backend
	validate *validator.Validate
	logger   *slog.Logger
	cfg      ServiceConfig
}

// NewService constructs a Service.
func NewService(backend Backend, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:  backend,
		validate: newValidator(),
		logger:   logger,
		cfg:      cfg,
	}
}

// SaveAll replaces products, sales and customers with the payload contents.
// There is no merge: anything absent from the payload is deleted.
func (s *Service) SaveAll(ctx context.Context, payload []byte) (Stats, error) {
	var req SaveAllRequest
	if err := s.decode(payload, &req); err != nil {
		return Stats{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stats, err := s.backend.ReplaceAll(ctx,
		KeyProducts(req.StokListesi),
		req.SatisGecmisi,
		KeyCustomers(req.Musteriler),
	)
	if err != nil {
		s.logger.Error("replace dataset", slog.Any("error", err))
		return Stats{}, err
	}
	s.logger.Info("dataset replaced",
		slog.Int("products", stats.StokSayisi),
		slog.Int("sales", stats.SatisSayisi),
		slog.Int("customers", stats.MusteriSayisi),
	)
	return stats, nil
}

// ReadAll returns the current dataset.
func (s *Service) ReadAll(ctx context.Context) (Dataset, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.backend.ReadAll(ctx)
	if err != nil {
		s.logger.Error("read dataset", slog.Any("error", err))
		return Dataset{}, err
	}
	return data, nil
}

// SaveProducts replaces only the product table.
func (s *Service) SaveProducts(ctx context.Context, payload []byte) (int, error) {
	var req SaveProductsRequest
	if err := s.decode(payload, &req); err != nil {
		return 0, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	count, err := s.backend.ReplaceProducts(ctx, KeyProducts(req.StokListesi))
	if err != nil {
		s.logger.Error("replace products", slog.Any("error", err))
		return 0, err
	}
	s.logger.Info("products replaced", slog.Int("products", count))
	return count, nil
}

// ReadProducts returns the product table.
func (s *Service) ReadProducts(ctx context.Context) (map[string]Product, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	products, err := s.backend.ReadProducts(ctx)
	if err != nil {
		s.logger.Error("read products", slog.Any("error", err))
		return nil, err
	}
	return products, nil
}

func (s *Service) decode(payload []byte, target any) error {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return fmt.Errorf("%w: empty body", ErrValidation)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return fmt.Errorf("%w: %s has wrong type %s", ErrValidation, typeErr.Field, typeErr.Value)
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.validate.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			names := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				names = append(names, fe.Field())
			}
			return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(names, ", "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
