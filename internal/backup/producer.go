// Package backup produces the daily dataset snapshot and delivers it by
// e-mail. Only the latest artifact is kept on disk.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/stoktakip/stoktakip/internal/dataset"
	"github.com/stoktakip/stoktakip/internal/dataset/filestore"
)

// LatestFile is the name of the single on-disk artifact.
const LatestFile = "son-yedek.json"

// Source is the read side of a dataset.Backend.
type Source interface {
	ReadAll(ctx context.Context) (dataset.Dataset, error)
}

// Snapshot is an encoded, self-describing copy of one dataset state.
type Snapshot struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Filename  string
	Stats     dataset.Stats
	Data      []byte
	// Report is an .xlsx rendering of the same state; nil when it could
	// not be built. Data alone is the restorable backup.
	ReportName string
	Report     []byte
}

type envelope struct {
	Kimlik       string                      `json:"kimlik"`
	Olusturulma  string                      `json:"olusturulma"`
	StokListesi  map[string]dataset.Product  `json:"stokListesi"`
	SatisGecmisi []dataset.SaleRecord        `json:"satisGecmisi"`
	Musteriler   map[string]dataset.Customer `json:"musteriler"`
	Borclarim    map[string]dataset.Debt     `json:"borclarim"`
}

// Config controls where snapshots go.
type Config struct {
	// Dir receives son-yedek.json; empty disables the artifact.
	Dir string
	// Recipient receives the e-mail; empty disables delivery.
	Recipient string
	// Location decides the calendar day used in the filename.
	Location *time.Location
	// Observe, when set, sees every snapshot Run produces.
	Observe func(Snapshot)
}

// Producer builds and ships snapshots.
type Producer struct {
	source Source
	mailer Mailer
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewProducer constructs a Producer. mailer may be nil when delivery is off.
func NewProducer(source Source, mailer Mailer, logger *slog.Logger, cfg Config) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Producer{
		source: source,
		mailer: mailer,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "backup")),
		now:    time.Now,
	}
}

// ProduceSnapshot reads one consistent dataset and encodes it.
func (p *Producer) ProduceSnapshot(ctx context.Context) (Snapshot, error) {
	data, err := p.source.ReadAll(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("backup: read dataset: %w", err)
	}
	data.Normalize()

	id := uuid.New()
	created := p.now().In(p.cfg.Location)
	raw, err := json.MarshalIndent(envelope{
		Kimlik:       id.String(),
		Olusturulma:  created.Format(time.RFC3339),
		StokListesi:  data.StokListesi,
		SatisGecmisi: data.SatisGecmisi,
		Musteriler:   data.Musteriler,
		Borclarim:    data.Borclarim,
	}, "", "  ")
	if err != nil {
		return Snapshot{}, fmt.Errorf("backup: encode snapshot: %w", err)
	}

	day := created.Format("2006-01-02")
	snap := Snapshot{
		ID:        id,
		CreatedAt: created,
		Filename:  fmt.Sprintf("yedek-%s.json", day),
		Stats:     data.Stats(),
		Data:      raw,
	}
	report, err := encodeWorkbook(data)
	if err != nil {
		p.logger.Warn("spreadsheet report skipped", slog.Any("error", err))
		return snap, nil
	}
	snap.ReportName = fmt.Sprintf("rapor-%s.xlsx", day)
	snap.Report = report
	return snap, nil
}

// Run produces a snapshot, stores the latest artifact and mails it. Every
// failure is logged here; the joined error is returned for metrics only and
// callers are expected not to retry.
func (p *Producer) Run(ctx context.Context) error {
	snap, err := p.ProduceSnapshot(ctx)
	if err != nil {
		p.logger.Error("snapshot failed", slog.Any("error", err))
		return err
	}
	logger := p.logger.With(slog.String("snapshot", snap.ID.String()), slog.String("file", snap.Filename))
	if p.cfg.Observe != nil {
		p.cfg.Observe(snap)
	}

	var errs []error
	if p.cfg.Dir != "" {
		if err := p.store(snap); err != nil {
			logger.Error("latest artifact not written", slog.Any("error", err))
			errs = append(errs, err)
		}
	}

	if p.mailer == nil || p.cfg.Recipient == "" {
		logger.Info("snapshot produced, delivery disabled", slog.Int("bytes", len(snap.Data)))
		return errors.Join(errs...)
	}
	if err := p.mailer.Send(ctx, p.message(snap)); err != nil {
		err = fmt.Errorf("%w: %v", dataset.ErrBackupDelivery, err)
		logger.Error("snapshot not delivered", slog.Any("error", err))
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	logger.Info("snapshot delivered",
		slog.String("to", p.cfg.Recipient),
		slog.Int("products", snap.Stats.StokSayisi),
		slog.Int("sales", snap.Stats.SatisSayisi),
		slog.Int("customers", snap.Stats.MusteriSayisi),
	)
	return errors.Join(errs...)
}

func (p *Producer) store(snap Snapshot) error {
	if err := filestore.EnsureDir(p.cfg.Dir); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if err := filestore.WriteFileAtomic(filepath.Join(p.cfg.Dir, LatestFile), snap.Data); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}

func (p *Producer) message(snap Snapshot) Message {
	day := snap.CreatedAt.Format("2006-01-02")
	return Message{
		To:      p.cfg.Recipient,
		Subject: "Stok Takip yedeği " + day,
		Body: fmt.Sprintf("%s tarihli yedek ektedir.\n\nÜrün: %d\nSatış: %d\nMüşteri: %d\n",
			day, snap.Stats.StokSayisi, snap.Stats.SatisSayisi, snap.Stats.MusteriSayisi),
		Attachments: []Attachment{
			{Name: snap.Filename, Data: snap.Data},
			{Name: snap.ReportName, Data: snap.Report},
		},
	}
}
