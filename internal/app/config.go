package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"

	"github.com/stoktakip/stoktakip/internal/platform/cache"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":3000"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"30s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	AppMaxBodyBytes   int64         `envconfig:"APP_MAX_BODY_BYTES" default:"52428800"`
	AppRateLimit      int           `envconfig:"APP_RATE_LIMIT" default:"600"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	StorageBackend string        `envconfig:"STORAGE_BACKEND" default:"file"`
	DataDir        string        `envconfig:"DATA_DIR" default:"veriler"`
	PGDSN          string        `envconfig:"PG_DSN"`
	PGMaxConns     int32         `envconfig:"PG_MAX_CONNS" default:"4"`
	StoreTimeout   time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`

	RedisAddr         string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword     string `envconfig:"REDIS_PASSWORD"`
	RedisDB           int    `envconfig:"REDIS_DB" default:"0"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`

	BackupCron     string `envconfig:"BACKUP_CRON" default:"0 22 * * *"`
	BackupTimezone string `envconfig:"BACKUP_TIMEZONE" default:"Europe/Istanbul"`
	BackupDir      string `envconfig:"BACKUP_DIR"`
	BackupEmailTo  string `envconfig:"BACKUP_EMAIL_TO"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`

	IndexFile string `envconfig:"INDEX_FILE"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations envconfig cannot express.
func (c *Config) Validate() error {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if c.StorageBackend == "" {
		c.StorageBackend = BackendFile
	}
	switch c.StorageBackend {
	case BackendFile:
		if c.DataDir == "" {
			return errors.New("DATA_DIR must be provided for the file backend")
		}
	case BackendPostgres:
		if c.PGDSN == "" {
			return errors.New("PG_DSN must be provided for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want %s or %s)", c.StorageBackend, BackendFile, BackendPostgres)
	}
	if c.AppMaxBodyBytes <= 0 {
		return errors.New("APP_MAX_BODY_BYTES must be positive")
	}
	if _, err := c.BackupLocation(); err != nil {
		return err
	}
	if c.BackupEmailTo != "" && (c.SMTPHost == "" || c.SMTPFrom == "") {
		return errors.New("SMTP_HOST and SMTP_FROM must be provided when BACKUP_EMAIL_TO is set")
	}
	return nil
}

// BackupLocation resolves BACKUP_TIMEZONE.
func (c *Config) BackupLocation() (*time.Location, error) {
	if c.BackupTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.BackupTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BACKUP_TIMEZONE %q: %w", c.BackupTimezone, err)
	}
	return loc, nil
}

// RedisOptions returns the connection settings shared by the queue and the
// status store.
func (c *Config) RedisOptions() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
