package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stoktakip/stoktakip/internal/app"
	"github.com/stoktakip/stoktakip/internal/backup"
	"github.com/stoktakip/stoktakip/internal/observability"
	"github.com/stoktakip/stoktakip/internal/platform/cache"
	"github.com/stoktakip/stoktakip/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	storage, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("open storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := storage.Backend.Close(); err != nil {
			logger.Warn("storage close", slog.Any("error", err))
		}
	}()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	location, err := cfg.BackupLocation()
	if err != nil {
		logger.Error("backup timezone", slog.Any("error", err))
		os.Exit(1)
	}

	var mailer backup.Mailer
	if cfg.BackupEmailTo != "" {
		smtp, err := backup.NewSMTPMailer(backup.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			logger.Error("init mailer", slog.Any("error", err))
			os.Exit(1)
		}
		mailer = smtp
	} else {
		logger.Warn("BACKUP_EMAIL_TO not set, backups will not be mailed")
	}

	metrics := observability.NewMetrics()
	producer := backup.NewProducer(storage.Backend, mailer, logger, backup.Config{
		Dir:       cfg.BackupDir,
		Recipient: cfg.BackupEmailTo,
		Location:  location,
		Observe: func(snap backup.Snapshot) {
			metrics.Jobs().ObserveBackup(len(snap.Data), snap.Stats.StokSayisi, snap.Stats.SatisSayisi, snap.Stats.MusteriSayisi)
		},
	})

	backupJob := jobs.NewBackupJob(producer, logger, metrics.Jobs())
	backupJob.Status = cache.NewStatusStore(redisClient)

	backupTask, err := jobs.NewBackupSnapshotTask(jobs.TriggerSchedule)
	if err != nil {
		logger.Error("build backup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.RedisOptions().Asynq(),
		Logger:    logger,
		Location:  location,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBackupSnapshot, Handler: backupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BackupCron, Task: backupTask, Options: []asynq.Option{asynq.MaxRetry(0), asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting worker metrics server", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
