package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stoktakip/stoktakip/cmd/stoktakip/cli"
	"github.com/stoktakip/stoktakip/internal/app"
	"github.com/stoktakip/stoktakip/internal/dataset"
	"github.com/stoktakip/stoktakip/internal/legacy"
	"github.com/stoktakip/stoktakip/internal/observability"
	"github.com/stoktakip/stoktakip/internal/platform/cache"
	"github.com/stoktakip/stoktakip/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, cfg, logger, os.Args[1:]))
	}

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

	service := dataset.NewService(storage.Backend, logger, dataset.ServiceConfig{Timeout: cfg.StoreTimeout})

	redisOpts := cfg.RedisOptions().Asynq()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	var status jobs.StatusReader
	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis unavailable, backup status disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		status = cache.NewStatusStore(redisClient)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        observability.NewMetrics(),
		Ready:          storage.Ready,
		DatasetHandler: dataset.NewHandler(logger, service, cfg.AppMaxBodyBytes),
		LegacyHandler:  legacy.NewHandler(logger, service, cfg.AppMaxBodyBytes),
		JobHandler:     jobs.NewHandler(inspector, status, logger),
		TriggerHandler: jobs.NewTriggerHandler(jobClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("storage", cfg.StorageBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runCommand handles the operator subcommands: "yedek" enqueues a backup
// and "kuyruk" prints the queue state.
func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	var status jobs.StatusReader
	if redisClient, err := cache.New(ctx, cfg.RedisOptions()); err != nil {
		logger.Warn("redis unavailable, backup status not shown", slog.Any("error", err))
	} else {
		defer redisClient.Close()
		status = cache.NewStatusStore(redisClient)
	}

	queue, err := cli.NewQueue(cfg.RedisOptions().Asynq(), status)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer queue.Close()
	return queue.Run(ctx, args, os.Stdout, os.Stderr)
}
