package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/stoktakip/stoktakip/internal/platform/cache"
	"github.com/stoktakip/stoktakip/internal/platform/httpx"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Handlers  []TaskHandler
	Cron      []CronRegistration
	// Location interprets cron specs; nil means UTC.
	Location *time.Location
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// Backups run one at a time.
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 1,
		Queues: map[string]int{
			QueueDefault: 1,
		},
		Logger:          slogAdapter{logger: logger.With(slog.String("component", "asynq"))},
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", slog.String("task", task.Type()), slog.Any("error", err))
		}),
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		location := cfg.Location
		if location == nil {
			location = time.UTC
		}
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{
			Location: location,
			Logger:   slogAdapter{logger: logger.With(slog.String("component", "scheduler"))},
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err != nil {
					logger.Error("cron enqueue failed", slog.Any("error", err))
					return
				}
				logger.Info("cron enqueued", slog.String("task", info.Type), slog.String("id", info.ID))
			},
		})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			id, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...)
			if err != nil {
				return nil, fmt.Errorf("register %s %q: %w", entry.Task.Type(), entry.Spec, err)
			}
			logger.Info("cron registered", slog.String("task", entry.Task.Type()), slog.String("spec", entry.Spec), slog.String("entry", id), slog.String("location", location.String()))
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// slogAdapter satisfies asynq.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debug(args ...any) { a.logger.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...any)  { a.logger.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...any)  { a.logger.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...any) { a.logger.Error(fmt.Sprint(args...)) }

// Fatal exits the process, as asynq expects.
func (a slogAdapter) Fatal(args ...any) {
	a.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueBackup enqueues an immediate backup run. Manual runs are not
// retried, the same as scheduled ones.
func (c *Client) EnqueueBackup(ctx context.Context) (*asynq.TaskInfo, error) {
	task, err := NewBackupSnapshotTask(TriggerManual)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.TaskID(uuid.NewString()),
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
	)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// StatusReader is satisfied by *cache.StatusStore.
type StatusReader interface {
	Last(ctx context.Context, job string) (cache.JobStatus, bool, error)
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector *asynq.Inspector
	status    StatusReader
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints. status may be nil.
func NewHandler(inspector *asynq.Inspector, status StatusReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, status: status, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueHealth struct {
	Queue      string           `json:"queue"`
	Pending    int              `json:"pending"`
	Active     int              `json:"active"`
	Failed     int              `json:"failed"`
	LastBackup *cache.JobStatus `json:"lastBackup,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, queueHealth{Queue: QueueDefault, LastBackup: h.lastBackup(r.Context())})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	resp := queueHealth{Queue: QueueDefault}
	if info != nil {
		resp = queueHealth{Queue: info.Queue, Pending: info.Pending, Active: info.Active, Failed: info.Failed}
	}
	resp.LastBackup = h.lastBackup(r.Context())
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) lastBackup(ctx context.Context) *cache.JobStatus {
	if h.status == nil {
		return nil
	}
	status, ok, err := h.status.Last(ctx, TaskBackupSnapshot)
	if err != nil {
		h.logger.Warn("load backup status", slog.Any("error", err))
		return nil
	}
	if !ok {
		return nil
	}
	return &status
}

const (
	msgBackupQueued      = "Yedekleme kuyruğa alındı"
	msgBackupUnavailable = "Yedekleme kuyruğu kullanılamıyor"
)

// BackupEnqueuer is satisfied by *Client.
type BackupEnqueuer interface {
	EnqueueBackup(ctx context.Context) (*asynq.TaskInfo, error)
}

// TriggerHandler serves the manual backup endpoint.
type TriggerHandler struct {
	enqueuer BackupEnqueuer
	logger   *slog.Logger
}

// NewTriggerHandler constructs a TriggerHandler. enqueuer may be nil when no
// queue is configured; the endpoint then answers 503.
func NewTriggerHandler(enqueuer BackupEnqueuer, logger *slog.Logger) *TriggerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriggerHandler{enqueuer: enqueuer, logger: logger}
}

// MountRoutes attaches the trigger route.
func (h *TriggerHandler) MountRoutes(r chi.Router) {
	r.Post("/yedek", h.trigger)
}

type triggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TaskID  string `json:"taskId"`
}

func (h *TriggerHandler) trigger(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Fail(w, http.StatusServiceUnavailable, msgBackupUnavailable, nil)
		return
	}
	info, err := h.enqueuer.EnqueueBackup(r.Context())
	if err != nil {
		h.logger.Error("enqueue backup", slog.Any("error", err))
		httpx.Fail(w, http.StatusServiceUnavailable, msgBackupUnavailable, err)
		return
	}
	h.logger.Info("backup enqueued", slog.String("task_id", info.ID))
	httpx.JSON(w, http.StatusAccepted, triggerResponse{Success: true, Message: msgBackupQueued, TaskID: info.ID})
}
