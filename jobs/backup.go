package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stoktakip/stoktakip/internal/jobs"
	"github.com/stoktakip/stoktakip/internal/platform/cache"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// BackupRunner is satisfied by *backup.Producer.
type BackupRunner interface {
	Run(ctx context.Context) error
}

// StatusRecorder is satisfied by *cache.StatusStore.
type StatusRecorder interface {
	Record(ctx context.Context, job string, status cache.JobStatus) error
}

// BackupJob runs the daily snapshot.
type BackupJob struct {
	Runner  BackupRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	// Status, when set, receives the outcome of every run.
	Status StatusRecorder
	clock  func() time.Time
}

// NewBackupJob wires dependencies for the backup handler.
func NewBackupJob(runner BackupRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *BackupJob {
	return &BackupJob{Runner: runner, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle processes backup tasks. It never returns an error: the runner has
// already logged the failure and the next scheduled run replaces this one.
func (j *BackupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload BackupSnapshotPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			j.logger().Warn("backup payload ignored", slog.Any("error", err))
		}
	}
	if payload.Trigger == "" {
		payload.Trigger = TriggerSchedule
	}
	logger := j.logger().With(slog.String("trigger", payload.Trigger))
	if j.Runner == nil {
		logger.Warn("backup runner not configured")
		return nil
	}

	tracker := j.metrics().Track(TaskBackupSnapshot)
	logger.Info("starting backup")
	err := tracker.End(j.Runner.Run(ctx))
	j.record(ctx, logger, err)
	if err != nil {
		logger.Warn("backup finished with errors", slog.Any("error", err))
		return nil
	}
	logger.Info("completed backup")
	return nil
}

func (j *BackupJob) record(ctx context.Context, logger *slog.Logger, runErr error) {
	if j.Status == nil {
		return
	}
	status := cache.JobStatus{FinishedAt: j.now(), Success: runErr == nil}
	if runErr != nil {
		status.Error = runErr.Error()
	}
	if err := j.Status.Record(ctx, TaskBackupSnapshot, status); err != nil {
		logger.Warn("backup status not recorded", slog.Any("error", err))
	}
}

func (j *BackupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}

func (j *BackupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *BackupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
