package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/stoktakip/stoktakip/internal/jobs"
	"github.com/stoktakip/stoktakip/internal/platform/cache"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubRunner struct {
	calls int
	err   error
}

func (s *stubRunner) Run(context.Context) error {
	s.calls++
	return s.err
}

type stubEnqueuer struct {
	info *asynq.TaskInfo
	err  error
}

func (s stubEnqueuer) EnqueueBackup(context.Context) (*asynq.TaskInfo, error) {
	return s.info, s.err
}

func TestNewBackupSnapshotTaskDefaultsToSchedule(t *testing.T) {
	task, err := NewBackupSnapshotTask("")
	require.NoError(t, err)
	assert.Equal(t, TaskBackupSnapshot, task.Type())

	var payload BackupSnapshotPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, TriggerSchedule, payload.Trigger)
}

func TestBackupJobSwallowsRunnerErrors(t *testing.T) {
	runner := &stubRunner{err: errors.New("smtp down")}
	job := NewBackupJob(runner, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewBackupSnapshotTask(TriggerManual)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, runner.calls)
}

func TestBackupJobToleratesBadPayload(t *testing.T) {
	runner := &stubRunner{}
	job := NewBackupJob(runner, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskBackupSnapshot, []byte("{"))))
	assert.Equal(t, 1, runner.calls)
}

func TestBackupJobWithoutRunner(t *testing.T) {
	job := NewBackupJob(nil, discardLogger(), nil)
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskBackupSnapshot, nil)))
}

func serveTrigger(enqueuer BackupEnqueuer) (*httptest.ResponseRecorder, map[string]any) {
	r := chi.NewRouter()
	r.Route("/api", NewTriggerHandler(enqueuer, discardLogger()).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/yedek", nil))
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestTriggerEnqueuesBackup(t *testing.T) {
	rec, body := serveTrigger(stubEnqueuer{info: &asynq.TaskInfo{ID: "abc"}})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "abc", body["taskId"])
	assert.Equal(t, msgBackupQueued, body["message"])
}

func TestTriggerReportsUnavailableQueue(t *testing.T) {
	rec, body := serveTrigger(stubEnqueuer{err: errors.New("dial tcp: refused")})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = serveTrigger(nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil, discardLogger()).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"failed":0}`, rec.Body.String())
}

func TestBackupJobRecordsStatusInRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := cache.New(context.Background(), cache.Options{Addr: srv.Addr()})
	require.NoError(t, err)
	defer client.Close()
	store := cache.NewStatusStore(client)

	job := NewBackupJob(&stubRunner{err: errors.New("relay refused")}, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.Status = store
	job.clock = func() time.Time { return time.Date(2025, 3, 14, 19, 0, 0, 0, time.UTC) }
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskBackupSnapshot, nil)))

	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, store, discardLogger()).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		LastBackup *cache.JobStatus `json:"lastBackup"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.LastBackup)
	assert.False(t, body.LastBackup.Success)
	assert.Equal(t, "relay refused", body.LastBackup.Error)
}

func TestNewWorkerRegistersCron(t *testing.T) {
	srv := miniredis.RunT(t)
	task, err := NewBackupSnapshotTask(TriggerSchedule)
	require.NoError(t, err)
	loc := time.FixedZone("TRT", 3*3600)

	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: srv.Addr()},
		Logger:    discardLogger(),
		Location:  loc,
		Handlers:  []TaskHandler{{Type: TaskBackupSnapshot, Handler: func(context.Context, *asynq.Task) error { return nil }}},
		Cron:      []CronRegistration{{Spec: "0 22 * * *", Task: task, Options: []asynq.Option{asynq.MaxRetry(0)}}},
	})
	require.NoError(t, err)
	require.NotNil(t, w.scheduler)
}

func TestNewWorkerRejectsBadCronSpec(t *testing.T) {
	srv := miniredis.RunT(t)
	task, err := NewBackupSnapshotTask(TriggerSchedule)
	require.NoError(t, err)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: srv.Addr()},
		Logger:    discardLogger(),
		Cron:      []CronRegistration{{Spec: "her gün", Task: task}},
	})
	require.ErrorContains(t, err, TaskBackupSnapshot)
}

func TestSlogAdapterForwardsMessages(t *testing.T) {
	var buf strings.Builder
	a := slogAdapter{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	a.Info("scheduler ", "started")
	a.Warn("lease ", 3, " expired")

	out := buf.String()
	assert.Contains(t, out, "scheduler started")
	assert.Contains(t, out, "lease 3 expired")
	assert.Contains(t, out, "level=WARN")
}
