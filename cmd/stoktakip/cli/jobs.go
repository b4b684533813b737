// Package cli implements the operator subcommands of the stoktakip binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stoktakip/stoktakip/internal/platform/cache"
	"github.com/stoktakip/stoktakip/jobs"
)

const usage = "kullanım: stoktakip [yedek|kuyruk]"

// Queue talks to the backup queue on behalf of an operator.
type Queue struct {
	client    *jobs.Client
	inspector *asynq.Inspector
	status    jobs.StatusReader
}

// NewQueue connects to the queue. status may be nil when redis-backed job
// status is not wanted.
func NewQueue(opts asynq.RedisClientOpt, status jobs.StatusReader) (*Queue, error) {
	if opts.Addr == "" {
		return nil, errors.New("cli: redis address is required")
	}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &Queue{client: client, inspector: asynq.NewInspector(opts), status: status}, nil
}

// Close releases the client and inspector.
func (q *Queue) Close() error {
	return errors.Join(q.inspector.Close(), q.client.Close())
}

// Summary is what "kuyruk" prints.
type Summary struct {
	Queue      string
	Pending    int
	Active     int
	Scheduled  int
	Retry      int
	Failed     int
	Cron       []*asynq.SchedulerEntry
	LastBackup *cache.JobStatus
}

// Summarize collects queue counters, cron entries and the last backup.
func (q *Queue) Summarize(ctx context.Context) (Summary, error) {
	info, err := q.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return Summary{}, fmt.Errorf("queue info: %w", err)
	}
	summary := Summary{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Failed:    info.Failed,
	}
	if summary.Cron, err = q.inspector.SchedulerEntries(); err != nil {
		return Summary{}, fmt.Errorf("cron entries: %w", err)
	}
	if q.status != nil {
		last, ok, err := q.status.Last(ctx, jobs.TaskBackupSnapshot)
		if err != nil {
			return Summary{}, fmt.Errorf("last backup: %w", err)
		}
		if ok {
			summary.LastBackup = &last
		}
	}
	return summary, nil
}

// Run executes one subcommand and returns the process exit code.
func (q *Queue) Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	switch args[0] {
	case "yedek":
		info, err := q.client.EnqueueBackup(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "yedekleme kuyruğa alınamadı: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Yedekleme kuyruğa alındı: %s\n", info.ID)
		return 0
	case "kuyruk":
		summary, err := q.Summarize(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "kuyruk okunamadı: %v\n", err)
			return 1
		}
		PrintSummary(stdout, summary)
		return 0
	default:
		fmt.Fprintf(stderr, "bilinmeyen komut %q\n%s\n", args[0], usage)
		return 2
	}
}

// PrintSummary writes s in a line-oriented form.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "kuyruk=%s bekleyen=%d aktif=%d planli=%d tekrar=%d hatali=%d\n",
		s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Failed)
	for _, e := range s.Cron {
		fmt.Fprintf(w, "zamanlama %s %s sonraki=%s\n", e.Spec, e.Task.Type(), e.Next.Format(time.RFC3339))
	}
	switch {
	case s.LastBackup == nil:
		fmt.Fprintln(w, "son yedek: kayıt yok")
	case s.LastBackup.Success:
		fmt.Fprintf(w, "son yedek: başarılı %s\n", s.LastBackup.FinishedAt.Format(time.RFC3339))
	default:
		fmt.Fprintf(w, "son yedek: hatalı %s (%s)\n", s.LastBackup.FinishedAt.Format(time.RFC3339), s.LastBackup.Error)
	}
}
