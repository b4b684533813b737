package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusKeyPrefix = "stoktakip:job:"

// JobStatus is the outcome of the most recent run of a job.
type JobStatus struct {
	FinishedAt time.Time `json:"finishedAt"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// StatusStore keeps the latest JobStatus per job in a Redis hash so the
// server can report what the worker last did.
type StatusStore struct {
	client redis.UniversalClient
}

// NewStatusStore wraps client.
func NewStatusStore(client redis.UniversalClient) *StatusStore {
	return &StatusStore{client: client}
}

// Record overwrites the status of job.
func (s *StatusStore) Record(ctx context.Context, job string, status JobStatus) error {
	err := s.client.HSet(ctx, statusKeyPrefix+job,
		"finished_at", status.FinishedAt.UTC().Format(time.RFC3339),
		"success", strconv.FormatBool(status.Success),
		"error", status.Error,
	).Err()
	if err != nil {
		return fmt.Errorf("platform/cache: record %s: %w", job, err)
	}
	return nil
}

// Last returns the latest status of job. ok is false when the job never ran.
func (s *StatusStore) Last(ctx context.Context, job string) (status JobStatus, ok bool, err error) {
	fields, err := s.client.HGetAll(ctx, statusKeyPrefix+job).Result()
	if errors.Is(err, redis.Nil) {
		return JobStatus{}, false, nil
	}
	if err != nil {
		return JobStatus{}, false, fmt.Errorf("platform/cache: load %s: %w", job, err)
	}
	if len(fields) == 0 {
		return JobStatus{}, false, nil
	}
	finished, err := time.Parse(time.RFC3339, fields["finished_at"])
	if err != nil {
		return JobStatus{}, false, fmt.Errorf("platform/cache: decode %s: %w", job, err)
	}
	success, _ := strconv.ParseBool(fields["success"])
	return JobStatus{FinishedAt: finished, Success: success, Error: fields["error"]}, true, nil
}
