package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBackupSnapshot produces and mails a dataset snapshot.
	TaskBackupSnapshot = "backup:snapshot"
)

// BackupSnapshotPayload records what started a backup run.
type BackupSnapshotPayload struct {
	Trigger string `json:"trigger"`
}

// Backup triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// NewBackupSnapshotTask constructs the backup task.
func NewBackupSnapshotTask(trigger string) (*asynq.Task, error) {
	if trigger == "" {
		trigger = TriggerSchedule
	}
	data, err := json.Marshal(BackupSnapshotPayload{Trigger: trigger})
	if err != nil {
		return nil, fmt.Errorf("marshal backup payload: %w", err)
	}
	return asynq.NewTask(TaskBackupSnapshot, data), nil
}
