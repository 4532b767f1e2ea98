package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSnapshotRefresh is the task type for dropping the cached
	// actor snapshots of everyone holding a role whose grants changed.
	TaskTypeSnapshotRefresh = "authz:snapshot_refresh"
)

// SnapshotRefreshPayload identifies the role whose grants changed.
type SnapshotRefreshPayload struct {
	RoleID int64 `json:"role_id"`
}

// NewSnapshotRefreshTask constructs an Asynq task.
func NewSnapshotRefreshTask(payload SnapshotRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSnapshotRefresh, data), nil
}
