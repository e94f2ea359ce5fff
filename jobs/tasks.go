package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-admin/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one audit entry recorded in async mode.
	TaskAuditRecord = "audit:record"
)

// AuditRecordPayload carries an entry whose tenant and actor were already
// resolved from the originating session.
type AuditRecordPayload struct {
	Entry audit.NewEntry `json:"entry"`
}

// NewAuditRecordTask constructs the task. Audit writes are never retried.
func NewAuditRecordTask(entry audit.NewEntry) (*asynq.Task, error) {
	data, err := json.Marshal(AuditRecordPayload{Entry: entry})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data, asynq.MaxRetry(0), asynq.Queue(QueueDefault)), nil
}
