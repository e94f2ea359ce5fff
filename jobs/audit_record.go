package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-admin/internal/audit"
	jobmetrics "github.com/odyssey-erp/odyssey-admin/internal/jobs"
)

// Persister stores a resolved audit entry.
type Persister interface {
	Persist(ctx context.Context, entry audit.NewEntry) error
}

// AuditRecordJob writes entries dispatched by the recorder in async mode.
type AuditRecordJob struct {
	Persister Persister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewAuditRecordJob initialises the handler.
func NewAuditRecordJob(persister Persister, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRecordJob {
	return &AuditRecordJob{Persister: persister, Logger: logger, Metrics: metrics}
}

// Handle persists the entry carried by t.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Persister == nil {
		return errors.New("audit record: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAuditRecord)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	var payload AuditRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger().Error("audit record payload", slog.Any("error", err))
		return fmt.Errorf("audit record: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := j.logger().With(
		slog.String("tenant_id", payload.Entry.TenantID),
		slog.String("action", string(payload.Entry.Action)),
		slog.String("entity_type", string(payload.Entry.EntityType)),
	)
	if err := j.Persister.Persist(ctx, payload.Entry); err != nil {
		logger.Error("audit write failed", slog.Any("error", err))
		if errors.Is(err, audit.ErrInvalidEntry) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	logger.Debug("audit entry written")
	return nil
}

func (j *AuditRecordJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
