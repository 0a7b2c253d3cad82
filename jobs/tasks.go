package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/tradebook/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTotalsRefresh recomputes stored document totals.
	TaskTotalsRefresh = "sales:totals_refresh"
	// TaskSettlementSweep re-reconciles open invoices.
	TaskSettlementSweep = "ar:settlement_sweep"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "shared:idempotency_cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// TotalsRefreshPayload selects one document, or every document of Kind when
// DocumentID is empty.
type TotalsRefreshPayload struct {
	Kind       string `json:"kind"`
	DocumentID string `json:"document_id,omitempty"`
}

// SettlementSweepPayload carries scheduling metadata.
type SettlementSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTotalsRefreshTask constructs an Asynq task refreshing document totals.
func NewTotalsRefreshTask(kind, documentID string) (*asynq.Task, error) {
	body, err := json.Marshal(TotalsRefreshPayload{Kind: kind, DocumentID: documentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTotalsRefresh, body, asynq.Queue(QueueDefault)), nil
}

// NewSettlementSweepTask constructs an Asynq task for the settlement sweep.
func NewSettlementSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SettlementSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementSweep, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the periodic key purge task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}
