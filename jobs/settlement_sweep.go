package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/tradebook/internal/jobs"
)

// SettlementSweeper marks fully paid open invoices as paid.
type SettlementSweeper interface {
	SweepSettled(ctx context.Context) (int, error)
}

// SettlementSweepJob repairs invoice statuses that drifted from their
// payments.
type SettlementSweepJob struct {
	AR      SettlementSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewSettlementSweepJob wires dependencies for the sweep handler.
func NewSettlementSweepJob(ar SettlementSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *SettlementSweepJob {
	return &SettlementSweepJob{AR: ar, Logger: logger, Metrics: metrics, Timeout: 5 * time.Minute}
}

// Handle processes TaskSettlementSweep tasks.
func (j *SettlementSweepJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.AR == nil {
		return errors.New("settlement sweep: handler not configured")
	}
	tracker := j.metrics().Track(TaskSettlementSweep)
	defer func() {
		err = tracker.End(err)
	}()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	logger := j.logger()
	start := time.Now()
	settled, err := j.AR.SweepSettled(ctx)
	j.metrics().AddProcessed(TaskSettlementSweep, "invoice", settled)
	if err != nil {
		logger.Error("settlement sweep", slog.Int("settled", settled), slog.Any("error", err))
		return err
	}
	logger.Info("completed settlement sweep", slog.Int("settled", settled), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *SettlementSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSettlementSweep))
	}
	return slog.Default().With(slog.String("job", TaskSettlementSweep))
}

func (j *SettlementSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
