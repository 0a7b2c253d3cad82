package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/tradebook/internal/jobs"
	"github.com/odyssey-erp/tradebook/internal/sales/conversion"
	"github.com/odyssey-erp/tradebook/internal/sales/pricing"
	"github.com/odyssey-erp/tradebook/internal/shared"
)

// TotalsRecalculator recomputes stored document totals.
type TotalsRecalculator interface {
	RecalculateTotals(ctx context.Context, kind conversion.DocumentKind, id string) (pricing.DocumentTotals, error)
	RecalculateAll(ctx context.Context, kind conversion.DocumentKind) (int, error)
}

// TotalsRefreshJob recomputes document totals and refreshes the cache.
type TotalsRefreshJob struct {
	Sales   TotalsRecalculator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewTotalsRefreshJob wires dependencies for the refresh handler.
func NewTotalsRefreshJob(sales TotalsRecalculator, logger *slog.Logger, metrics *jobmetrics.Metrics) *TotalsRefreshJob {
	return &TotalsRefreshJob{Sales: sales, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTotalsRefresh tasks. Unknown kinds and missing
// documents are not retried.
func (j *TotalsRefreshJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Sales == nil {
		return errors.New("totals refresh: handler not configured")
	}
	var payload TotalsRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("totals refresh: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	kind := conversion.DocumentKind(strings.ToUpper(payload.Kind))
	if !kind.Valid() {
		return fmt.Errorf("totals refresh: unknown kind %q: %w", payload.Kind, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskTotalsRefresh)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("kind", string(kind)))
	if payload.DocumentID != "" {
		logger = logger.With(slog.String("document_id", payload.DocumentID))
		totals, err := j.Sales.RecalculateTotals(ctx, kind, payload.DocumentID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				logger.Warn("document vanished before refresh")
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			logger.Error("refresh document totals", slog.Any("error", err))
			return err
		}
		j.metrics().AddProcessed(TaskTotalsRefresh, "document", 1)
		logger.Info("refreshed document totals", slog.Float64("total_ttc", totals.TotalTTC))
		return nil
	}

	n, err := j.Sales.RecalculateAll(ctx, kind)
	j.metrics().AddProcessed(TaskTotalsRefresh, "document", n)
	if err != nil {
		logger.Error("refresh totals", slog.Int("refreshed", n), slog.Any("error", err))
		return err
	}
	logger.Info("refreshed totals", slog.Int("refreshed", n))
	return nil
}

func (j *TotalsRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTotalsRefresh))
	}
	return slog.Default().With(slog.String("job", TaskTotalsRefresh))
}

func (j *TotalsRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
