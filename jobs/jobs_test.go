package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/tradebook/internal/jobs"
	"github.com/odyssey-erp/tradebook/internal/sales/conversion"
	"github.com/odyssey-erp/tradebook/internal/sales/pricing"
	"github.com/odyssey-erp/tradebook/internal/shared"
	_ "github.com/odyssey-erp/tradebook/testing"
)

type fakeRecalculator struct {
	one     []string
	allKind conversion.DocumentKind
	count   int
	err     error
}

func (f *fakeRecalculator) RecalculateTotals(_ context.Context, kind conversion.DocumentKind, id string) (pricing.DocumentTotals, error) {
	if f.err != nil {
		return pricing.DocumentTotals{}, f.err
	}
	f.one = append(f.one, string(kind)+"/"+id)
	return pricing.DocumentTotals{TotalTTC: 120}, nil
}

func (f *fakeRecalculator) RecalculateAll(_ context.Context, kind conversion.DocumentKind) (int, error) {
	f.allKind = kind
	return f.count, f.err
}

type fakeSweeper struct {
	settled int
	err     error
}

func (f fakeSweeper) SweepSettled(context.Context) (int, error) {
	return f.settled, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJobMetrics(t *testing.T) (*jobmetrics.Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return jobmetrics.NewMetrics(reg), reg
}

func TestTotalsRefreshSingleDocument(t *testing.T) {
	sales := &fakeRecalculator{}
	metrics, reg := newJobMetrics(t)
	job := NewTotalsRefreshJob(sales, discardLogger(), metrics)

	task, err := NewTotalsRefreshTask("invoice", "doc-1")
	require.NoError(t, err)
	require.Equal(t, TaskTotalsRefresh, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"INVOICE/doc-1"}, sales.one)

	count, err := testutil.GatherAndCount(reg, "tradebook_jobs_total", "tradebook_job_processed_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestTotalsRefreshWholeKind(t *testing.T) {
	sales := &fakeRecalculator{count: 4}
	metrics, _ := newJobMetrics(t)
	job := NewTotalsRefreshJob(sales, discardLogger(), metrics)

	task, err := NewTotalsRefreshTask("QUOTE", "")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, conversion.KindQuote, sales.allKind)
	require.Empty(t, sales.one)
}

func TestTotalsRefreshSkipsRetryOnBadInput(t *testing.T) {
	sales := &fakeRecalculator{}
	metrics, _ := newJobMetrics(t)
	job := NewTotalsRefreshJob(sales, discardLogger(), metrics)

	err := job.Handle(context.Background(), asynq.NewTask(TaskTotalsRefresh, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewTotalsRefreshTask("ORDER", "")
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)

	sales.err = shared.ErrNotFound
	task, err = NewTotalsRefreshTask("INVOICE", "gone")
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestTotalsRefreshRetriesInfrastructureErrors(t *testing.T) {
	sales := &fakeRecalculator{err: errors.New("connection reset")}
	metrics, _ := newJobMetrics(t)
	job := NewTotalsRefreshJob(sales, discardLogger(), metrics)

	task, err := NewTotalsRefreshTask("INVOICE", "doc-1")
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestSettlementSweep(t *testing.T) {
	metrics, reg := newJobMetrics(t)
	job := NewSettlementSweepJob(fakeSweeper{settled: 3}, discardLogger(), metrics)

	task, err := NewSettlementSweepTask(testNow())
	require.NoError(t, err)
	var payload SettlementSweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.True(t, payload.ScheduledFor.Equal(testNow()))

	require.NoError(t, job.Handle(context.Background(), task))
	count, err := testutil.GatherAndCount(reg, "tradebook_job_processed_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	failing := NewSettlementSweepJob(fakeSweeper{err: errors.New("boom")}, discardLogger(), metrics)
	require.Error(t, failing.Handle(context.Background(), task))

	var nilJob *SettlementSweepJob
	require.Error(t, nilJob.Handle(context.Background(), task))
}

type fakePruner struct {
	removed   int64
	retention time.Duration
	err       error
}

func (f *fakePruner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.retention = olderThan
	return f.removed, f.err
}

func TestIdempotencyCleanup(t *testing.T) {
	metrics, reg := newJobMetrics(t)
	pruner := &fakePruner{removed: 12}
	job := NewIdempotencyCleanupJob(pruner, 720*time.Hour, discardLogger(), metrics)
	task := NewIdempotencyCleanupTask()
	require.Equal(t, TaskIdempotencyCleanup, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 720*time.Hour, pruner.retention)
	count, err := testutil.GatherAndCount(reg, "tradebook_job_processed_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	failing := NewIdempotencyCleanupJob(&fakePruner{err: errors.New("db down")}, time.Hour, discardLogger(), metrics)
	require.Error(t, failing.Handle(context.Background(), task))

	var nilJob *IdempotencyCleanupJob
	require.Error(t, nilJob.Handle(context.Background(), task))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestHandlerHealth(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/jobs", h.MountRoutes)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rr
	}

	rr := serve(NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 2, Retry: 1}}, discardLogger()))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":2,"active":0,"scheduled":0,"retry":1}`, rr.Body.String())

	rr = serve(NewHandler(fakeInspector{err: errors.New("redis down")}, discardLogger()))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = serve(NewHandler(nil, discardLogger()))
	require.Equal(t, http.StatusOK, rr.Code)
}

func testNow() time.Time {
	return time.Date(2024, 6, 30, 2, 0, 0, 0, time.UTC)
}

func TestNewWorkerRejectsBadRegistrations(t *testing.T) {
	opts := asynq.RedisClientOpt{Addr: "127.0.0.1:0"}

	_, err := NewWorker(WorkerConfig{RedisOpts: opts, Logger: discardLogger(), Handlers: []TaskHandler{{Type: TaskTotalsRefresh}}})
	require.ErrorContains(t, err, "incomplete handler")

	task, err := NewSettlementSweepTask(testNow())
	require.NoError(t, err)
	_, err = NewWorker(WorkerConfig{RedisOpts: opts, Logger: discardLogger(), Cron: []CronRegistration{{Spec: "not a cron", Task: task}}})
	require.ErrorContains(t, err, TaskSettlementSweep)

	w, err := NewWorker(WorkerConfig{RedisOpts: opts, Cron: []CronRegistration{{Spec: "0 2 * * *", Task: task}}})
	require.NoError(t, err)
	require.NotNil(t, w.scheduler)
}
