// Package jobmetrics instruments background job runs.
package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Metrics holds the job collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	processed   *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

var (
	sharedOnce sync.Once
	shared     *Metrics
)

// NewMetrics registers the collectors on reg. A nil reg shares one instance
// registered on the Prometheus default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg != nil {
		return register(reg)
	}
	sharedOnce.Do(func() { shared = register(prometheus.DefaultRegisterer) })
	return shared
}

func register(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_jobs_total",
			Help: "Job executions by job and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_jobs_failures_total",
			Help: "Failed job executions by job.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradebook_job_duration_seconds",
			Help:    "Job execution time in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"job"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_job_processed_total",
			Help: "Entities touched by jobs, e.g. refreshed documents or settled invoices.",
		}, []string{"job", "entity"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradebook_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		now: time.Now,
	}
	reg.MustRegister(m.runs, m.failures, m.duration, m.processed, m.lastSuccess)
	return m
}

// Run measures a single job execution.
type Run struct {
	m     *Metrics
	job   string
	start time.Time
}

// Track starts measuring job.
func (m *Metrics) Track(job string) *Run {
	if m == nil {
		return &Run{job: job}
	}
	return &Run{m: m, job: job, start: m.now()}
}

// End records the outcome of the run and passes err through.
func (r *Run) End(err error) error {
	if r == nil || r.m == nil || r.job == "" {
		return err
	}
	status := statusSuccess
	if err != nil {
		status = statusFailure
		r.m.failures.WithLabelValues(r.job).Inc()
	}
	end := r.m.now()
	r.m.runs.WithLabelValues(r.job, status).Inc()
	r.m.duration.WithLabelValues(r.job).Observe(end.Sub(r.start).Seconds())
	if err == nil {
		r.m.lastSuccess.WithLabelValues(r.job).Set(float64(end.Unix()))
	}
	return err
}

// AddProcessed counts entities of kind entity touched by job.
func (m *Metrics) AddProcessed(job, entity string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.processed.WithLabelValues(job, entity).Add(float64(count))
}
