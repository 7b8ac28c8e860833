// Package metrics exposes run metrics on a private prometheus registry and can
// push them to a Pushgateway when the process is a short-lived job.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "recruiter_outreach"

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	registry *prometheus.Registry

	attempts       *prometheus.CounterVec
	filtered       *prometheus.CounterVec
	ledgerWarnings prometheus.Counter
	quota          *prometheus.GaugeVec
	runs           *prometheus.CounterVec
	runDuration    prometheus.Gauge
	lastRun        prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_attempts_total",
			Help:      "Connection attempts by outcome and reason.",
		}, []string{"outcome", "reason"}),
		filtered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_filtered_total",
			Help:      "Candidates dropped by filter step.",
		}, []string{"step"}),
		ledgerWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_write_failures_total",
			Help:      "Ledger appends that failed.",
		}),
		quota: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_used",
			Help:      "Invitations already sent in the window at run start.",
		}, []string{"window"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by stop reason.",
		}, []string{"stop_reason"}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	r.registry.MustRegister(
		r.attempts,
		r.filtered,
		r.ledgerWarnings,
		r.quota,
		r.runs,
		r.runDuration,
		r.lastRun,
	)

	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Attempt(outcome, reason string) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(outcome, reason).Inc()
}

func (r *Recorder) Filtered(step string) {
	if r == nil {
		return
	}
	r.filtered.WithLabelValues(step).Inc()
}

func (r *Recorder) LedgerWarning() {
	if r == nil {
		return
	}
	r.ledgerWarnings.Inc()
}

func (r *Recorder) Quota(daily, weekly int) {
	if r == nil {
		return
	}
	r.quota.WithLabelValues("daily").Set(float64(daily))
	r.quota.WithLabelValues("weekly").Set(float64(weekly))
}

func (r *Recorder) RunFinished(stopReason string, took time.Duration, at time.Time) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(stopReason).Inc()
	r.runDuration.Set(took.Seconds())
	r.lastRun.Set(float64(at.Unix()))
}

// Push sends every collected metric to the Pushgateway at url under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
