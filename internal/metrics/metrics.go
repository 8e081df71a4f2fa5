// Package metrics collects per-run counters and writes them for the
// node-exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
)

const namespace = "legcal"

// Run holds the metrics of one pipeline run on its own registry
type Run struct {
	registry *prometheus.Registry
	started  time.Time
	now      func() time.Time

	fetchAttempts *prometheus.CounterVec
	extracted     *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	rows          *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
	duration      prometheus.Gauge
}

// NewRun creates the run's registry and registers every metric
func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		now:      time.Now,
	}
	r.started = r.now()

	r.fetchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_attempts_total",
		Help:      "Page acquisition attempts by chamber and outcome",
	}, []string{"chamber", "outcome"})
	r.extracted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_extracted_total",
		Help:      "Raw measure events extracted by chamber",
	}, []string{"chamber"})
	r.skipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Records skipped during extraction or resolution by reason",
	}, []string{"reason"})
	r.rows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_rows_total",
		Help:      "Ledger rows affected by reconciliation by action",
	}, []string{"action"})
	r.lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last run that committed",
	})
	r.duration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the run",
	})

	r.registry.MustRegister(r.fetchAttempts, r.extracted, r.skipped, r.rows, r.lastSuccess, r.duration)
	return r
}

// Registry exposes the run's registry
func (r *Run) Registry() *prometheus.Registry {
	return r.registry
}

// FetchObserver returns a callback counting fetch outcomes for the chamber
func (r *Run) FetchObserver(chamber event.Chamber) func(outcome string) {
	return func(outcome string) {
		r.fetchAttempts.WithLabelValues(string(chamber), outcome).Inc()
	}
}

// Extracted counts n events extracted for the chamber
func (r *Run) Extracted(chamber event.Chamber, n int) {
	r.extracted.WithLabelValues(string(chamber)).Add(float64(n))
}

// Skipped counts n records skipped for reason
func (r *Run) Skipped(reason string, n int) {
	if n <= 0 {
		return
	}
	r.skipped.WithLabelValues(reason).Add(float64(n))
}

// Rows counts n ledger rows affected by action
func (r *Run) Rows(action string, n int) {
	if n <= 0 {
		return
	}
	r.rows.WithLabelValues(action).Add(float64(n))
}

// Succeeded stamps the last-success gauge
func (r *Run) Succeeded() {
	r.lastSuccess.Set(float64(r.now().Unix()))
}

// Finish records the run duration
func (r *Run) Finish() {
	r.duration.Set(r.now().Sub(r.started).Seconds())
}

// WriteTextfile writes the registry in the text exposition format. An empty
// path is a no-op.
func (r *Run) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
