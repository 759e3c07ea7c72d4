// Package metrics exposes Prometheus collectors for list operations and
// backups. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	activeItems       prometheus.Gauge
	backupRuns        *prometheus.CounterVec
	backupLastSuccess prometheus.Gauge
}

// New creates a registry with the gimmie collectors plus the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gimmie",
			Name:      "operations_total",
			Help:      "List operations by name and result.",
		}, []string{"op", "result"}),
		activeItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gimmie",
			Name:      "active_items",
			Help:      "Number of items on the active list after the last mutation.",
		}),
		backupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gimmie",
			Name:      "backup_runs_total",
			Help:      "Backup runs by result.",
		}, []string{"result"}),
		backupLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gimmie",
			Name:      "backup_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful backup.",
		}),
	}

	m.registry.MustRegister(
		m.operations,
		m.activeItems,
		m.backupRuns,
		m.backupLastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Operation counts one list operation.
func (m *Metrics) Operation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// ActiveItems records the current length of the active list.
func (m *Metrics) ActiveItems(n int) {
	if m == nil {
		return
	}
	m.activeItems.Set(float64(n))
}

// BackupRun counts a backup run and, on success, stamps its time.
func (m *Metrics) BackupRun(at time.Time, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.backupRuns.WithLabelValues("error").Inc()
		return
	}
	m.backupRuns.WithLabelValues("ok").Inc()
	m.backupLastSuccess.Set(float64(at.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
