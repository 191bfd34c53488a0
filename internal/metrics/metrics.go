// Package metrics exposes Prometheus metrics for the reminder service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for Renewly
type Metrics struct {
	// Pipeline counters
	RunsTotal            *prometheus.CounterVec
	RemindersSentTotal   prometheus.Counter
	RemindersFailedTotal prometheus.Counter

	// Response intake counters
	ResponsesTotal      *prometheus.CounterVec
	TokensRejectedTotal *prometheus.CounterVec

	// Gauges
	LastRunTimestamp prometheus.Gauge
	ClientsTotal     prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a Metrics instance with all metrics registered on its
// own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renewly_runs_total",
				Help: "Total number of reminder pipeline runs",
			},
			[]string{"result"},
		),
		RemindersSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "renewly_reminders_sent_total",
				Help: "Total number of reminder emails sent",
			},
		),
		RemindersFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "renewly_reminders_failed_total",
				Help: "Total number of per-record reminder failures",
			},
		),
		ResponsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renewly_responses_total",
				Help: "Total number of client responses recorded",
			},
			[]string{"response"},
		),
		TokensRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "renewly_tokens_rejected_total",
				Help: "Total number of token validations rejected",
			},
			[]string{"reason"},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "renewly_last_run_timestamp_seconds",
				Help: "Unix time of the last completed pipeline run",
			},
		),
		ClientsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "renewly_clients_total",
				Help: "Number of records in the client store",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RemindersSentTotal,
		m.RemindersFailedTotal,
		m.ResponsesTotal,
		m.TokensRejectedTotal,
		m.LastRunTimestamp,
		m.ClientsTotal,
	)

	return m
}

// Handler returns the HTTP handler serving the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
