package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal      *prometheus.CounterVec
	StagesTotal    *prometheus.CounterVec
	ToolDuration   *prometheus.HistogramVec
	ActiveSessions prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_workflow_runs_total",
				Help: "Total number of workflow runs by terminal outcome",
			},
			[]string{"outcome"},
		),
		StagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bank_workflow_stages_total",
				Help: "Total number of workflow stages by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bank_tool_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool", "outcome"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bank_workflow_sessions_active",
				Help: "Number of sessions currently holding a license record",
			},
		),
	}
}

func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, outcome string) {
	if m == nil {
		return
	}
	m.StagesTotal.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) ObserveTool(tool string, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolDuration.WithLabelValues(tool, outcome).Observe(d.Seconds())
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
