package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	StepOutcomes  *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	RunsFinished  *prometheus.CounterVec
	RunsRequeued  prometheus.Counter
	QueueMessages *prometheus.CounterVec
	IngestRows    *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StepOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coldpipe_step_outcomes_total",
			Help: "Step executions by step name and outcome",
		}, []string{"step", "outcome"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coldpipe_step_duration_seconds",
			Help:    "Time spent executing a single step attempt",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180},
		}, []string{"step"}),
		RunsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coldpipe_runs_finished_total",
			Help: "Workflow runs that reached a terminal status",
		}, []string{"status"}),
		RunsRequeued: factory.NewCounter(prometheus.CounterOpts{
			Name: "coldpipe_runs_requeued_total",
			Help: "Stale running workflow runs returned to the queue",
		}),
		QueueMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coldpipe_queue_messages_total",
			Help: "Trigger messages consumed by outcome",
		}, []string{"outcome"}),
		IngestRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coldpipe_ingest_rows_total",
			Help: "CSV rows seen by ingress by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveStep(step, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.StepOutcomes.WithLabelValues(step, outcome).Inc()
	m.StepDuration.WithLabelValues(step).Observe(elapsed.Seconds())
}

func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.RunsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) Requeued(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.RunsRequeued.Add(float64(n))
}

func (m *Metrics) QueueMessage(outcome string) {
	if m == nil {
		return
	}
	m.QueueMessages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IngestRow(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.IngestRows.WithLabelValues(result).Add(float64(n))
}
