package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "b3"

// Prometheus implements Collector on a private registry.
type Prometheus struct {
	reg *prometheus.Registry

	extractRows   prometheus.Counter
	transformRuns *prometheus.CounterVec
	transformRows *prometheus.CounterVec
	triggerEvents *prometheus.CounterVec
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates the collector and registers every counter.
func NewPrometheus() *Prometheus {
	p := &Prometheus{reg: prometheus.NewRegistry()}

	p.extractRows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extract_rows_total",
		Help:      "Observation rows written to raw partitions.",
	})
	p.transformRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transform_runs_total",
		Help:      "Transformer invocations by mode (partition,all,latest) and status.",
	}, []string{"mode", "status"})
	p.transformRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transform_rows_total",
		Help:      "Rows written to refined outputs by mode.",
	}, []string{"mode"})
	p.triggerEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trigger_events_total",
		Help:      "Notification events by outcome (started,ignored,failed).",
	}, []string{"outcome"})

	p.reg.MustRegister(
		p.extractRows,
		p.transformRuns,
		p.transformRows,
		p.triggerEvents,
		prometheus.NewGoCollector(),
	)
	return p
}

func (p *Prometheus) ExtractRows(rows int) {
	p.extractRows.Add(float64(rows))
}

func (p *Prometheus) TransformRun(mode, status string, rows int) {
	p.transformRuns.WithLabelValues(mode, status).Inc()
	if rows > 0 {
		p.transformRows.WithLabelValues(mode).Add(float64(rows))
	}
}

func (p *Prometheus) TriggerEvent(outcome string) {
	p.triggerEvents.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}
