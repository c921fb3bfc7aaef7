// Package metrics exposes service counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of one service instance. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	answers            *prometheus.CounterVec
	generatorAttempts  *prometheus.CounterVec
	retrievalSeconds   *prometheus.HistogramVec
	citationViolations prometheus.Counter
	corpusUnits        prometheus.Gauge
	corpusGeneration   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ragqa_answers_total",
			Help: "Answers served, by outcome status.",
		}, []string{"status"}),
		generatorAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ragqa_generator_attempts_total",
			Help: "Generator calls, by result.",
		}, []string{"result"}),
		retrievalSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ragqa_retrieval_duration_seconds",
			Help:    "Retrieval latency in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"mode"}),
		citationViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragqa_citation_violations_total",
			Help: "Generated answers that break the citation numbering contract.",
		}),
		corpusUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ragqa_corpus_units",
			Help: "Knowledge units in the published corpus snapshot.",
		}),
		corpusGeneration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ragqa_corpus_generation",
			Help: "Generation number of the published corpus snapshot.",
		}),
	}
	m.registry.MustRegister(
		m.answers,
		m.generatorAttempts,
		m.retrievalSeconds,
		m.citationViolations,
		m.corpusUnits,
		m.corpusGeneration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Answer(status string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(status).Inc()
}

func (m *Metrics) GeneratorAttempt(result string) {
	if m == nil {
		return
	}
	m.generatorAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) Retrieval(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.retrievalSeconds.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) CitationViolation() {
	if m == nil {
		return
	}
	m.citationViolations.Inc()
}

func (m *Metrics) Corpus(units int, generation uint64) {
	if m == nil {
		return
	}
	m.corpusUnits.Set(float64(units))
	m.corpusGeneration.Set(float64(generation))
}
