// Package metrics exposes Prometheus collectors for the expense pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// GenerationCalls counts model calls by model and outcome (ok, error).
	GenerationCalls *prometheus.CounterVec
	// GenerationDuration is the latency of one model call.
	GenerationDuration *prometheus.HistogramVec

	// Parses counts parse attempts by result kind.
	Parses *prometheus.CounterVec

	// Commits counts ledger transaction outcomes (committed, failed).
	Commits *prometheus.CounterVec

	// RPCDuration is the latency of Connect procedures.
	RPCDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	generationCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_calls_total",
			Help:      "Total number of structured generation calls",
		},
		[]string{"model", "outcome"},
	)
	generationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of structured generation calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"model"},
	)
	parses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parses_total",
			Help:      "Total number of expense descriptions parsed, by result",
		},
		[]string{"result"},
	)
	commits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expense_commits_total",
			Help:      "Total number of expense creation attempts, by outcome",
		},
		[]string{"outcome"},
	)
	rpcDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "Duration of Connect procedures",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"procedure", "code"},
	)

	registry.MustRegister(generationCalls, generationDuration, parses, commits, rpcDuration)

	return &Collector{
		registry:           registry,
		GenerationCalls:    generationCalls,
		GenerationDuration: generationDuration,
		Parses:             parses,
		Commits:            commits,
		RPCDuration:        rpcDuration,
	}
}

// ObserveGeneration records one model call.
func (c *Collector) ObserveGeneration(model string, err error, d time.Duration) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.GenerationCalls.WithLabelValues(model, outcome).Inc()
	c.GenerationDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveParse records the result of one parse ("ok" or an error kind).
func (c *Collector) ObserveParse(result string) {
	if c == nil {
		return
	}
	c.Parses.WithLabelValues(result).Inc()
}

// ObserveCommit records the outcome of one expense creation.
func (c *Collector) ObserveCommit(outcome string) {
	if c == nil {
		return
	}
	c.Commits.WithLabelValues(outcome).Inc()
}

// ObserveRPC records one Connect procedure call.
func (c *Collector) ObserveRPC(procedure, code string, d time.Duration) {
	if c == nil {
		return
	}
	c.RPCDuration.WithLabelValues(procedure, code).Observe(d.Seconds())
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
