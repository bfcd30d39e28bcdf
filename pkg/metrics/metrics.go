// Package metrics exposes the gateway's own operational counters as
// Prometheus collectors, grounded on the pack's common promhttp.Handler
// wiring: one registry, one /metrics endpoint, plain Inc/Set calls from
// the components that own the numbers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts every RequestFlow entry by endpoint and outcome.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llmgate_requests_total",
		Help: "Total RequestFlow entries by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// CompletionCostUSD tracks cumulative billed cost by tier.
	CompletionCostUSD = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llmgate_completion_cost_usd_total",
		Help: "Cumulative debited cost in USD by model tier.",
	}, []string{"tier"})

	// WorkerPoolRunning reports the worker pool's current occupancy.
	WorkerPoolRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "llmgate_workerpool_running",
		Help: "Number of CLI subprocess tasks currently running.",
	})

	// WorkerPoolQueued reports the worker pool's current backlog.
	WorkerPoolQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "llmgate_workerpool_queued",
		Help: "Number of tasks waiting for a free worker slot.",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal, CompletionCostUSD, WorkerPoolRunning, WorkerPoolQueued)
}

// Handler returns the Gatherer holding the collectors registered above;
// HTTPHandler is what /metrics mounts.
func Handler() prometheus.Gatherer {
	return prometheus.DefaultGatherer
}

// HTTPHandler is the ready-to-mount promhttp handler, split from Handler
// so callers that only want the Gatherer (e.g. tests asserting a counter
// value) don't need to pull in net/http.
var HTTPHandler = promhttp.Handler
