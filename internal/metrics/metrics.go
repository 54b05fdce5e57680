// Package metrics holds the Prometheus collectors for provider calls and
// workshop commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LLMBuckets covers completion latencies from 100ms to 2 minutes.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_provider_requests_total",
			Help: "Provider requests by outcome",
		},
		[]string{"provider", "model", "status"},
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptlab_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// ProviderCostTotal is an estimate. Rates come from the pricing table.
	ProviderCostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_provider_cost_usd_total",
			Help: "Estimated provider spend in USD",
		},
		[]string{"provider", "model"},
	)

	RoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_rounds_total",
			Help: "Executed rounds by type",
		},
		[]string{"type"},
	)

	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptlab_commands_total",
			Help: "Workshop commands by outcome",
		},
		[]string{"command", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		ProviderCostTotal,
		RoundsTotal,
		CommandsTotal,
	)
}

// ObserveCall records one provider call. status is "success" or "error".
func ObserveCall(provider, model, status string, elapsed time.Duration, inputTokens, outputTokens int, cost float64) {
	ProviderRequestsTotal.WithLabelValues(provider, model, status).Inc()
	ProviderLatency.WithLabelValues(provider, model).Observe(elapsed.Seconds())
	if inputTokens > 0 {
		ProviderTokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		ProviderTokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
	if cost > 0 {
		ProviderCostTotal.WithLabelValues(provider, model).Add(cost)
	}
}

// ObserveRound counts a completed round by type.
func ObserveRound(roundType string) {
	RoundsTotal.WithLabelValues(roundType).Inc()
}

// ObserveCommand records a command outcome.
func ObserveCommand(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CommandsTotal.WithLabelValues(command, result).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
