// Package metrics exposes Prometheus collectors for ingestion, analysis,
// transport and the assistant.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RefreshRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierwatch_refresh_runs_total",
			Help: "Total number of market refresh cycles",
		},
		[]string{"status"}, // status: success|error
	)

	TokensIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tierwatch_tokens_ingested_total",
			Help: "Total number of token snapshots upserted",
		},
	)

	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierwatch_provider_requests_total",
			Help: "Total number of market-data provider requests",
		},
		[]string{"provider", "status"}, // status: success|error|rejected
	)

	OpportunitiesEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierwatch_opportunities_emitted_total",
			Help: "Total number of opportunities emitted by analysis runs",
		},
		[]string{"type"},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tierwatch_analysis_duration_seconds",
			Help:    "Opportunity analysis run duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tierwatch_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)

	AssistantCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tierwatch_assistant_calls_total",
			Help: "Total number of assistant queries",
		},
		[]string{"source"}, // source: model|fallback
	)
)

func init() {
	prometheus.MustRegister(
		RefreshRuns,
		TokensIngested,
		ProviderRequests,
		OpportunitiesEmitted,
		AnalysisDuration,
		WebsocketClients,
		AssistantCalls,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
