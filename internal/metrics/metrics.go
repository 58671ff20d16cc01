// Package metrics holds the Prometheus collectors of the service, exposed on
// /metrics through the default registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	FeatureRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweetagent_feature_runs_total",
			Help: "Scheduled feature executions by outcome",
		},
		[]string{"bot", "feature", "status"},
	)

	FeatureRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tweetagent_feature_run_duration_seconds",
			Help:    "Scheduled feature execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bot", "feature"},
	)

	PublishAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweetagent_publish_attempts_total",
			Help: "Post publish attempts by outcome",
		},
		[]string{"bot", "status"},
	)

	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tweetagent_llm_calls_total",
			Help: "LLM invocations by feature and outcome",
		},
		[]string{"feature", "status"},
	)

	ObserverConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tweetagent_observer_connections",
			Help: "Currently connected websocket observers",
		},
	)
)

func init() {
	prometheus.MustRegister(
		FeatureRuns,
		FeatureRunDuration,
		PublishAttempts,
		LLMCalls,
		ObserverConnections,
	)
}
