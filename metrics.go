package flagsmith

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagsmith_client",
			Name:      "requests_total",
			Help:      "API requests issued by the client, by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	analyticsFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flagsmith_client",
			Name:      "analytics_flushes_total",
			Help:      "Analytics flush attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	analyticsEventsTrackedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flagsmith_client",
			Name:      "analytics_events_tracked_total",
			Help:      "Flag evaluations recorded for analytics.",
		},
	)
)

func outcome(err error) string {
	if err != nil {
		return outcomeFailure
	}
	return outcomeSuccess
}
