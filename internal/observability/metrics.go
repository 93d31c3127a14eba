// Package observability registers Prometheus metrics for outbound calls.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	providerFetchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthhub",
		Subsystem: "provider",
		Name:      "fetches_total",
		Help:      "Data fetches against provider APIs, by provider, resource and outcome.",
	}, []string{"provider", "resource", "outcome"})

	oauthExchangeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthhub",
		Subsystem: "oauth",
		Name:      "exchanges_total",
		Help:      "OAuth token grants, by provider, grant type and outcome.",
	}, []string{"provider", "grant", "outcome"})

	insightRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthhub",
		Subsystem: "insight",
		Name:      "requests_total",
		Help:      "LLM insight requests, by kind and outcome.",
	}, []string{"kind", "outcome"})
)

func init() {
	prometheus.MustRegister(providerFetchCounter, oauthExchangeCounter, insightRequestCounter)
}

// RecordProviderFetch counts one provider data fetch.
func RecordProviderFetch(provider, resource, outcome string) {
	providerFetchCounter.WithLabelValues(provider, resource, outcome).Inc()
}

// RecordOAuthExchange counts one token grant attempt.
func RecordOAuthExchange(provider, grant, outcome string) {
	oauthExchangeCounter.WithLabelValues(provider, grant, outcome).Inc()
}

// RecordInsightRequest counts one LLM completion request.
func RecordInsightRequest(kind, outcome string) {
	insightRequestCounter.WithLabelValues(kind, outcome).Inc()
}
