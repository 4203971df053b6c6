// Package observability provides Prometheus metrics for the envelope
// middleware.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// RewritesTotal counts rewritten responses by the classification rule that matched.
	RewritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelope_rewrites_total",
			Help: "Responses classified by the rewriter",
		},
		[]string{"rule"},
	)

	// TranslationsTotal counts errors converted to envelopes by error kind.
	TranslationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "envelope_translations_total",
			Help: "Errors translated to envelopes",
		},
		[]string{"kind"},
	)

	// MalformedBodiesTotal counts downstream bodies that were not valid JSON.
	MalformedBodiesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "envelope_malformed_bodies_total",
			Help: "Downstream bodies that failed to parse as JSON",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RewritesTotal,
		TranslationsTotal,
		MalformedBodiesTotal,
	)
}
