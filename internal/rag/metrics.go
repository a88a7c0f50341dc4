package rag

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fyrsmithlabs/finbotd/internal/provider"
)

var (
	// IngestsTotal counts ingestion attempts. The kind label is the input
	// source, which is known on both outcomes.
	// Labels: kind (upload, url), result (success, error)
	IngestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbotd",
			Subsystem: "rag",
			Name:      "ingests_total",
			Help:      "Total number of document ingestion attempts",
		},
		[]string{"kind", "result"},
	)

	// IngestedChunks counts chunks successfully indexed.
	IngestedChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "finbotd",
			Subsystem: "rag",
			Name:      "ingested_chunks_total",
			Help:      "Total number of chunks inserted into session stores",
		},
	)

	// QueriesTotal counts query attempts.
	// Labels: result (success, empty, error)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbotd",
			Subsystem: "rag",
			Name:      "queries_total",
			Help:      "Total number of answered questions",
		},
		[]string{"result"},
	)

	// ProviderFailures counts classified provider errors.
	// Labels: kind (auth, quota, unavailable, other)
	ProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finbotd",
			Subsystem: "provider",
			Name:      "failures_total",
			Help:      "Total number of embedding/LLM provider failures by kind",
		},
		[]string{"kind"},
	)
)

// recordProviderFailure classifies a provider error into the failure counter.
// Non-provider errors are ignored.
func recordProviderFailure(err error) {
	switch {
	case errors.Is(err, provider.ErrAuth):
		ProviderFailures.WithLabelValues("auth").Inc()
	case errors.Is(err, provider.ErrQuota):
		ProviderFailures.WithLabelValues("quota").Inc()
	case errors.Is(err, provider.ErrUnavailable):
		ProviderFailures.WithLabelValues("unavailable").Inc()
	}
}

