// Package metrics exposes Prometheus counters for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalRequests tracks the number of HTTP requests dispatched by the fetcher.
	TotalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritium_requests_total",
		Help: "The total number of HTTP requests sent.",
	})
	// TotalRetries tracks retried fetch attempts.
	TotalRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritium_fetch_retries_total",
		Help: "The total number of retried fetch attempts.",
	})
	// TotalFetchFailures tracks URLs given up on (permanent failure or retries exhausted).
	TotalFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritium_fetch_failures_total",
		Help: "The total number of URLs that could not be fetched.",
	})
	// TotalRateLimitHits tracks HTTP 429 responses.
	TotalRateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritium_rate_limit_hits_total",
		Help: "The total number of times a source rate limited the crawler.",
	})
	// ClaimsInserted tracks successfully committed claim records.
	ClaimsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritium_claims_inserted_total",
		Help: "The total number of claim records committed, per source.",
	}, []string{"source"})
	// ClaimsDuplicate tracks records skipped as duplicates.
	ClaimsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritium_claims_duplicate_total",
		Help: "The total number of claim records skipped as duplicates, per source.",
	}, []string{"source"})
	// ClaimsFailed tracks records whose commit failed.
	ClaimsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritium_claims_failed_total",
		Help: "The total number of claim records whose commit failed, per source.",
	}, []string{"source"})
	// EmbeddingFailures tracks embedding requests that failed after a
	// durable relational insert, before any vector write was attempted.
	EmbeddingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritium_embedding_failures_total",
		Help: "The total number of embedding requests that failed after a relational insert.",
	})
	// VectorUpsertFailures tracks vector writes that failed after a durable
	// relational insert, leaving the stores temporarily divergent.
	VectorUpsertFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritium_vector_upsert_failures_total",
		Help: "The total number of vector index upserts that failed after a relational insert.",
	})
)
