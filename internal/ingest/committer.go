// Package ingest implements the dedup-and-commit service and the run
// orchestrator that drives each source's walk-extract-commit chain.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veritium/crawler/internal/claim"
	"github.com/veritium/crawler/internal/embed"
	"github.com/veritium/crawler/internal/metrics"
	"github.com/veritium/crawler/internal/store/postgres"
)

// ClaimStore is the relational-store surface the committer needs.
type ClaimStore interface {
	Exists(ctx context.Context, sourceURL, claimText string) (bool, error)
	Insert(ctx context.Context, rec claim.Record) (int64, error)
}

// VectorIndex is the vector-index surface the committer needs. Upserts
// by the same id are idempotent.
type VectorIndex interface {
	Upsert(ctx context.Context, id int64, vector []float32, payload map[string]any) error
}

// Committer performs the two-step dual-store commit. The relational
// store is the durable source of truth; the vector index is a derived,
// best-effort projection. A vector write failure after a successful
// relational insert is logged and reported, never rolled back.
type Committer struct {
	store    ClaimStore
	index    VectorIndex
	embedder embed.Embedder
	logger   *zap.Logger
}

// NewCommitter constructs a Committer.
func NewCommitter(store ClaimStore, index VectorIndex, embedder embed.Embedder, logger *zap.Logger) *Committer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Committer{store: store, index: index, embedder: embedder, logger: logger}
}

// Commit persists rec exactly once across both stores.
//
// The pre-check against source_url OR claim_text is the fast path; the
// store's own uniqueness constraints are the second line of defense
// against races between the read and the write, and a lost race is a
// duplicate skip, not an error.
func (c *Committer) Commit(ctx context.Context, rec claim.Record) (claim.Outcome, error) {
	if !rec.Valid() {
		return claim.OutcomeFailed, fmt.Errorf("commit: record missing claim text or source url")
	}

	exists, err := c.store.Exists(ctx, rec.SourceURL, rec.ClaimText)
	if err != nil {
		return claim.OutcomeFailed, fmt.Errorf("duplicate check: %w", err)
	}
	if exists {
		c.logger.Debug("duplicate claim skipped", zap.String("source_url", rec.SourceURL))
		return claim.OutcomeDuplicateSkipped, nil
	}

	id, err := c.store.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			c.logger.Debug("duplicate claim lost insert race", zap.String("source_url", rec.SourceURL))
			return claim.OutcomeDuplicateSkipped, nil
		}
		return claim.OutcomeFailed, fmt.Errorf("insert claim: %w", err)
	}
	rec.ID = id

	// From here on the relational row is durable. Embedding or vector
	// failures leave the stores divergent until a reconciliation pass;
	// the parsed claim is never thrown away.
	vector, err := c.embedder.Embed(ctx, rec.EmbeddingText())
	if err != nil {
		metrics.EmbeddingFailures.Inc()
		c.logger.Error("embedding failed after relational insert",
			zap.Int64("id", id),
			zap.String("source_url", rec.SourceURL),
			zap.Error(err))
		return claim.OutcomeFailed, fmt.Errorf("embed claim %d: %w", id, err)
	}

	if err := c.index.Upsert(ctx, id, vector, vectorPayload(rec)); err != nil {
		metrics.VectorUpsertFailures.Inc()
		c.logger.Error("vector upsert failed after relational insert",
			zap.Int64("id", id),
			zap.String("source_url", rec.SourceURL),
			zap.Error(err))
		return claim.OutcomeFailed, fmt.Errorf("vector upsert %d: %w", id, err)
	}

	return claim.OutcomeInserted, nil
}

func vectorPayload(rec claim.Record) map[string]any {
	date := ""
	if rec.PublishedDate != nil {
		date = rec.PublishedDate.Format(time.RFC3339)
	}
	return map[string]any{
		"text":       rec.ClaimText,
		"verdict":    rec.Verdict,
		"source_url": rec.SourceURL,
		"date":       date,
	}
}
