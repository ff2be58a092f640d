// Package claim defines core types shared across the ingestion pipeline.
package claim

import (
	"strings"
	"time"
)

// Record is the normalized unit of ingested fact-check content.
// A Record is immutable once committed; there is no update path.
type Record struct {
	// ID is the surrogate key assigned by the relational store at insert
	// time. It doubles as the vector index point id so the two stores
	// stay correlated. Zero until committed.
	ID int64

	ClaimText     string
	Verdict       string
	SourceURL     string
	PublishedDate *time.Time
	ShortPoints   []string
}

// DefaultVerdict is stored when a source page carries no extractable rating.
const DefaultVerdict = "Unverified"

// EmbeddingText returns the text the embedding vector is derived from:
// the claim text plus the short points when present.
func (r Record) EmbeddingText() string {
	if len(r.ShortPoints) == 0 {
		return r.ClaimText
	}
	parts := append([]string{r.ClaimText}, r.ShortPoints...)
	return strings.Join(parts, "\n")
}

// Valid reports whether the record satisfies the mandatory-field invariant.
func (r Record) Valid() bool {
	return strings.TrimSpace(r.ClaimText) != "" && r.SourceURL != ""
}

// Outcome classifies the result of committing a single record.
type Outcome string

// Commit outcomes surfaced in run counters and logs.
const (
	OutcomeInserted         Outcome = "inserted"
	OutcomeDuplicateSkipped Outcome = "duplicate_skipped"
	OutcomeFailed           Outcome = "failed"
)

// RunCounters tracks per-run ingestion outcomes for the terminal summary.
type RunCounters struct {
	Inserted   int
	Duplicates int
	Failed     int
}

// Add merges another counter set into this one.
func (c *RunCounters) Add(other RunCounters) {
	c.Inserted += other.Inserted
	c.Duplicates += other.Duplicates
	c.Failed += other.Failed
}

// Record tallies a single commit outcome.
func (c *RunCounters) Record(o Outcome) {
	switch o {
	case OutcomeInserted:
		c.Inserted++
	case OutcomeDuplicateSkipped:
		c.Duplicates++
	case OutcomeFailed:
		c.Failed++
	}
}
