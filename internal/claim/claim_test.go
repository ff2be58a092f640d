package claim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingTextJoinsShortPoints(t *testing.T) {
	rec := Record{ClaimText: "X is true", ShortPoints: []string{"point one", "point two"}}
	assert.Equal(t, "X is true\npoint one\npoint two", rec.EmbeddingText())

	rec.ShortPoints = nil
	assert.Equal(t, "X is true", rec.EmbeddingText())
}

func TestValidRequiresClaimText(t *testing.T) {
	assert.False(t, Record{ClaimText: "   ", SourceURL: "https://example.org/a"}.Valid())
	assert.False(t, Record{ClaimText: "X"}.Valid())
	assert.True(t, Record{ClaimText: "X", SourceURL: "https://example.org/a"}.Valid())
}

func TestRunCounters(t *testing.T) {
	var c RunCounters
	c.Record(OutcomeInserted)
	c.Record(OutcomeInserted)
	c.Record(OutcomeDuplicateSkipped)
	c.Record(OutcomeFailed)

	assert.Equal(t, RunCounters{Inserted: 2, Duplicates: 1, Failed: 1}, c)

	var total RunCounters
	total.Add(c)
	total.Add(c)
	assert.Equal(t, 4, total.Inserted)
}
