package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritium/crawler/internal/claim"
	"github.com/veritium/crawler/internal/metrics"
	"github.com/veritium/crawler/internal/store/postgres"
)

type memStore struct {
	mu          sync.Mutex
	nextID      int64
	bySourceURL map[string]int64
	byClaim     map[string]int64
	existsErr   error
	insertErr   error
	// blindExists makes Exists report false even for known rows, to
	// exercise the insert-race path.
	blindExists bool
}

func newMemStore() *memStore {
	return &memStore{
		bySourceURL: make(map[string]int64),
		byClaim:     make(map[string]int64),
	}
}

func (s *memStore) Exists(_ context.Context, sourceURL, claimText string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	if s.blindExists {
		return false, nil
	}
	_, byURL := s.bySourceURL[sourceURL]
	_, byText := s.byClaim[claimText]
	return byURL || byText, nil
}

func (s *memStore) Insert(_ context.Context, rec claim.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	if _, dup := s.bySourceURL[rec.SourceURL]; dup {
		return 0, postgres.ErrDuplicate
	}
	if _, dup := s.byClaim[rec.ClaimText]; dup {
		return 0, postgres.ErrDuplicate
	}
	s.nextID++
	s.bySourceURL[rec.SourceURL] = s.nextID
	s.byClaim[rec.ClaimText] = s.nextID
	return s.nextID, nil
}

type fakeIndex struct {
	mu       sync.Mutex
	vectors  map[int64][]float32
	payloads map[int64]map[string]any
	err      error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		vectors:  make(map[int64][]float32),
		payloads: make(map[int64]map[string]any),
	}
}

func (i *fakeIndex) Upsert(_ context.Context, id int64, vector []float32, payload map[string]any) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.vectors[id] = vector
	i.payloads[id] = payload
	return nil
}

type fakeEmbedder struct {
	err      error
	lastText string
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.lastText = text
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func testRecord() claim.Record {
	return claim.Record{
		ClaimText:   "The moon is made of cheese.",
		Verdict:     "False",
		SourceURL:   "https://www.politifact.com/factchecks/2024/jan/02/moon/",
		ShortPoints: []string{"It is rock."},
	}
}

func TestCommitInsertsNewClaim(t *testing.T) {
	store := newMemStore()
	index := newFakeIndex()
	embedder := &fakeEmbedder{}
	c := NewCommitter(store, index, embedder, nil)

	outcome, err := c.Commit(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, claim.OutcomeInserted, outcome)

	id := store.bySourceURL[testRecord().SourceURL]
	require.NotZero(t, id)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, index.vectors[id])
	assert.Equal(t, "The moon is made of cheese.\nIt is rock.", embedder.lastText)
	assert.Equal(t, "False", index.payloads[id]["verdict"])
	assert.Equal(t, testRecord().SourceURL, index.payloads[id]["source_url"])
}

func TestCommitSkipsKnownDuplicate(t *testing.T) {
	store := newMemStore()
	index := newFakeIndex()
	c := NewCommitter(store, index, &fakeEmbedder{}, nil)

	_, err := store.Insert(context.Background(), testRecord())
	require.NoError(t, err)

	outcome, err := c.Commit(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, claim.OutcomeDuplicateSkipped, outcome)
	assert.Empty(t, index.vectors, "duplicate must not reach the vector index")
}

func TestCommitSkipsInsertRace(t *testing.T) {
	store := newMemStore()
	c := NewCommitter(store, newFakeIndex(), &fakeEmbedder{}, nil)

	_, err := store.Insert(context.Background(), testRecord())
	require.NoError(t, err)
	store.blindExists = true

	outcome, err := c.Commit(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, claim.OutcomeDuplicateSkipped, outcome)
}

func TestCommitVectorFailureRetainsRow(t *testing.T) {
	store := newMemStore()
	index := newFakeIndex()
	index.err = errors.New("qdrant unreachable")
	c := NewCommitter(store, index, &fakeEmbedder{}, nil)

	outcome, err := c.Commit(context.Background(), testRecord())
	require.Error(t, err)
	assert.Equal(t, claim.OutcomeFailed, outcome)
	assert.Contains(t, store.bySourceURL, testRecord().SourceURL,
		"the relational row must survive a vector failure")

	// With the index healthy again the retained row makes the retry a
	// duplicate skip, never a second insert.
	index.err = nil
	outcome, err = c.Commit(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, claim.OutcomeDuplicateSkipped, outcome)
	assert.Equal(t, int64(1), store.nextID)
}

func TestCommitEmbedFailureRetainsRow(t *testing.T) {
	store := newMemStore()
	c := NewCommitter(store, newFakeIndex(), &fakeEmbedder{err: errors.New("model offline")}, nil)

	embedBefore := testutil.ToFloat64(metrics.EmbeddingFailures)
	upsertBefore := testutil.ToFloat64(metrics.VectorUpsertFailures)

	outcome, err := c.Commit(context.Background(), testRecord())
	require.Error(t, err)
	assert.Equal(t, claim.OutcomeFailed, outcome)
	assert.Contains(t, store.bySourceURL, testRecord().SourceURL)

	// A dead embedding provider and a dead vector index are distinct
	// outages and must land in distinct counters.
	assert.Equal(t, embedBefore+1, testutil.ToFloat64(metrics.EmbeddingFailures))
	assert.Equal(t, upsertBefore, testutil.ToFloat64(metrics.VectorUpsertFailures))
}

func TestCommitRejectsInvalidRecord(t *testing.T) {
	c := NewCommitter(newMemStore(), newFakeIndex(), &fakeEmbedder{}, nil)

	outcome, err := c.Commit(context.Background(), claim.Record{SourceURL: "https://example.com/x"})
	require.Error(t, err)
	assert.Equal(t, claim.OutcomeFailed, outcome)
}

func TestCommitExistsErrorFails(t *testing.T) {
	store := newMemStore()
	store.existsErr = fmt.Errorf("connection reset")
	c := NewCommitter(store, newFakeIndex(), &fakeEmbedder{}, nil)

	outcome, err := c.Commit(context.Background(), testRecord())
	require.Error(t, err)
	assert.Equal(t, claim.OutcomeFailed, outcome)
}
