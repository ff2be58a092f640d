package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritium/crawler/internal/source"
)

type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: retries exhausted", url)
	}
	return []byte(body), nil
}

const politifactArchivePage = `<html><body>
<div class="m-statement__quote"><a href="/factchecks/2024/jan/02/first/">First claim</a></div>
<div class="m-statement__quote"><a href="/factchecks/2024/jan/03/second/">Second claim</a></div>
</body></html>`

func politifactArticle(title, verdict string) string {
	return fmt.Sprintf(`<html><body>
<article class="m-statement m-statement--%s">
<h1 class="c-title">%s</h1>
<img src="/static/img/meter-%s.jpg" alt="%s">
<span class="m-author__date">January 2, 2024</span>
</article>
</body></html>`, verdict, title, verdict, verdict)
}

const (
	archiveURL = "https://www.politifact.com/factchecks/?page=1"
	firstURL   = "https://www.politifact.com/factchecks/2024/jan/02/first/"
	secondURL  = "https://www.politifact.com/factchecks/2024/jan/03/second/"
)

func politifactPipeline(t *testing.T, fetcher *fakeFetcher, store *memStore, index *fakeIndex) *Pipeline {
	t.Helper()
	committer := NewCommitter(store, index, &fakeEmbedder{}, nil)
	sources := source.Registry([]string{"politifact"})
	require.Len(t, sources, 1)
	return NewPipeline(fetcher, committer, sources, Options{StartPage: 1, MaxPages: 1}, nil)
}

func TestPipelineEndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		archiveURL: politifactArchivePage,
		firstURL:   politifactArticle("The sky is green.", "false"),
		secondURL:  politifactArticle("Water is wet.", "true"),
	}}
	store := newMemStore()
	index := newFakeIndex()

	counters, err := politifactPipeline(t, fetcher, store, index).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counters.Inserted)
	assert.Equal(t, 0, counters.Duplicates)
	assert.Equal(t, 0, counters.Failed)

	require.Len(t, index.vectors, 2)
	for url := range map[string]struct{}{firstURL: {}, secondURL: {}} {
		id := store.bySourceURL[url]
		require.NotZero(t, id, "row for %s", url)
		assert.Contains(t, index.vectors, id, "vector point id must match row id")
		assert.Equal(t, url, index.payloads[id]["source_url"])
	}

	// Re-running against the same stores is a no-op apart from the
	// duplicate tallies.
	counters, err = politifactPipeline(t, fetcher, store, index).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, counters.Inserted)
	assert.Equal(t, 2, counters.Duplicates)
	assert.Equal(t, 0, counters.Failed)
}

func TestPipelineContinuesAfterArticleFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		archiveURL: politifactArchivePage,
		secondURL:  politifactArticle("Water is wet.", "true"),
	}}
	store := newMemStore()

	counters, err := politifactPipeline(t, fetcher, store, newFakeIndex()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Inserted)
	assert.Equal(t, 1, counters.Failed)
	assert.Contains(t, store.bySourceURL, secondURL)
}

func TestPipelineDiscardsArticleWithoutClaim(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		archiveURL: politifactArchivePage,
		firstURL:   `<html><body><p>Quiz of the week</p></body></html>`,
		secondURL:  politifactArticle("Water is wet.", "true"),
	}}
	store := newMemStore()

	counters, err := politifactPipeline(t, fetcher, store, newFakeIndex()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Inserted)
	assert.Equal(t, 1, counters.Failed)
	assert.NotContains(t, store.bySourceURL, firstURL)
}

func TestPipelineRespectsMaxPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		archiveURL: politifactArchivePage,
		firstURL:   politifactArticle("The sky is green.", "false"),
		secondURL:  politifactArticle("Water is wet.", "true"),
	}}

	_, err := politifactPipeline(t, fetcher, newMemStore(), newFakeIndex()).Run(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, fetcher.calls, "https://www.politifact.com/factchecks/?page=2")
}

func TestPipelineStopsOnCanceledContext(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := politifactPipeline(t, fetcher, newMemStore(), newFakeIndex()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.calls)
}
