package walker_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritium/crawler/internal/source"
	"github.com/veritium/crawler/internal/walker"
)

// pageFetcher serves canned archive bodies keyed by URL.
type pageFetcher struct {
	pages   map[string][]byte
	fetched []string
}

func (f *pageFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.fetched = append(f.fetched, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, errors.New("boom")
	}
	return body, nil
}

func archivePage(links ...string) []byte {
	html := "<html><body>"
	for _, l := range links {
		html += fmt.Sprintf(`<div class="m-statement__quote"><a href="%s">x</a></div>`, l)
	}
	return []byte(html + "</body></html>")
}

func politifactArchiveURL(page int) string {
	return source.PolitiFact{}.ArchiveURL(page)
}

func TestWalkStopsAtEmptyPage(t *testing.T) {
	src := source.PolitiFact{}
	f := &pageFetcher{pages: map[string][]byte{
		politifactArchiveURL(1): archivePage("/factchecks/a/"),
		politifactArchiveURL(2): archivePage("/factchecks/b/", "/factchecks/c/"),
		politifactArchiveURL(3): archivePage("/factchecks/d/"),
		politifactArchiveURL(4): archivePage(),
		politifactArchiveURL(5): archivePage("/factchecks/never/"),
	}}

	var visited []string
	err := walker.New(f, nil).Walk(context.Background(), src, 1, 0, func(u string) error {
		visited = append(visited, u)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, visited, 4)
	assert.NotContains(t, visited, "https://www.politifact.com/factchecks/never/")
	assert.NotContains(t, f.fetched, politifactArchiveURL(5), "walk must stop before page 5")
}

func TestWalkHonorsMaxPages(t *testing.T) {
	src := source.PolitiFact{}
	f := &pageFetcher{pages: map[string][]byte{
		politifactArchiveURL(1): archivePage("/factchecks/a/"),
		politifactArchiveURL(2): archivePage("/factchecks/b/"),
		politifactArchiveURL(3): archivePage("/factchecks/c/"),
	}}

	var visited []string
	err := walker.New(f, nil).Walk(context.Background(), src, 1, 2, func(u string) error {
		visited = append(visited, u)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, visited, 2)
	assert.Len(t, f.fetched, 2)
}

func TestWalkSuppressesPaginationOverlap(t *testing.T) {
	src := source.PolitiFact{}
	f := &pageFetcher{pages: map[string][]byte{
		politifactArchiveURL(1): archivePage("/factchecks/a/", "/factchecks/b/"),
		politifactArchiveURL(2): archivePage("/factchecks/b/", "/factchecks/c/"),
	}}

	var visited []string
	err := walker.New(f, nil).Walk(context.Background(), src, 1, 2, func(u string) error {
		visited = append(visited, u)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://www.politifact.com/factchecks/a/",
		"https://www.politifact.com/factchecks/b/",
		"https://www.politifact.com/factchecks/c/",
	}, visited)
}

func TestWalkFetchFailureEndsWalkQuietly(t *testing.T) {
	src := source.PolitiFact{}
	f := &pageFetcher{pages: map[string][]byte{
		politifactArchiveURL(1): archivePage("/factchecks/a/"),
		// page 2 missing: fetch error
	}}

	var visited []string
	err := walker.New(f, nil).Walk(context.Background(), src, 1, 0, func(u string) error {
		visited = append(visited, u)
		return nil
	})
	require.NoError(t, err, "archive fetch failure is end-of-archive, not fatal")
	assert.Len(t, visited, 1)
}

func TestWalkPropagatesVisitError(t *testing.T) {
	src := source.PolitiFact{}
	f := &pageFetcher{pages: map[string][]byte{
		politifactArchiveURL(1): archivePage("/factchecks/a/"),
	}}

	wantErr := errors.New("visit failed")
	err := walker.New(f, nil).Walk(context.Background(), src, 1, 0, func(string) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
}

func TestWalkStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &pageFetcher{pages: map[string][]byte{}}
	err := walker.New(f, nil).Walk(ctx, source.PolitiFact{}, 1, 0, func(string) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.fetched)
}
