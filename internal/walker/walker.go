// Package walker drives paginated traversal of a source's archive.
package walker

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/veritium/crawler/internal/source"
)

// PageFetcher retrieves a single URL body. Satisfied by *fetch.Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Walker yields article URLs from a source's paginated archive. A walk
// is strictly sequential and not restartable mid-sequence: page N+1 is
// requested only after page N's links are exhausted.
type Walker struct {
	fetcher PageFetcher
	logger  *zap.Logger
}

// New constructs a Walker.
func New(fetcher PageFetcher, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{fetcher: fetcher, logger: logger}
}

// Walk fetches archive pages from startPage, extracts article links via
// the source's selector rules, and invokes visit for each URL not yet
// seen this run. It stops at the first of: maxPages pages consumed
// (when maxPages > 0), an archive page with no extractable links
// (end-of-archive), an archive page fetch failure (also treated as
// end-of-archive, never fatal to the run), a visit error, or context
// cancellation. Pagination overlap is expected; the per-run seen set
// keeps an article from being yielded twice.
func (w *Walker) Walk(
	ctx context.Context,
	src source.Strategy,
	startPage, maxPages int,
	visit func(articleURL string) error,
) error {
	seen := make(map[string]struct{})

	for page := startPage; maxPages <= 0 || page < startPage+maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("walk %s: %w", src.Name(), err)
		}

		archiveURL := src.ArchiveURL(page)
		w.logger.Info("fetching archive page",
			zap.String("source", src.Name()),
			zap.Int("page", page),
			zap.String("url", archiveURL))

		body, err := w.fetcher.Fetch(ctx, archiveURL)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("walk %s: %w", src.Name(), ctx.Err())
			}
			w.logger.Warn("archive page fetch failed, stopping walk",
				zap.String("source", src.Name()),
				zap.Int("page", page),
				zap.Error(err))
			return nil
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			w.logger.Warn("archive page unparseable, stopping walk",
				zap.String("source", src.Name()),
				zap.Int("page", page),
				zap.Error(err))
			return nil
		}

		links := src.ArticleLinks(doc)
		if len(links) == 0 {
			w.logger.Info("no article links found, assuming end of archive",
				zap.String("source", src.Name()),
				zap.Int("page", page))
			return nil
		}

		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			if err := visit(link); err != nil {
				return err
			}
		}
	}
	return nil
}
