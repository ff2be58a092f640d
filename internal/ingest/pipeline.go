package ingest

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veritium/crawler/internal/claim"
	"github.com/veritium/crawler/internal/metrics"
	"github.com/veritium/crawler/internal/source"
	"github.com/veritium/crawler/internal/walker"
)

// Options bound a pipeline run.
type Options struct {
	StartPage int
	MaxPages  int

	// PolitenessDelay is the minimum interval between any two HTTP
	// requests to the sources, independent of retry backoff.
	PolitenessDelay time.Duration
}

// Pipeline runs the full crawl for a configured set of sources: walk
// each archive, fetch and extract each article, commit each record.
// Sources are processed sequentially so per-host politeness holds.
type Pipeline struct {
	fetcher   walker.PageFetcher
	committer *Committer
	sources   []source.Strategy
	opts      Options
	logger    *zap.Logger
}

// NewPipeline constructs a Pipeline. When opts.PolitenessDelay is
// positive every fetch, archive page or article alike, is gated behind
// a shared rate limiter.
func NewPipeline(fetcher walker.PageFetcher, committer *Committer, sources []source.Strategy, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StartPage <= 0 {
		opts.StartPage = 1
	}
	if opts.PolitenessDelay > 0 {
		fetcher = &politeFetcher{
			inner:   fetcher,
			limiter: rate.NewLimiter(rate.Every(opts.PolitenessDelay), 1),
		}
	}
	return &Pipeline{
		fetcher:   fetcher,
		committer: committer,
		sources:   sources,
		opts:      opts,
		logger:    logger,
	}
}

// Run crawls every source and returns the aggregate counters. A source
// failing never aborts the run; only context cancellation does.
func (p *Pipeline) Run(ctx context.Context) (claim.RunCounters, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("ingestion run starting", zap.Int("sources", len(p.sources)))

	var total claim.RunCounters
	for _, src := range p.sources {
		counters, err := p.runSource(ctx, src, logger)
		total.Add(counters)
		logger.Info("source finished",
			zap.String("source", src.Name()),
			zap.Int("inserted", counters.Inserted),
			zap.Int("duplicates", counters.Duplicates),
			zap.Int("failed", counters.Failed))
		if err != nil {
			logger.Warn("ingestion run interrupted", zap.Error(err))
			return total, err
		}
	}

	logger.Info("ingestion run finished",
		zap.Int("inserted", total.Inserted),
		zap.Int("duplicates", total.Duplicates),
		zap.Int("failed", total.Failed))
	return total, nil
}

func (p *Pipeline) runSource(ctx context.Context, src source.Strategy, logger *zap.Logger) (claim.RunCounters, error) {
	var counters claim.RunCounters
	w := walker.New(p.fetcher, logger)

	err := w.Walk(ctx, src, p.opts.StartPage, p.opts.MaxPages, func(articleURL string) error {
		outcome := p.processArticle(ctx, src, articleURL, logger)
		counters.Record(outcome)
		switch outcome {
		case claim.OutcomeInserted:
			metrics.ClaimsInserted.WithLabelValues(src.Name()).Inc()
		case claim.OutcomeDuplicateSkipped:
			metrics.ClaimsDuplicate.WithLabelValues(src.Name()).Inc()
		case claim.OutcomeFailed:
			metrics.ClaimsFailed.WithLabelValues(src.Name()).Inc()
		}
		return ctx.Err()
	})
	return counters, err
}

// processArticle covers one URL end to end. Every failure mode maps to
// OutcomeFailed and the walk continues with the next article.
func (p *Pipeline) processArticle(ctx context.Context, src source.Strategy, articleURL string, logger *zap.Logger) claim.Outcome {
	body, err := p.fetcher.Fetch(ctx, articleURL)
	if err != nil {
		logger.Warn("article fetch failed",
			zap.String("source", src.Name()),
			zap.String("url", articleURL),
			zap.Error(err))
		return claim.OutcomeFailed
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		logger.Warn("article unparseable",
			zap.String("source", src.Name()),
			zap.String("url", articleURL),
			zap.Error(err))
		return claim.OutcomeFailed
	}

	rec, ok := src.Extract(doc, articleURL)
	if !ok {
		logger.Warn("article missing claim text, discarded",
			zap.String("source", src.Name()),
			zap.String("url", articleURL))
		return claim.OutcomeFailed
	}

	outcome, err := p.committer.Commit(ctx, rec)
	if err != nil {
		logger.Warn("commit failed",
			zap.String("source", src.Name()),
			zap.String("url", articleURL),
			zap.Error(err))
	}
	return outcome
}

// politeFetcher spaces requests out with a shared limiter before
// delegating to the real fetcher.
type politeFetcher struct {
	inner   walker.PageFetcher
	limiter *rate.Limiter
}

func (f *politeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return f.inner.Fetch(ctx, url)
}
