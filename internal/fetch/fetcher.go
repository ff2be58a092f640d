// Package fetch implements single-URL HTTP retrieval with bounded
// retry and backoff. Failures are classified as permanent (give up on
// the URL immediately) or retryable (back off and try again until the
// retry budget runs out).
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veritium/crawler/internal/metrics"
)

// ErrRetriesExhausted is returned once the per-URL retry budget is spent.
// Callers treat it like a permanent failure: skip the URL, continue the run.
var ErrRetriesExhausted = errors.New("fetch: retry budget exhausted")

// PermanentError marks a response that will not improve with retries
// (HTTP 4xx other than 429).
type PermanentError struct {
	URL        string
	StatusCode int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("fetch: permanent failure %d for %s", e.StatusCode, e.URL)
}

// Config controls Fetcher behavior.
type Config struct {
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	MaxBytes   int64
	Logger     *zap.Logger
}

// Fetcher issues GET requests with linear backoff. Each URL's retry
// budget is independent; there is no circuit breaker across URLs.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	maxBytes   int64
	logger     *zap.Logger

	// Distinct backoff bases for HTTP-level and transport-level errors,
	// scaled linearly by attempt number.
	httpBackoffBase      time.Duration
	transportBackoffBase time.Duration
}

// New builds a Fetcher with a pooled transport.
func New(cfg Config) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: newHTTPTransport(),
		},
		userAgent:            cfg.UserAgent,
		maxRetries:           maxRetries,
		maxBytes:             maxBytes,
		logger:               logger,
		httpBackoffBase:      500 * time.Millisecond,
		transportBackoffBase: 750 * time.Millisecond,
	}
}

// Fetch retrieves url, retrying up to MaxRetries times. It returns the
// response body on HTTP 200, a *PermanentError for non-retryable
// statuses, and ErrRetriesExhausted once the budget is spent.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		if attempt > 1 {
			metrics.TotalRetries.Inc()
		}
		body, retryAfter, err := f.attempt(ctx, url)
		if err == nil {
			return body, nil
		}
		var perm *PermanentError
		if errors.As(err, &perm) {
			metrics.TotalFetchFailures.Inc()
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		if attempt < f.maxRetries {
			backoff := retryAfter * time.Duration(attempt)
			f.logger.Warn("fetch failed, backing off",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			if !pause(ctx, backoff) {
				return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
			}
		}
	}
	metrics.TotalFetchFailures.Inc()
	return nil, fmt.Errorf("%s after %d attempts: %w", url, f.maxRetries, ErrRetriesExhausted)
}

// attempt performs one GET. On failure it returns the backoff base to
// scale by the attempt number.
func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &PermanentError{URL: url, StatusCode: 0}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	metrics.TotalRequests.Inc()
	resp, err := f.client.Do(req)
	if err != nil {
		// Connection reset, timeout, DNS failure: all retryable.
		return nil, f.transportBackoffBase, fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
		if readErr != nil {
			return nil, f.transportBackoffBase, fmt.Errorf("read body: %w", readErr)
		}
		return body, 0, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.TotalRateLimitHits.Inc()
		return nil, f.httpBackoffBase, fmt.Errorf("http status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, 0, &PermanentError{URL: url, StatusCode: resp.StatusCode}
	default:
		// 5xx and anything else unexpected.
		return nil, f.httpBackoffBase, fmt.Errorf("http status %d", resp.StatusCode)
	}
}

// pause sleeps for delay unless the context finishes first. It reports
// whether the full delay elapsed.
func pause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
