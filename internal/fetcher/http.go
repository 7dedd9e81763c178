// Package fetcher retrieves page content under per-host rate limiting,
// connection reuse, and retry with exponential backoff.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/MellowMango/apartment-search-sub005/internal/resilience"
)

const maxBodyBytes = 2 * 1024 * 1024

// Options configures the Fetcher.
type Options struct {
	UserAgent    string
	Timeout      time.Duration // per-call, independent of retries
	MaxAttempts  int           // total attempts including the first
	MaxRedirects int
	PerHostRPS   float64 // token-bucket refill rate per host
	PerHostBurst int
	Backoff      resilience.BackoffConfig
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = "faculty-pipeline/1.0"
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.MaxRedirects == 0 {
		o.MaxRedirects = 5
	}
	if o.PerHostRPS == 0 {
		o.PerHostRPS = 2
	}
	if o.PerHostBurst == 0 {
		o.PerHostBurst = 2
	}
	return o
}

// Result holds fetched content plus metadata.
type Result struct {
	StatusCode int
	FinalURL   string // after redirects
	Body       []byte
	Elapsed    time.Duration
}

// Fetcher fetches URLs over HTTP. The per-host limiter map is the only
// mutable state; it is scoped to one pipeline run, so independent runs do
// not accumulate host entries.
type Fetcher struct {
	client *http.Client
	opts   Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher with pooled connections and a redirect cap.
func New(opts Options) *Fetcher {
	opts = opts.withDefaults()
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= opts.MaxRedirects {
					return eris.Errorf("stopped after %d redirects", opts.MaxRedirects)
				}
				return nil
			},
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiter returns the token bucket for a host, creating it on first use.
func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.opts.PerHostRPS), f.opts.PerHostBurst)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch retrieves a URL. Transient failures (connection reset, 5xx, timeout,
// 429) are retried up to MaxAttempts with exponential backoff and jitter; a
// Retry-After hint on 429 is honored when parseable. Client errors other
// than 429 are returned as permanent without retry.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		if err == nil {
			err = eris.Errorf("not an absolute http(s) url: %s", rawURL)
		}
		return nil, resilience.NewPermanentError(eris.Wrap(err, "fetch: parse url"), 0)
	}

	lim := f.limiter(parsed.Host)

	var lastErr error
	for attempt := 0; attempt < f.opts.MaxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		result, retryAfter, err := f.doOnce(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}
		if !resilience.IsTransient(err) {
			return nil, lastErr
		}
		if attempt >= f.opts.MaxAttempts-1 {
			break
		}

		delay := f.opts.Backoff.Delay(attempt)
		if retryAfter > 0 {
			delay = retryAfter
		}
		zap.L().Warn("fetch: transient failure, retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, lastErr
		case <-t.C:
		}
	}

	return nil, eris.Wrap(lastErr, "fetch: all attempts exhausted")
}

// doOnce performs a single request. The second return value is the
// Retry-After hint from a 429 response, zero otherwise.
func (f *Fetcher) doOnce(ctx context.Context, rawURL string) (*Result, time.Duration, error) {
	callCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, resilience.NewPermanentError(eris.Wrap(err, "fetch: create request"), 0)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "fetch: execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		hint := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, hint, resilience.NewTransientError(
			eris.Errorf("http 429 from %s", rawURL), resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return nil, 0, resilience.NewTransientError(
			eris.Errorf("http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, 0, resilience.NewPermanentError(
			eris.Errorf("http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, eris.Wrap(err, "fetch: read body")
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
		Body:       body,
		Elapsed:    time.Since(start),
	}, 0, nil
}

// parseRetryAfter handles delay-seconds and HTTP-date forms.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
