package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MellowMango/apartment-search-sub005/internal/resilience"
)

func fastBackoff() resilience.BackoffConfig {
	return resilience.BackoffConfig{
		Initial:        time.Millisecond,
		Max:            5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f := New(Options{UserAgent: "test-agent/1.0", PerHostRPS: 1000, PerHostBurst: 100})
	result, err := f.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, string(result.Body), "hello")
	assert.Equal(t, srv.URL, result.FinalURL)
}

func TestFetchRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Options{MaxAttempts: 3, PerHostRPS: 1000, PerHostBurst: 100, Backoff: fastBackoff()})
	result, err := f.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "ok", string(result.Body))
}

func TestFetchDoesNotRetry404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Options{MaxAttempts: 3, PerHostRPS: 1000, PerHostBurst: 100, Backoff: fastBackoff()})
	_, err := f.Fetch(context.Background(), srv.URL)

	require.Error(t, err)
	assert.True(t, resilience.IsPermanent(err))
	assert.Equal(t, int32(1), calls.Load(), "client errors must not be retried")
}

func TestFetchRetries429WithRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Options{MaxAttempts: 2, PerHostRPS: 1000, PerHostBurst: 100, Backoff: fastBackoff()})
	start := time.Now()
	result, err := f.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(result.Body))
	assert.GreaterOrEqual(t, time.Since(start), time.Second, "Retry-After hint must be honored")
}

func TestFetchExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := New(Options{MaxAttempts: 3, PerHostRPS: 1000, PerHostBurst: 100, Backoff: fastBackoff()})
	_, err := f.Fetch(context.Background(), srv.URL)

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	f := New(Options{})

	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "/relative/path"} {
		_, err := f.Fetch(context.Background(), raw)
		require.Error(t, err, "url %q", raw)
		assert.True(t, resilience.IsPermanent(err), "url %q", raw)
	}
}

func TestFetchCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := New(Options{PerHostRPS: 1000, PerHostBurst: 100, Backoff: fastBackoff()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
}

func TestFetchPerHostRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// 10 rps, burst 1: three sequential fetches need two refill waits.
	f := New(Options{PerHostRPS: 10, PerHostBurst: 1, Backoff: fastBackoff()})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("garbage"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))

	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	d := parseRetryAfter(future)
	assert.Greater(t, d, 8*time.Second)
	assert.LessOrEqual(t, d, 10*time.Second)
}

func TestFetchFollowsRedirects(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/final", http.StatusMovedPermanently)
			return
		}
		w.Write([]byte("landed"))
	}))
	defer target.Close()

	f := New(Options{PerHostRPS: 1000, PerHostBurst: 100})
	result, err := f.Fetch(context.Background(), target.URL+"/start")

	require.NoError(t, err)
	assert.Equal(t, "landed", string(result.Body))
	assert.Equal(t, target.URL+"/final", result.FinalURL)
}
