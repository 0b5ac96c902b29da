package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFetcher(retries int) *HTTPFetcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, Config{
		Timeout:      2 * time.Second,
		Retries:      retries,
		BaseBackoff:  time.Millisecond,
		MaxBackoff:   5 * time.Millisecond,
		RateLimitRPS: 1000,
		RateBurst:    100,
	})
}

func TestGetFollowsRedirectsAndReportsFinalURL(t *testing.T) {
	target := "/maps/place/Golden+Dragon/@22.19,113.54,17z"
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/short" {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := newTestFetcher(0).Get(context.Background(), srv.URL+"/short")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := srv.URL + target
	if resp.FinalURL != want {
		t.Fatalf("expected final url %q, got %q", want, resp.FinalURL)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Status)
	}
}

func TestGetRetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := newTestFetcher(2).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestGetReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Get(context.Background(), srv.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusNotFound {
		t.Fatalf("unexpected status %d", statusErr.Status)
	}
}

func TestGetHonorsCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestFetcher(2).Get(ctx, srv.URL); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}

func TestBackoffDuration(t *testing.T) {
	base := 100 * time.Millisecond
	if got := backoffDuration(base, 2, nil); got != 400*time.Millisecond {
		t.Fatalf("unexpected backoff %v", got)
	}
	got := backoffDuration(base, 0, func(max int64) int64 { return max })
	if got != 200*time.Millisecond {
		t.Fatalf("unexpected backoff with jitter %v", got)
	}
}

func TestHostRateLimiterSharesBucketPerHost(t *testing.T) {
	l := NewHostRateLimiter(1, 1)
	if l.limiterFor("Maps.App.Goo.Gl") != l.limiterFor("maps.app.goo.gl") {
		t.Fatalf("expected host keys to be case-insensitive")
	}
	if l.limiterFor("a.example") == l.limiterFor("b.example") {
		t.Fatalf("expected separate buckets per host")
	}
	if err := l.Wait(context.Background(), ""); err != nil {
		t.Fatalf("empty host must not block: %v", err)
	}
}
