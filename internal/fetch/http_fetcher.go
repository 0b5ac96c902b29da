package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; RestodirMapResolver/1.0)"

const maxRedirects = 10

// Response is a fetched page together with where the redirect chain ended.
type Response struct {
	Body     []byte
	Status   int
	FinalURL string
}

// StatusError is returned when the last attempt still answered with a failing status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

// HTTPFetcher performs rate-limited GETs with retries on transient failures.
type HTTPFetcher struct {
	client      *http.Client
	retries     int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	limiter     *HostRateLimiter
	logger      *slog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

// Config tunes an HTTPFetcher. Zero values pick defaults.
type Config struct {
	Timeout      time.Duration
	Retries      int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	RateLimitRPS float64
	RateBurst    int
	Transport    http.RoundTripper
}

// New creates an HTTPFetcher.
func New(logger *slog.Logger, cfg Config) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 12 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 3 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 1.5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 2
	}
	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          64,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       60 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		retries:     cfg.Retries,
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
		limiter:     NewHostRateLimiter(cfg.RateLimitRPS, cfg.RateBurst),
		logger:      logger,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Get follows redirects from rawURL and returns the final page. Statuses of 400 and
// above are reported as *StatusError once retries are spent.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	if f == nil {
		return nil, errors.New("fetcher is nil")
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	host := parsedURL.Hostname()

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if err := f.limiter.Wait(ctx, host); err != nil {
			return nil, err
		}
		resp, err := f.doRequest(ctx, rawURL)
		if err == nil {
			if shouldRetryStatus(resp.Status) && attempt < f.retries {
				lastErr = &StatusError{URL: rawURL, Status: resp.Status}
				f.logger.Warn("fetch_retry_status", "host", host, "status", resp.Status, "attempt", attempt+1)
				if err := f.sleepBackoff(ctx, attempt); err != nil {
					return nil, err
				}
				continue
			}
			if resp.Status >= http.StatusBadRequest {
				return resp, &StatusError{URL: rawURL, Status: resp.Status}
			}
			return resp, nil
		}
		lastErr = err
		if !isTransientError(ctx, err) || attempt >= f.retries {
			return nil, err
		}
		f.logger.Warn("fetch_retry_error", "host", host, "attempt", attempt+1, "error", err)
		if err := f.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

func (f *HTTPFetcher) doRequest(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8,zh-TW;q=0.6,pt-PT;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}
	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{Body: body, Status: resp.StatusCode, FinalURL: finalURL}, nil
}

func (f *HTTPFetcher) sleepBackoff(ctx context.Context, attempt int) error {
	d := backoffDuration(f.baseBackoff, attempt, f.jitter)
	if d > f.maxBackoff {
		d = f.maxBackoff
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (f *HTTPFetcher) jitter(max int64) int64 {
	if max <= 0 {
		return 0
	}
	f.randMu.Lock()
	defer f.randMu.Unlock()
	return f.rand.Int63n(max + 1)
}

func shouldRetryStatus(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}

// isTransientError treats timeouts as retryable unless the caller's own context is done.
func isTransientError(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
