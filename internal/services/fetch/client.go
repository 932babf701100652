// Package fetch provides the shared HTTP fetch client used by the
// analyzer and the HTTP-consumable miners: fixed user agent, redirect
// cap, and per-domain politeness pacing.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
)

// maxBodyBytes caps how much HTML is read from any response
const maxBodyBytes = 5 * 1024 * 1024

// Result is a completed fetch
type Result struct {
	URL       string
	FinalURL  string
	HTTPCode  int
	HTML      string
	FromCache bool
}

// Client wraps http.Client with politeness pacing and cache handoff
type Client struct {
	httpClient *http.Client
	userAgent  string
	cache      interfaces.HTMLCache
	logger     arbor.ILogger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	minDelay time.Duration
}

// NewClient creates a fetch client. cache may be nil to disable memoization.
func NewClient(cfg common.CrawlerConfig, cache interfaces.HTMLCache, logger arbor.ILogger) *Client {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 5
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	// Cookie jar carries directory login sessions across requests
	jar, _ := cookiejar.New(nil)

	httpClient := &http.Client{
		Timeout: timeout,
		Jar:     jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	minDelay := cfg.ListPageDelay
	if minDelay < 500*time.Millisecond {
		minDelay = 500 * time.Millisecond
	}

	return &Client{
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		cache:      cache,
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
		minDelay:   minDelay,
	}
}

// Fetch GETs a URL, consulting and populating the HTML cache. Cached
// entries skip both the network and the politeness wait.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if c.cache != nil {
		if entry, ok := c.cache.Get(rawURL); ok {
			return &Result{
				URL:       rawURL,
				FinalURL:  rawURL,
				HTTPCode:  entry.HTTPCode,
				HTML:      entry.HTML,
				FromCache: true,
			}, nil
		}
	}

	result, err := c.FetchUncached(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(rawURL, &interfaces.HTMLCacheEntry{
			HTML:     result.HTML,
			HTTPCode: result.HTTPCode,
		})
	}
	return result, nil
}

// FetchUncached GETs a URL without touching the cache. Transient network
// failures are retried once.
func (c *Client) FetchUncached(ctx context.Context, rawURL string) (*Result, error) {
	if err := c.wait(ctx, rawURL); err != nil {
		return nil, err
	}

	result, err := c.doFetch(ctx, rawURL)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.logger.Debug().Err(err).Str("url", rawURL).Msg("Fetch failed, retrying once")
	if werr := c.wait(ctx, rawURL); werr != nil {
		return nil, werr
	}
	return c.doFetch(ctx, rawURL)
}

func (c *Client) doFetch(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", rawURL, err)
	}

	return &Result{
		URL:      rawURL,
		FinalURL: resp.Request.URL.String(),
		HTTPCode: resp.StatusCode,
		HTML:     string(body),
	}, nil
}

// PostForm submits a form (directory logins). The response body is
// returned so callers can check for login failure markers; the session
// cookie lands in the shared jar.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*Result, error) {
	if err := c.wait(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", rawURL, err)
	}
	return &Result{
		URL:      rawURL,
		FinalURL: resp.Request.URL.String(),
		HTTPCode: resp.StatusCode,
		HTML:     string(body),
	}, nil
}

// Download GETs arbitrary bytes (PDF downloads); no cache involvement.
func (c *Client) Download(ctx context.Context, rawURL string, maxBytes int64) ([]byte, int, error) {
	if err := c.wait(ctx, rawURL); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read download %s: %w", rawURL, err)
	}
	return data, resp.StatusCode, nil
}

// wait blocks until the per-domain pacing allows another request
func (c *Client) wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	if host == "" {
		return nil
	}

	c.mu.Lock()
	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(c.minDelay), 1)
		c.limiters[host] = limiter
	}
	c.mu.Unlock()

	return limiter.Wait(ctx)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
