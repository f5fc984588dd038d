// Package httpclient is the shared HTTP client for remote data sources. It
// applies a default per-request timeout, injects the User-Agent, exposes
// observability hooks and decodes JSON responses into typed errors.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/solarwindow/pvpoll/internal/errors"
)

const (
	// DefaultTimeout applies when the request context has no deadline
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies pvpoll to remote APIs
	DefaultUserAgent = "pvpoll/1.0 (+https://github.com/solarwindow/pvpoll)"

	defaultMaxIdleConnsPerHost = 4
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
	defaultDialTimeout         = 10 * time.Second
	defaultDialKeepAlive       = 30 * time.Second

	// maxBodyBytes bounds decoded response bodies
	maxBodyBytes = 1 << 20
)

// Client wraps http.Client with context timeouts and hooks. Safe for
// concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string
	component      string
	limiter        *rate.Limiter // nil means unlimited

	hookMu        sync.RWMutex
	beforeRequest func(*http.Request)
	afterResponse func(*http.Request, *http.Response, error, time.Duration)
}

// Config configures a Client. Zero values select the defaults.
type Config struct {
	DefaultTimeout time.Duration
	UserAgent      string

	// Component names the caller in built errors
	Component string

	// RateLimit caps requests per second, zero means unlimited. Burst
	// defaults to 1.
	RateLimit float64
	Burst     int

	// Transport replaces the pooled default transport, e.g. with a mock
	Transport http.RoundTripper
}

// New creates a Client. cfg may be nil.
func New(cfg *Config) *Client {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Component == "" {
		c.Component = "httpclient"
	}
	if c.Transport == nil {
		c.Transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   defaultDialTimeout,
				KeepAlive: defaultDialKeepAlive,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
			TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
		}
	}

	client := &Client{
		client:         &http.Client{Transport: c.Transport},
		defaultTimeout: c.DefaultTimeout,
		userAgent:      c.UserAgent,
		component:      c.Component,
	}
	if c.RateLimit > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(c.RateLimit), max(c.Burst, 1))
	}
	return client
}

// Do executes req. A context without deadline gets the default timeout.
// The response body must be closed by the caller if err is nil.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.defaultTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if cancel != nil {
				cancel()
			}
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.do(req)
	if cancel == nil {
		return resp, err
	}
	if err != nil {
		cancel()
		return nil, err
	}
	// the body outlives Do, so the timeout is released when it is closed
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.hookMu.RLock()
	before, after := c.beforeRequest, c.afterResponse
	c.hookMu.RUnlock()

	if before != nil {
		before(req)
	}
	started := time.Now()
	resp, err := c.client.Do(req)
	if after != nil {
		after(req, resp, err, time.Since(started))
	}
	return resp, err
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	return c.Do(ctx, req)
}

// GetJSON performs a GET request and decodes a 2xx JSON body into out.
// Failures are returned as enhanced errors categorised as timeout, network,
// http-request or response-parsing. URLs in error messages are scrubbed of
// credentials.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		category := errors.CategoryNetwork
		if ctxErr := context.Cause(ctx); ctxErr != nil || errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		return errors.Newf("request failed: %s", errors.ScrubMessage(err.Error())).
			Component(c.component).
			Category(category).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return errors.New(&StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}).
			Component(c.component).
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Build()
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return errors.New(fmt.Errorf("decode response: %w", err)).
			Component(c.component).
			Category(errors.CategoryParsing).
			Build()
	}
	return nil
}

// StatusError reports a non-2xx response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, errors.ScrubMessage(e.Body))
}

// SetBeforeRequestHook sets a function called before each request
func (c *Client) SetBeforeRequestHook(fn func(*http.Request)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.beforeRequest = fn
}

// SetAfterResponseHook sets a function called after each request with the
// outcome and its duration
func (c *Client) SetAfterResponseHook(fn func(*http.Request, *http.Response, error, time.Duration)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.afterResponse = fn
}

// Close closes idle pooled connections
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
