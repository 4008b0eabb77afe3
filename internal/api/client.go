// Package api provides a typed HTTP client for the feed backend.
// It handles connection pooling, bearer authentication, JSON and multipart
// request building, and error handling with retries.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Guliveer/feedsync-go/internal/auth"
	"github.com/Guliveer/feedsync-go/internal/constants"
	"github.com/Guliveer/feedsync-go/internal/logger"
)

// ErrCircuitOpen is returned when the circuit breaker is open and requests
// are being skipped to avoid hammering a failing backend.
var ErrCircuitOpen = errors.New("circuit breaker open: API requests temporarily suspended")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// circuitBreaker tracks consecutive failures and backs off when the backend
// keeps failing.
type circuitBreaker struct {
	mu               sync.Mutex
	consecutiveFails int
	cooldownUntil    time.Time
	now              func() time.Time
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	cb.consecutiveFails = 0
	cb.mu.Unlock()
}

// recordFailure increments the failure counter and, after 10 consecutive
// failures, opens the breaker for a growing cooldown capped at 5 minutes.
func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	cb.consecutiveFails++
	if cb.consecutiveFails >= 10 {
		backoff := time.Duration(cb.consecutiveFails-9) * 30 * time.Second
		if backoff > 5*time.Minute {
			backoff = 5 * time.Minute
		}
		cb.cooldownUntil = cb.now().Add(backoff)
	}
	cb.mu.Unlock()
}

func (cb *circuitBreaker) shouldSkip() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.now().Before(cb.cooldownUntil)
}

// Session is the token storage the client reads bearer credentials from
// and writes login results to. *auth.TokenStore satisfies it.
type Session interface {
	auth.Provider
	Set(token string) error
	Clear() error
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBackoff sets the base of the exponential retry backoff.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.retryBase = d
	}
}

// Client is the feed backend HTTP client with connection pooling,
// circuit breaker, and retry logic.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	session    Session
	log        *logger.Logger
	breaker    *circuitBreaker

	maxRetries int
	retryBase  time.Duration
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, session Session, log *logger.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", baseURL)
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   constants.DefaultHTTPTimeout,
		},
		baseURL:    u,
		session:    session,
		log:        log,
		breaker:    &circuitBreaker{now: time.Now},
		maxRetries: constants.DefaultMaxRetries,
		retryBase:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request describes one API call. The body is held as bytes so that every
// retry can replay it.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string

	// oneShot sends the request exactly once and leaves the circuit breaker
	// alone. The caller owns the retry schedule.
	oneShot bool
}

// retries returns how many times r may be resent after a transient failure.
// POST requests are never replayed: the backend may already have applied
// them (likes toggle, posts and comments duplicate).
func (c *Client) retries(r request) int {
	if r.oneShot {
		return 0
	}
	switch r.method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return c.maxRetries
	default:
		return 0
	}
}

func (c *Client) recordFailure(r request) {
	if !r.oneShot {
		c.breaker.recordFailure()
	}
}

func (c *Client) recordSuccess(r request) {
	if !r.oneShot {
		c.recordSuccess(r)
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs the HTTP request with auth headers and retry logic for
// transient errors on idempotent methods. Individual retries are logged at
// DEBUG; only the final failure is logged at WARN.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	if !r.oneShot && c.breaker.shouldSkip() {
		c.log.Debug("Circuit breaker open, skipping request", "operation", r.op)
		return nil, ErrCircuitOpen
	}

	maxRetries := c.retries(r)
	target := c.endpoint(r.path, r.query)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.retryBase
			c.log.Debug("Retrying API request",
				"operation", r.op,
				"attempt", fmt.Sprintf("%d/%d", attempt, maxRetries),
				"backoff", backoff)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var body io.Reader
		if r.body != nil {
			body = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, target, body)
		if err != nil {
			return nil, fmt.Errorf("creating %s request: %w", r.op, err)
		}

		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", constants.UserAgent)
		for k, v := range c.session.AuthHeaders() {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < maxRetries {
				c.log.Debug("API request failed, will retry",
					"operation", r.op,
					"attempt", fmt.Sprintf("%d/%d", attempt+1, maxRetries),
					"error", err)
				continue
			}
			c.log.Warn("API request failed after all retries",
				"operation", r.op,
				"attempts", maxRetries+1,
				"error", err)
			c.recordFailure(r)
			return nil, fmt.Errorf("%s request failed: %w", r.op, err)
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBytes))
		resp.Body.Close()

		if readErr != nil {
			if attempt < maxRetries {
				c.log.Debug("Failed to read API response, will retry",
					"operation", r.op,
					"attempt", fmt.Sprintf("%d/%d", attempt+1, maxRetries),
					"error", readErr)
				continue
			}
			c.recordFailure(r)
			return nil, fmt.Errorf("reading %s response: %w", r.op, readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt < maxRetries {
				c.log.Debug("API request returned retryable status, will retry",
					"operation", r.op,
					"status", resp.StatusCode,
					"attempt", fmt.Sprintf("%d/%d", attempt+1, maxRetries))
				continue
			}
			c.log.Warn("API request returned retryable status after all retries",
				"operation", r.op,
				"status", resp.StatusCode,
				"attempts", maxRetries+1)
			c.recordFailure(r)
			return nil, &StatusError{Op: r.op, StatusCode: resp.StatusCode, Body: trimBody(respBody)}
		}

		c.recordSuccess(r)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Op: r.op, StatusCode: resp.StatusCode, Body: trimBody(respBody)}
		}

		c.log.Debug("API request completed",
			"operation", r.op,
			"status", resp.StatusCode)

		return respBody, nil
	}

	return nil, fmt.Errorf("%s request exhausted retries", r.op)
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
