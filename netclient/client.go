// Package netclient provides an HTTP client with retry, timeout, and circuit
// breaker patterns for making requests to external providers: rate sources,
// and the Flutterwave/VTPass/Paystack bill-payment APIs. Adapted from the
// teacher's core/net package, which used the same shape for Horizon and
// anchor-server calls.
package netclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cngnbridge/core/errors"
)

// Default configuration values.
const (
	defaultTimeout      = 15 * time.Second
	defaultMaxRetries   = 3
	defaultBackoff      = 1 * time.Second
	defaultFailureLimit = 5
	defaultResetTimeout = 60 * time.Second
)

// Client is an HTTP client with retry, timeout, and circuit breaker
// capabilities, suitable for provider calls that carry their own per-call
// timeout (spec §5: ledger 10s, bill provider verify 15s/pay 30s/poll 15s).
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	retryBackoff   time.Duration
	circuitBreaker *circuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout (default: 15s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retry attempts (default: 3).
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBackoff sets the base duration for exponential backoff (default: 1s).
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.retryBackoff = d
	}
}

// New creates a new HTTP client with the given options.
func New(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultBackoff,
		circuitBreaker: &circuitBreaker{
			failureLimit: defaultFailureLimit,
			resetTimeout: defaultResetTimeout,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Response wraps an HTTP response.
type Response struct {
	*http.Response
}

// Get performs an HTTP GET request with retry and circuit breaker logic.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewNetClientError(errors.KindTransient, errors.REQUEST_FAILED, "failed to create GET request", err)
	}
	applyHeaders(req, headers)
	return c.do(req)
}

// PostJSON performs a JSON POST request with retry and circuit breaker logic.
func (c *Client) PostJSON(ctx context.Context, url string, payload any, headers map[string]string) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewNetClientError(errors.KindValidation, errors.REQUEST_FAILED, "failed to marshal request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewNetClientError(errors.KindTransient, errors.REQUEST_FAILED, "failed to create POST request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	applyHeaders(req, headers)
	return c.do(req)
}

// PostForm performs an HTTP POST request with form data.
func (c *Client) PostForm(ctx context.Context, urlStr string, data url.Values, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewNetClientError(errors.KindTransient, errors.REQUEST_FAILED, "failed to create POST form request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	applyHeaders(req, headers)
	return c.do(req)
}

// DecodeJSON reads and JSON-decodes resp.Body into v, closing the body.
func DecodeJSON(resp *Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

func applyHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

// do executes the HTTP request with retry logic and circuit breaker.
func (c *Client) do(req *http.Request) (*Response, error) {
	if !c.circuitBreaker.allowRequest() {
		return nil, errors.NewNetClientError(errors.KindTransient, errors.CIRCUIT_OPEN, "circuit breaker is open", nil)
	}

	// Buffer the request body so it can be replayed on retries.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, errors.NewNetClientError(errors.KindTransient, errors.REQUEST_FAILED, "failed to read request body", err)
		}
		req.Body.Close()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		select {
		case <-req.Context().Done():
			return nil, errors.NewNetClientError(errors.KindTransient, errors.REQUEST_FAILED, "request cancelled", req.Context().Err())
		default:
		}

		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries {
				c.backoff(attempt)
				continue
			}
			c.circuitBreaker.recordFailure()
			return nil, errors.NewNetClientError(errors.KindTransient, errors.REQUEST_FAILED, fmt.Sprintf("request failed after %d attempts", attempt+1), err)
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d %s", resp.StatusCode, resp.Status)
			if attempt < c.maxRetries {
				c.backoff(attempt)
				continue
			}
			c.circuitBreaker.recordFailure()
			return nil, errors.NewNetClientError(errors.KindTransient, errors.REQUEST_FAILED, fmt.Sprintf("server error after %d attempts: %s", attempt+1, resp.Status), lastErr)
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client error - permanent, not retried, but still handed back
			// to the caller so it can classify provider-specific codes.
			c.circuitBreaker.recordSuccess()
			return &Response{resp}, nil
		}

		c.circuitBreaker.recordSuccess()
		return &Response{resp}, nil
	}

	return nil, errors.NewNetClientError(errors.KindTransient, errors.REQUEST_FAILED, "unexpected retry exhaustion", lastErr)
}

// backoff implements exponential backoff with the formula: backoff * 2^attempt.
func (c *Client) backoff(attempt int) {
	duration := c.retryBackoff * (1 << uint(attempt))
	time.Sleep(duration)
}

// circuitBreaker implements a simple circuit breaker pattern.
type circuitBreaker struct {
	mu           sync.RWMutex
	failures     int
	lastFailTime time.Time
	failureLimit int
	resetTimeout time.Duration
	state        circuitState
}

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
)

func (cb *circuitBreaker) allowRequest() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.state == stateClosed {
		return true
	}
	return time.Since(cb.lastFailTime) > cb.resetTimeout
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = stateClosed
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailTime = time.Now()

	if cb.failures >= cb.failureLimit {
		cb.state = stateOpen
	}
}
