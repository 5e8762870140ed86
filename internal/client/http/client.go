// Package http is the outbound JSON client shared by the Open Payments integrations. It adds
// opt-in retries, RFC 9421 request signing and correlation id forwarding on top of net/http.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cyphera/grantpay/internal/logger"
	"go.uber.org/zap"
)

// RequestOption mutates a single outgoing request.
type RequestOption func(*http.Request)

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// Middleware wraps the client's round tripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// HTTPError is returned for responses with status >= 400. Body is kept for classification and
// logging only; it is never forwarded to API callers.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Method     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d", e.Method, e.URL, e.StatusCode)
}

// RetryConfig enables exponential backoff. Only use it for idempotent requests.
type RetryConfig struct {
	MaxRetries           int
	InitialInterval      time.Duration
	MaxInterval          time.Duration
	Multiplier           float64
	MaxElapsedTime       time.Duration
	RetryableStatusCodes []int
}

// DefaultRetryConfig is tuned for wallet address lookups.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:           3,
		InitialInterval:      100 * time.Millisecond,
		MaxInterval:          2 * time.Second,
		Multiplier:           2.0,
		MaxElapsedTime:       10 * time.Second,
		RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
	}
}

func (r *RetryConfig) enabled() bool { return r != nil && r.MaxRetries > 0 }

func (r *RetryConfig) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.InitialInterval
	exp.MaxInterval = r.MaxInterval
	exp.Multiplier = r.Multiplier
	exp.MaxElapsedTime = r.MaxElapsedTime
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.MaxRetries)), ctx)
}

// HTTPClient sends JSON requests to absolute URLs.
type HTTPClient struct {
	client *http.Client
	retry  *RetryConfig
	chain  []Middleware
}

// NewHTTPClient builds a client. Middlewares apply in the order given, the first being outermost.
func NewHTTPClient(options ...ClientOption) *HTTPClient {
	c := &HTTPClient{client: &http.Client{Timeout: 30 * time.Second}}
	for _, option := range options {
		option(c)
	}

	transport := c.client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	for i := len(c.chain) - 1; i >= 0; i-- {
		transport = c.chain[i](transport)
	}
	c.client.Transport = transport
	return c
}

// WithTimeout bounds each attempt, not the whole retry sequence.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *HTTPClient) { c.client.Timeout = timeout }
}

func WithRetryConfig(config *RetryConfig) ClientOption {
	return func(c *HTTPClient) { c.retry = config }
}

func WithMiddleware(middleware Middleware) ClientOption {
	return func(c *HTTPClient) { c.chain = append(c.chain, middleware) }
}

// WithTransport sets the innermost round tripper.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *HTTPClient) { c.client.Transport = transport }
}

func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) { req.Header.Set(key, value) }
}

// WithGNAPToken authorizes the request with a GNAP access or continuation token.
func WithGNAPToken(token string) RequestOption {
	return WithHeader("Authorization", "GNAP "+token)
}

func newRequest(ctx context.Context, method, target string, body interface{}, options []RequestOption) (*http.Request, error) {
	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", target, err)
	}

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, option := range options {
		option(req)
	}
	return req, nil
}

// DoRequest sends a request to target. A status >= 400 comes back as *HTTPError together with
// the response, whose body is buffered and still readable.
func (c *HTTPClient) DoRequest(ctx context.Context, method, target string, body interface{}, options ...RequestOption) (*http.Response, error) {
	req, err := newRequest(ctx, method, target, body, options)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With(zap.String("method", method), zap.String("url", target))
	start := time.Now()

	resp, err := c.send(ctx, req)
	if err != nil {
		log.Error("HTTP request failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	if resp.StatusCode < http.StatusBadRequest {
		log.Debug("HTTP request succeeded", zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))
		return resp, nil
	}

	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	log.Warn("HTTP error response", zap.Int("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))
	return resp, &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		URL:        target,
		Method:     method,
		Body:       string(raw),
	}
}

// send performs one attempt, or several when retries are configured. When retries run out on a
// retryable status the last response is returned with an empty body.
func (c *HTTPClient) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	if !c.retry.enabled() {
		return c.client.Do(req)
	}

	var (
		last  *http.Response
		tries int
	)
	attempt := func() error {
		tries++
		if tries > 1 && req.GetBody != nil {
			fresh, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Body = fresh
		}

		resp, err := c.client.Do(req) //nolint:bodyclose // drained here or closed by the caller
		if err != nil {
			return err
		}
		last = resp
		if slices.Contains(c.retry.RetryableStatusCodes, resp.StatusCode) {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(nil))
			return fmt.Errorf("retryable status code: %d", resp.StatusCode)
		}
		return nil
	}

	err := backoff.Retry(attempt, c.retry.policy(ctx))
	if last != nil && slices.Contains(c.retry.RetryableStatusCodes, last.StatusCode) {
		return last, nil
	}
	if err != nil {
		return nil, err
	}
	return last, nil
}

// DoJSON sends a request and decodes a successful response into out, which may be nil.
func (c *HTTPClient) DoJSON(ctx context.Context, method, target string, body, out interface{}, options ...RequestOption) error {
	resp, err := c.DoRequest(ctx, method, target, body, options...)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, target, err)
	}
	return nil
}
