// Package apiclient talks to the storefront backend REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/storefront/internal/cookie"
	"github.com/example/storefront/internal/metrics"
)

const (
	DefaultTimeout  = 30 * time.Second
	maxResponseBody = 4 << 20
)

// TokenSource supplies the bearer token for authenticated calls.
// An empty token sends the request without an Authorization header.
type TokenSource func(ctx context.Context) (string, error)

// CookieTokenSource reads the bearer token from the named cookie on every request
func CookieTokenSource(jar cookie.Jar, name string) TokenSource {
	return func(ctx context.Context) (string, error) {
		c, ok, err := jar.Get(ctx, name)
		if err != nil || !ok {
			return "", err
		}
		return c.Value, nil
	}
}

// Client is a thin JSON client for the backend contract
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*rawResponse]
	tokens     TokenSource
	logger     *zap.Logger
	metrics    metrics.Recorder
}

type Option func(*Client)

// WithHTTPClient replaces the default traced client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps outbound requests per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCircuitBreaker opens after maxFailures consecutive transport errors
// or 5xx responses and stays open for openTimeout.
func WithCircuitBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(c *Client) {
		if maxFailures == 0 {
			maxFailures = 5
		}
		c.breaker = gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
			Name:    "storefront-api",
			Timeout: openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.metrics = r
		}
	}
}

// New creates a client for baseURL (e.g. http://localhost:5000/api)
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  zap.NewNop(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one call; route is the path template used for metrics and logs
type request struct {
	method string
	path   string
	route  string
	query  url.Values
	body   any
	auth   bool
}

type rawResponse struct {
	status int
	body   []byte
}

var errServerStatus = errors.New("server error status")

func (c *Client) do(ctx context.Context, r request, out any) error {
	label := r.method + " " + r.route

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("failed to wait for rate limiter: %w", err)
		}
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}

	start := time.Now()
	raw, err := c.execute(req)
	status := 0
	if raw != nil {
		status = raw.status
	}
	c.metrics.RecordAPIRequest(label, status, time.Since(start))

	if err != nil && !errors.Is(err, errServerStatus) {
		c.logger.Warn("api request failed", zap.String("route", label), zap.Error(err))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return fmt.Errorf("failed to call %s: %w", label, err)
	}

	c.logger.Debug("api request",
		zap.String("route", label),
		zap.Int("status", raw.status),
		zap.Duration("duration", time.Since(start)),
	)

	if raw.status < 200 || raw.status > 299 {
		return parseErrorBody(raw.status, label, raw.body)
	}

	if out == nil || len(bytes.TrimSpace(raw.body)) == 0 {
		if out != nil {
			return fmt.Errorf("%w: %s returned an empty body", ErrMalformedResponse, label)
		}
		return nil
	}
	if err := json.Unmarshal(raw.body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, label, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if r.auth && c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read bearer token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *Client) execute(req *http.Request) (*rawResponse, error) {
	if c.breaker == nil {
		return c.send(req)
	}
	return c.breaker.Execute(func() (*rawResponse, error) {
		return c.send(req)
	})
}

func (c *Client) send(req *http.Request) (*rawResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	raw := &rawResponse{status: resp.StatusCode, body: body}
	if resp.StatusCode >= 500 {
		return raw, errServerStatus
	}
	return raw, nil
}
