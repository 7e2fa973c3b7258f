// Package httpclient provides the outbound HTTP client shared by the
// integrations that call third-party APIs.
//
// Every request goes through a global rate limiter, a circuit breaker per
// host and an exponential-backoff retry for 429 and 5xx responses.
package httpclient

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
	"sync"
	"time"

	"autoblog/internal/metrics"
	"autoblog/pkg/host"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var _ host.HTTPClient = (*Client)(nil)

// ErrCircuitOpen is returned when the breaker for the target host is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// StatusCode returns the HTTP status code carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Config configures the client.
type Config struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        uint64
	InitialInterval   time.Duration
	MaxInterval       time.Duration
	MaxResponseBytes  int64
	UserAgent         string

	// Breaker settings, applied per host.
	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerFailureRatio float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Second,
		RequestsPerSecond:   5,
		Burst:               10,
		MaxRetries:          3,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxResponseBytes:    20 << 20,
		UserAgent:           "autoblog/1.0",
		BreakerMaxRequests:  1,
		BreakerInterval:     time.Minute,
		BreakerTimeout:      time.Minute,
		BreakerFailureRatio: 0.6,
	}
}

// Response is a fully read HTTP response.
type Response struct {
	Code   int
	Header http.Header
	Body   []byte
}

// JSON parses the body.
func (r *Response) JSON() gjson.Result {
	return gjson.ParseBytes(r.Body)
}

// Client is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New creates a client. Zero values in cfg fall back to DefaultConfig.
func New(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = def.MaxResponseBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = def.BreakerMaxRequests
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = def.BreakerInterval
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	if cfg.BreakerFailureRatio <= 0 {
		cfg.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:   logger.Named("httpclient"),
		metrics:  m,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	ratio := c.cfg.BreakerFailureRatio
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: c.cfg.BreakerMaxRequests,
		Interval:    c.cfg.BreakerInterval,
		Timeout:     c.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= ratio
		},
		// 4xx responses other than 429 do not count as failures.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state change",
				zap.String("host", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			c.metrics.BreakerState(name, to == gobreaker.StateOpen)
		},
	})
	c.breakers[host] = cb
	return cb
}

// Do sends a request and returns the response when the status is 2xx.
// Other statuses are returned as *StatusError.
func (c *Client) Do(ctx context.Context, method, rawURL string, header http.Header, body []byte) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	host := u.Host
	cb := c.breaker(host)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval
	b.MaxInterval = c.cfg.MaxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.MaxRetries), ctx)

	attempt := 0
	var resp *Response
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		out, err := cb.Execute(func() (interface{}, error) {
			return c.send(ctx, method, u, header, body)
		})
		c.metrics.APICalled(host, time.Since(start), err == nil)

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%s: %w", host, ErrCircuitOpen))
			}
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.logger.Debug("Retryable request failure",
				zap.String("method", method),
				zap.String("host", host),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		resp = out.(*Response)
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method string, u *url.URL, header http.Header, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, redact(u), err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, c.cfg.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{
			Method: method,
			URL:    redact(u),
			Code:   res.StatusCode,
			Body:   truncate(string(data), 512),
		}
	}
	return &Response{Code: res.StatusCode, Header: res.Header, Body: data}, nil
}

// GetJSON sends a GET request and parses the JSON response.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header) (gjson.Result, error) {
	h := cloneHeader(header)
	h.Set("Accept", "application/json")
	resp, err := c.Do(ctx, http.MethodGet, rawURL, h, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	return resp.JSON(), nil
}

// PostJSON sends payload as a JSON body and parses the JSON response.
func (c *Client) PostJSON(ctx context.Context, rawURL string, header http.Header, payload any) (gjson.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to encode request: %w", err)
	}
	h := cloneHeader(header)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	resp, err := c.Do(ctx, http.MethodPost, rawURL, h, body)
	if err != nil {
		return gjson.Result{}, err
	}
	return resp.JSON(), nil
}

// PostForm sends form values and parses the JSON response.
func (c *Client) PostForm(ctx context.Context, rawURL string, header http.Header, form url.Values) (gjson.Result, error) {
	h := cloneHeader(header)
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	h.Set("Accept", "application/json")
	resp, err := c.Do(ctx, http.MethodPost, rawURL, h, []byte(form.Encode()))
	if err != nil {
		return gjson.Result{}, err
	}
	return resp.JSON(), nil
}

// Download fetches rawURL and returns the body and its content type.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	resp, err := c.Do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return nil, "", err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(resp.Body)
	}
	return resp.Body, ct, nil
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return make(http.Header)
	}
	return h.Clone()
}

// redact drops query strings, which carry API keys for some providers.
func redact(u *url.URL) string {
	cp := *u
	cp.RawQuery = ""
	return cp.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
