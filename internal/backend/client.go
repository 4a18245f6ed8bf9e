// Package backend is the REST client for the storefront backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultSubmitTimeout  = 30 * time.Second
	maxResponseBytes      = 4 << 20 // 4MB

	defaultBreakerFailures = 5
	defaultBreakerOpenFor  = 10 * time.Second
)

type response struct {
	status int
	body   []byte
}

// Client talks JSON over HTTPS to the backend. Every call runs under its own
// timeout and through the circuit breaker of its endpoint, so failures of the
// background cart sync never open the circuit for order commits or lookups.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	submitTimeout time.Duration
	logger        *zap.Logger

	maxFailures uint32
	openFor     time.Duration
	breakersMu  sync.Mutex
	breakers    map[string]*gobreaker.CircuitBreaker[response]
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeouts sets the timeout for reads and for order commits.
func WithTimeouts(request, submit time.Duration) Option {
	return func(cl *Client) {
		if request > 0 {
			cl.timeout = request
		}
		if submit > 0 {
			cl.submitTimeout = submit
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithBreaker tunes every endpoint breaker: it opens after maxFailures
// consecutive failures and stays open for openFor.
func WithBreaker(maxFailures uint32, openFor time.Duration) Option {
	return func(cl *Client) {
		if maxFailures > 0 {
			cl.maxFailures = maxFailures
		}
		if openFor > 0 {
			cl.openFor = openFor
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout:       defaultRequestTimeout,
		submitTimeout: defaultSubmitTimeout,
		logger:        zap.NewNop(),
		maxFailures:   defaultBreakerFailures,
		openFor:       defaultBreakerOpenFor,
		breakers:      make(map[string]*gobreaker.CircuitBreaker[response]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// breaker returns the breaker of the endpoint path belongs to, creating it on first use.
func (c *Client) breaker(path string) *gobreaker.CircuitBreaker[response] {
	key := endpointKey(path)
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()
	cb, ok := c.breakers[key]
	if !ok {
		cb = newBreaker(key, c.logger, c.maxFailures, c.openFor)
		c.breakers[key] = cb
	}
	return cb
}

// endpointKey drops the query string and numeric path segments:
// "/producto/10/info?x=1" becomes "/producto/{id}/info".
func endpointKey(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func newBreaker(name string, logger *zap.Logger, maxFailures uint32, openFor time.Duration) *gobreaker.CircuitBreaker[response] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "backend " + name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, c.timeout, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, timeout time.Duration, path string, in, out any) error {
	return c.do(ctx, timeout, http.MethodPost, path, in, out)
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel() // releases resources if the call completes before timeout elapses

	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s %s body: %w", method, path, err)
		}
	}

	resp, err := c.breaker(path).Execute(func() (response, error) {
		return c.roundTrip(ctx, method, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: %w", method, path, ErrBackendUnavailable)
	}
	if err != nil {
		return err
	}

	if resp.status < 200 || resp.status > 299 {
		return decodeAPIError(resp)
	}
	if apiErr := embeddedError(resp); apiErr != nil {
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// roundTrip returns an error only for failures that should count against the
// breaker: transport errors and 5xx responses.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return response{}, fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed",
			zap.String("method", method), zap.String("path", path), zap.Error(err))
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return response{}, fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}
	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("took", time.Since(start)))

	resp := response{status: httpResp.StatusCode, body: data}
	if resp.status >= 500 {
		return resp, decodeAPIError(resp)
	}
	return resp, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeAPIError(resp response) *APIError {
	apiErr := &APIError{Status: resp.status}
	var eb errorBody
	if err := json.Unmarshal(resp.body, &eb); err == nil {
		apiErr.Message = eb.Error
		if apiErr.Message == "" {
			apiErr.Message = eb.Message
		}
		apiErr.Code = eb.Code
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.status)
	}
	return apiErr
}

func embeddedError(resp response) *APIError {
	trimmed := bytes.TrimSpace(resp.body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var eb errorBody
	if err := json.Unmarshal(trimmed, &eb); err != nil || eb.Error == "" {
		return nil
	}
	return &APIError{Status: resp.status, Message: eb.Error, Code: eb.Code}
}
