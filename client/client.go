package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-flowise/logging"
	"github.com/goliatone/go-flowise/runner"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
)

// Client talks to the platform's REST API. It is safe for concurrent use.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	backoff    runner.RetryStrategy
	logger     logging.Logger
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRetries sets how many times throttled, failed or unreachable
// calls are repeated.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func WithBackoff(s runner.RetryStrategy) Option {
	return func(c *Client) {
		if s != nil {
			c.backoff = s
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		c.logger = logging.Normalize(l)
	}
}

// New builds a client for endpoint, e.g. "http://localhost:3000".
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, ErrConfig.Clone()
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		cfgErr := ErrConfig.Clone()
		cfgErr.Message = fmt.Sprintf("invalid endpoint %q: %v", endpoint, err)
		return nil, cfgErr
	}

	c := &Client{
		endpoint:   endpoint,
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		backoff: runner.ExponentialBackoffStrategy{
			Base:   250 * time.Millisecond,
			Factor: 2,
			Max:    5 * time.Second,
		},
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// Endpoint returns the base URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			encErr := ErrDecode.Clone()
			encErr.Message = fmt.Sprintf("encode request body: %v", err)
			return encErr
		}
		payload = encoded
	}

	h := runner.NewHandler(
		runner.WithName(method+" "+path),
		runner.WithMaxRetries(c.maxRetries),
		runner.WithRetryStrategy(runner.ConditionalStrategy{Backoff: c.backoff, RetryIf: retryable}),
		runner.WithLogger(c.logger),
	)

	data, err := runner.RunValue(ctx, h, func(ctx context.Context) ([]byte, error) {
		return c.send(ctx, method, path, payload)
	})
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		decErr := ErrDecode.Clone()
		decErr.Message = fmt.Sprintf("%s %s: %v", method, path, err)
		return decErr
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		cfgErr := ErrConfig.Clone()
		cfgErr.Message = fmt.Sprintf("build request: %v", err)
		return nil, cfgErr
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		unavailable := ErrUnavailable.Clone()
		unavailable.Message = fmt.Sprintf("%s %s: %v", method, path, err)
		return nil, unavailable
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		unavailable := ErrUnavailable.Clone()
		unavailable.Message = fmt.Sprintf("%s %s: read body: %v", method, path, err)
		return nil, unavailable
	}

	c.logger.Debug("flowise %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, remoteError(resp.StatusCode, method, path, data)
	}
	return data, nil
}

func segment(s string) string {
	return url.PathEscape(s)
}
