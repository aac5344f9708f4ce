// Package gateway is the HTTP client for the course API.
//
// Every request goes to the configured base URL plus an endpoint and
// carries the X-App-Version header. Responses are decoded by content type:
// JSON becomes a Go value, text and XML become a string, anything else is
// returned as raw bytes. Idempotent requests are retried with exponential
// backoff on transport errors, 429 and 5xx responses.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// HeaderVersion carries the application version on every request.
const HeaderVersion = "X-App-Version"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway error: %s %s: %s", e.Method, e.URL, e.Status)
}

// Retryable reports whether the status may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Config configures a Client.
type Config struct {
	BaseURL        string
	Version        string
	Timeout        time.Duration
	MaxTries       uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns sensible defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Timeout:        30 * time.Second,
		MaxTries:       3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Client performs API requests.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	config Config
	http   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client.
func New(cfg Config, opts ...Option) *Client {
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}
	c := &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL joins the base URL and endpoint, adding the leading slash.
func (c *Client) URL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return strings.TrimRight(c.config.BaseURL, "/") + endpoint
}

// Get fetches endpoint and decodes the response.
func (c *Client) Get(ctx context.Context, endpoint string, headers ...http.Header) (any, error) {
	return c.Do(ctx, http.MethodGet, endpoint, nil, headers...)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, endpoint string, body any, headers ...http.Header) (any, error) {
	return c.Do(ctx, http.MethodPost, endpoint, body, headers...)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, endpoint string, body any, headers ...http.Header) (any, error) {
	return c.Do(ctx, http.MethodPut, endpoint, body, headers...)
}

// Delete removes endpoint.
func (c *Client) Delete(ctx context.Context, endpoint string, headers ...http.Header) (any, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, headers...)
}

// Bytes fetches endpoint and returns the raw body.
func (c *Client) Bytes(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// Do performs a request and decodes the response by content type.
// A body of type []byte or string is sent as is; anything else as JSON.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, headers ...http.Header) (any, error) {
	resp, err := c.send(ctx, method, endpoint, body, headers)
	if err != nil {
		return nil, err
	}
	return decode(resp.contentType, resp.body)
}

type response struct {
	contentType string
	body        []byte
}

func (c *Client) send(ctx context.Context, method, endpoint string, body any, headers []http.Header) (response, error) {
	payload, contentType, err := encode(body)
	if err != nil {
		return response{}, err
	}
	url := c.URL(endpoint)

	op := func() (response, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return response{}, backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set(HeaderVersion, c.config.Version)
		for _, h := range headers {
			for k, vs := range h {
				for _, v := range vs {
					req.Header.Add(k, v)
				}
			}
		}

		slog.Debug("gateway request", "method", method, "url", url)
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return response{}, backoff.Permanent(ctx.Err())
			}
			return response{}, fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return response{}, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			se := &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
			if !se.Retryable() {
				return response{}, backoff.Permanent(se)
			}
			return response{}, se
		}
		return response{contentType: resp.Header.Get("Content-Type"), body: data}, nil
	}

	tries := c.config.MaxTries
	if !idempotent(method) {
		tries = 1
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.config.InitialBackoff
	eb.MaxInterval = c.config.MaxBackoff

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Warn("gateway retry", "method", method, "url", url, "error", err, "wait", wait)
		}),
	)
	if err != nil {
		slog.Error("gateway request failed", "method", method, "url", url, "error", err)
		return response{}, err
	}
	return resp, nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func encode(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "application/octet-stream", nil
	case string:
		return []byte(b), "text/plain; charset=utf-8", nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("encode body: %w", err)
	}
	return data, "application/json", nil
}

func decode(contentType string, body []byte) (any, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("decode json response: %w", err)
		}
		return v, nil
	case strings.HasPrefix(mediaType, "text/"), mediaType == "application/xml":
		return string(body), nil
	}
	return body, nil
}
