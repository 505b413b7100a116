// Package http is the outbound client shared by every traffic task.
//
// Send is total: network errors, timeouts and non-2xx responses all come back
// as a failed Outcome, are logged, and are never returned as errors or
// retried.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Per-call timeouts used by the traffic tasks.
const (
	DefaultTimeout     = 20 * time.Second
	DiagnosticsTimeout = 30 * time.Second
)

// maxBodyBytes caps how much of a response body is kept.
const maxBodyBytes = 1 << 20

// Sender sends a request and always returns an Outcome.
type Sender interface {
	Send(ctx context.Context, req *Request) *Outcome
}

// Observer receives every Outcome, for example to record metrics.
type Observer interface {
	Observe(o *Outcome)
}

// Client represents an HTTP client with customizable options
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	timeout    time.Duration
	logger     logrus.FieldLogger
	observers  []Observer
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new HTTP client with the given options
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		httpClient: NewHTTPClient(DefaultTransportConfig()),
		headers:    map[string]string{"User-Agent": "trafficgen"},
		timeout:    DefaultTimeout,
		logger:     logrus.StandardLogger(),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// WithBaseURL sets the base URL for the client
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the timeout used by requests that do not carry their own.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHeader adds a header to the client
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithHTTPClient replaces the underlying client and its connection pool.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for failure and success lines.
func WithLogger(logger logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithObserver registers an observer for every Outcome.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observers = append(c.observers, o)
	}
}

// BaseURL returns the target base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send executes req and reports the result as an Outcome. It never returns
// nil and never panics on a failed call.
func (c *Client) Send(ctx context.Context, req *Request) *Outcome {
	out := &Outcome{
		Name:      req.Name,
		Task:      req.Task,
		Method:    req.Method,
		Path:      req.Path,
		RequestID: uuid.NewString(),
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	c.do(ctx, callCtx, req, out)
	out.Duration = time.Since(start)

	c.report(out)
	return out
}

func (c *Client) do(parent, ctx context.Context, req *Request, out *Outcome) {
	httpReq, err := req.Build(ctx, c.baseURL)
	if err != nil {
		out.Kind = FailureRequest
		out.Err = err
		out.Message = err.Error()
		return
	}

	for key, value := range c.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}
	httpReq.Header.Set("X-Request-Id", out.RequestID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		out.Kind = classify(parent, err)
		out.Err = err
		out.Message = err.Error()
		return
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	out.StatusCode = httpResp.StatusCode
	out.Body = body

	switch {
	case httpResp.StatusCode < 200 || httpResp.StatusCode > 299:
		out.Kind = FailureStatus
		out.Err = &StatusError{StatusCode: httpResp.StatusCode}
		out.Message = diagnosticMessage(body, httpResp.Status)
	case err != nil:
		out.Kind = classify(parent, err)
		out.Err = err
		out.Message = err.Error()
	}
}

// classify separates caller cancellation and timeouts from other transport
// errors.
func classify(parent context.Context, err error) FailureKind {
	if errors.Is(parent.Err(), context.Canceled) {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureNetwork
}

func (c *Client) report(out *Outcome) {
	entry := c.logger.WithFields(logrus.Fields{
		"task":       out.Task,
		"request":    out.Name,
		"method":     out.Method,
		"path":       out.Path,
		"request_id": out.RequestID,
		"duration":   out.Duration.String(),
	})

	switch {
	case out.OK():
		entry.WithField("status", out.StatusCode).Debug("request completed")
	case out.Kind == FailureCanceled:
		entry.Debug("request abandoned on shutdown")
	default:
		entry.WithFields(logrus.Fields{
			"status":  out.StatusCode,
			"failure": out.Kind.String(),
			"error":   out.Message,
		}).Warn("request failed")
	}

	for _, o := range c.observers {
		o.Observe(out)
	}
}

// StatusError is the Err of an Outcome whose status was outside 2xx.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
