package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request represents one call against the target service.
type Request struct {
	// Name identifies the logical endpoint in logs and metrics, for
	// example "post-visit". Paths contain ids and are not used as labels.
	Name string

	// Task is the recurring task issuing the request. Set by the scheduler.
	Task string

	Method  string
	Path    string
	Headers map[string]string
	Body    interface{}

	// Timeout bounds the whole call. Zero means the client default.
	Timeout time.Duration
}

// NewRequest creates a new HTTP request
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(map[string]string),
	}
}

// Get creates a named GET request.
func Get(name, path string) *Request {
	return NewRequest(http.MethodGet, path).Named(name)
}

// Post creates a named POST request with a JSON body.
func Post(name, path string, body interface{}) *Request {
	return NewRequest(http.MethodPost, path).Named(name).WithBody(body)
}

// Delete creates a named DELETE request.
func Delete(name, path string) *Request {
	return NewRequest(http.MethodDelete, path).Named(name)
}

// Named sets the request name.
func (r *Request) Named(name string) *Request {
	r.Name = name
	return r
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

// WithBody sets the body of the request
func (r *Request) WithBody(body interface{}) *Request {
	r.Body = body
	return r
}

// WithTimeout sets the per-call timeout.
func (r *Request) WithTimeout(timeout time.Duration) *Request {
	r.Timeout = timeout
	return r
}

// Build constructs an http.Request bound to ctx.
func (r *Request) Build(ctx context.Context, baseURL string) (*http.Request, error) {
	reqURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	// Keep any path prefix of the base URL, e.g. behind a reverse proxy.
	if reqURL.Path == "" {
		reqURL.Path = r.Path
	} else {
		reqURL.Path = strings.TrimRight(reqURL.Path, "/") + "/" + strings.TrimLeft(r.Path, "/")
	}

	headers := make(map[string]string, len(r.Headers)+1)
	for key, value := range r.Headers {
		headers[key] = value
	}

	var bodyReader io.Reader
	if r.Body != nil {
		switch body := r.Body.(type) {
		case string:
			bodyReader = strings.NewReader(body)
		case []byte:
			bodyReader = bytes.NewReader(body)
		case io.Reader:
			bodyReader = body
		default:
			jsonBody, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			bodyReader = bytes.NewReader(jsonBody)
			if _, ok := headers["Content-Type"]; !ok {
				headers["Content-Type"] = "application/json"
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, reqURL.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return req, nil
}
