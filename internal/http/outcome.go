package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/wesleyorama2/trafficgen/pkg/jsonpath"
)

// FailureKind classifies why a request failed.
type FailureKind int

const (
	// FailureNone marks a successful request.
	FailureNone FailureKind = iota
	// FailureRequest means the request could not be built.
	FailureRequest
	// FailureNetwork covers refused connections, DNS errors and resets.
	FailureNetwork
	// FailureTimeout means the per-call timeout expired.
	FailureTimeout
	// FailureCanceled means the caller's context was canceled, usually
	// during shutdown.
	FailureCanceled
	// FailureStatus means the service answered outside the 2xx range.
	FailureStatus
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureRequest:
		return "request"
	case FailureNetwork:
		return "network"
	case FailureTimeout:
		return "timeout"
	case FailureCanceled:
		return "canceled"
	case FailureStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Outcome is the result of one Send. It is a success or a failure value;
// Send never reports failures any other way.
type Outcome struct {
	Name      string
	Task      string
	Method    string
	Path      string
	RequestID string

	StatusCode int
	Body       []byte
	Duration   time.Duration

	Kind    FailureKind
	Err     error
	Message string
}

// OK reports whether the call completed with a 2xx status.
func (o *Outcome) OK() bool {
	return o.Kind == FailureNone
}

// Class returns a low-cardinality label for metrics: success, client_error,
// server_error, or the failure kind.
func (o *Outcome) Class() string {
	switch {
	case o.Kind == FailureNone:
		return "success"
	case o.Kind == FailureStatus && o.StatusCode >= 400 && o.StatusCode < 500:
		return "client_error"
	case o.Kind == FailureStatus && o.StatusCode >= 500:
		return "server_error"
	default:
		return o.Kind.String()
	}
}

func (o *Outcome) String() string {
	if o.OK() {
		return fmt.Sprintf("%s %s: %d in %s", o.Method, o.Path, o.StatusCode, o.Duration)
	}
	return fmt.Sprintf("%s %s failed (%s): %s", o.Method, o.Path, o.Kind, o.Message)
}

// messagePaths are tried in order on JSON error bodies. Spring Boot puts the
// useful text in "message", other services use "error" or "detail".
var messagePaths = []string{"message", "error.message", "error", "detail"}

const maxMessageLen = 512

// diagnosticMessage picks the most useful text out of an error response.
func diagnosticMessage(body []byte, status string) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return status
	}
	if msg, ok := jsonpath.First(text, messagePaths...); ok {
		return truncate(msg)
	}
	return truncate(text)
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen] + "..."
}
