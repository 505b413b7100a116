package http

import (
	"net/http"
	"time"
)

// TransportConfig tunes the connection pool shared by all tasks.
type TransportConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host.
	// Bursts send hundreds of requests to a single host.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host, 0 for no limit
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives
	DisableKeepAlives bool
}

// DefaultTransportConfig returns the pool settings used by the generator.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     0,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient creates a pooled client. Timeouts are applied per request
// through the request context, so the client itself has none.
func NewHTTPClient(cfg TransportConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = cfg.MaxIdleConns
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	transport.MaxConnsPerHost = cfg.MaxConnsPerHost
	transport.IdleConnTimeout = cfg.IdleConnTimeout
	transport.DisableKeepAlives = cfg.DisableKeepAlives

	return &http.Client{Transport: transport}
}
