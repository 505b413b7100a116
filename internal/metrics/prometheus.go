package metrics

import (
	"context"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/trafficgen/internal/http"
)

// Collectors are the Prometheus series exported by the generator.
type Collectors struct {
	registry *prometheus.Registry

	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	firings            *prometheus.CounterVec
	skipped            *prometheus.CounterVec
	running            *prometheus.GaugeVec
	attempted          *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
}

// NewCollectors registers the generator's series on a fresh registry,
// together with the Go runtime and process collectors.
func NewCollectors() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficgen_requests_total",
			Help: "Requests sent to the target, by task, request name and outcome class.",
		}, []string{"task", "request", "method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trafficgen_request_duration_seconds",
			Help:    "Duration of requests sent to the target.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 13),
		}, []string{"request"}),
		firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficgen_task_firings_total",
			Help: "Task invocations started.",
		}, []string{"task"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficgen_task_skipped_total",
			Help: "Task firings skipped because the previous invocation was still running.",
		}, []string{"task"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trafficgen_task_running",
			Help: "Task invocations currently running.",
		}, []string{"task"}),
		attempted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trafficgen_task_requests_attempted_total",
			Help: "Requests attempted by task invocations.",
		}, []string{"task"}),
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trafficgen_task_invocation_seconds",
			Help:    "Time spent in task bodies, pre-delays and pacing included.",
			Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"task"}),
	}

	reg.MustRegister(
		c.requests, c.requestDuration,
		c.firings, c.skipped, c.running, c.attempted, c.invocationDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry holding the collectors.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collectors) observe(o *http.Outcome, class string) {
	c.requests.WithLabelValues(o.Task, o.Name, o.Method, class).Inc()
	c.requestDuration.WithLabelValues(o.Name).Observe(o.Duration.Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collectors) Serve(ctx context.Context, addr string, logger logrus.FieldLogger) error {
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	server := &nethttp.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", addr).Info("metrics server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}
