// Package metrics aggregates request outcomes and task activity.
//
// The Engine keeps HDR latency histograms for the periodic summary log and
// mirrors every observation into Prometheus collectors for scraping.
package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/trafficgen/internal/http"
)

// Engine collects outcome and task metrics.
//
// Engine is safe for concurrent use. Counters use atomic operations and
// histograms are protected by mutexes because hdrhistogram is not.
type Engine struct {
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	// Per-request-name histograms
	requestHists   map[string]*hdrhistogram.Histogram
	requestHistsMu sync.Mutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	totalBytes      atomic.Int64

	classes   map[string]int64
	classesMu sync.Mutex

	firings   atomic.Int64
	attempted atomic.Int64

	collectors *Collectors

	startTime time.Time
	config    EngineConfig
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds. Requests
	// are bounded by their timeout, so one minute is plenty.
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     60_000_000,
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a metrics engine. collectors may be nil.
func NewEngine(collectors *Collectors) *Engine {
	return NewEngineWithConfig(DefaultEngineConfig(), collectors)
}

// NewEngineWithConfig creates a metrics engine with custom histogram bounds.
func NewEngineWithConfig(config EngineConfig, collectors *Collectors) *Engine {
	return &Engine{
		latencyHist:  hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		requestHists: make(map[string]*hdrhistogram.Histogram),
		classes:      make(map[string]int64),
		collectors:   collectors,
		startTime:    time.Now(),
		config:       config,
	}
}

// Observe records one request outcome. It implements http.Observer.
func (e *Engine) Observe(o *http.Outcome) {
	// Abandoned requests say nothing about the target.
	if o.Kind == http.FailureCanceled {
		return
	}

	latencyMicros := o.Duration.Microseconds()
	if latencyMicros < e.config.HistogramMin {
		latencyMicros = e.config.HistogramMin
	}
	if latencyMicros > e.config.HistogramMax {
		latencyMicros = e.config.HistogramMax
	}

	e.latencyHistMu.Lock()
	e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	if o.Name != "" {
		e.recordRequestHistogram(o.Name, latencyMicros)
	}

	e.totalRequests.Add(1)
	e.totalBytes.Add(int64(len(o.Body)))
	if o.OK() {
		e.successRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
	}

	class := o.Class()
	e.classesMu.Lock()
	e.classes[class]++
	e.classesMu.Unlock()

	if e.collectors != nil {
		e.collectors.observe(o, class)
	}
}

func (e *Engine) recordRequestHistogram(name string, latencyMicros int64) {
	e.requestHistsMu.Lock()
	defer e.requestHistsMu.Unlock()

	hist, exists := e.requestHists[name]
	if !exists {
		hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		e.requestHists[name] = hist
	}

	hist.RecordValue(latencyMicros)
}

// TaskFired records the start of a task invocation.
func (e *Engine) TaskFired(task string) {
	e.firings.Add(1)
	if e.collectors != nil {
		e.collectors.firings.WithLabelValues(task).Inc()
		e.collectors.running.WithLabelValues(task).Inc()
	}
}

// TaskCompleted records the end of a task invocation and the number of
// requests it attempted.
func (e *Engine) TaskCompleted(task string, attempted int, d time.Duration) {
	e.attempted.Add(int64(attempted))
	if e.collectors != nil {
		e.collectors.running.WithLabelValues(task).Dec()
		e.collectors.attempted.WithLabelValues(task).Add(float64(attempted))
		e.collectors.invocationDuration.WithLabelValues(task).Observe(d.Seconds())
	}
}

// TaskSkipped records a firing dropped because the previous one was still
// running.
func (e *Engine) TaskSkipped(task string) {
	if e.collectors != nil {
		e.collectors.skipped.WithLabelValues(task).Inc()
	}
}

// Snapshot returns a point-in-time view of the collected metrics.
func (e *Engine) Snapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latency := statsOf(e.latencyHist)
	e.latencyHistMu.Unlock()

	e.classesMu.Lock()
	classes := make(map[string]int64, len(e.classes))
	for k, v := range e.classes {
		classes[k] = v
	}
	e.classesMu.Unlock()

	elapsed := time.Since(e.startTime)
	total := e.totalRequests.Load()
	failed := e.failedRequests.Load()

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(total) / elapsed.Seconds()
	}
	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return &Snapshot{
		TotalRequests:   total,
		SuccessRequests: e.successRequests.Load(),
		FailedRequests:  failed,
		TotalBytes:      e.totalBytes.Load(),
		Classes:         classes,
		Firings:         e.firings.Load(),
		Attempted:       e.attempted.Load(),
		Latency:         latency,
		RPS:             rps,
		ErrorRate:       errorRate,
		Elapsed:         elapsed,
	}
}

// RequestStats returns latency statistics per request name.
func (e *Engine) RequestStats() map[string]LatencyStats {
	e.requestHistsMu.Lock()
	defer e.requestHistsMu.Unlock()

	result := make(map[string]LatencyStats, len(e.requestHists))
	for name, hist := range e.requestHists {
		result[name] = statsOf(hist)
	}
	return result
}

// RunSummary logs a snapshot every interval until ctx is done. A
// non-positive interval disables the summary.
func (e *Engine) RunSummary(ctx context.Context, interval time.Duration, logger logrus.FieldLogger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.LogSummary(logger)
		}
	}
}

// LogSummary writes one summary line, plus one line per request name.
func (e *Engine) LogSummary(logger logrus.FieldLogger) {
	s := e.Snapshot()
	logger.WithFields(logrus.Fields{
		"requests":   s.TotalRequests,
		"failed":     s.FailedRequests,
		"error_rate": s.ErrorRate,
		"rps":        s.RPS,
		"firings":    s.Firings,
		"p50":        s.Latency.P50.String(),
		"p95":        s.Latency.P95.String(),
		"p99":        s.Latency.P99.String(),
	}).Info("traffic summary")

	stats := e.RequestStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := stats[name]
		logger.WithFields(logrus.Fields{
			"request": name,
			"count":   st.Count,
			"p50":     st.P50.String(),
			"p95":     st.P95.String(),
			"max":     st.Max.String(),
		}).Debug("request latency")
	}
}

func statsOf(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}

// Snapshot contains a point-in-time view of all metrics.
type Snapshot struct {
	TotalRequests   int64            `json:"totalRequests" yaml:"totalRequests"`
	SuccessRequests int64            `json:"successRequests" yaml:"successRequests"`
	FailedRequests  int64            `json:"failedRequests" yaml:"failedRequests"`
	TotalBytes      int64            `json:"totalBytes" yaml:"totalBytes"`
	Classes         map[string]int64 `json:"classes" yaml:"classes"`
	Firings         int64            `json:"firings" yaml:"firings"`
	Attempted       int64            `json:"attempted" yaml:"attempted"`
	Latency         LatencyStats     `json:"latency" yaml:"latency"`
	RPS             float64          `json:"rps" yaml:"rps"`
	ErrorRate       float64          `json:"errorRate" yaml:"errorRate"`
	Elapsed         time.Duration    `json:"elapsed" yaml:"elapsed"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min" yaml:"min"`
	Max    time.Duration `json:"max" yaml:"max"`
	Mean   time.Duration `json:"mean" yaml:"mean"`
	StdDev time.Duration `json:"stdDev" yaml:"stdDev"`
	P50    time.Duration `json:"p50" yaml:"p50"`
	P90    time.Duration `json:"p90" yaml:"p90"`
	P95    time.Duration `json:"p95" yaml:"p95"`
	P99    time.Duration `json:"p99" yaml:"p99"`
	Count  int64         `json:"count" yaml:"count"`
}
