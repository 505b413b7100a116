package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/trafficgen/internal/http"
)

func outcome(name string, status int, kind http.FailureKind, d time.Duration) *http.Outcome {
	return &http.Outcome{
		Name:       name,
		Task:       "low-traffic-visits",
		Method:     "POST",
		StatusCode: status,
		Kind:       kind,
		Duration:   d,
		Body:       []byte("{}"),
	}
}

func TestNewEngine(t *testing.T) {
	engine := NewEngine(nil)
	require.NotNil(t, engine)

	snapshot := engine.Snapshot()
	assert.Zero(t, snapshot.TotalRequests)
	assert.Zero(t, snapshot.ErrorRate)
}

func TestEngine_Observe(t *testing.T) {
	engine := NewEngine(nil)

	engine.Observe(outcome("post-visit", 201, http.FailureNone, 10*time.Millisecond))
	engine.Observe(outcome("post-visit", 200, http.FailureNone, 20*time.Millisecond))
	engine.Observe(outcome("get-owner", 404, http.FailureStatus, 30*time.Millisecond))
	engine.Observe(outcome("get-owner", 0, http.FailureTimeout, 20*time.Second))

	snapshot := engine.Snapshot()

	assert.Equal(t, int64(4), snapshot.TotalRequests)
	assert.Equal(t, int64(2), snapshot.SuccessRequests)
	assert.Equal(t, int64(2), snapshot.FailedRequests)
	assert.Equal(t, int64(8), snapshot.TotalBytes)
	assert.InDelta(t, 0.5, snapshot.ErrorRate, 1e-9)
	assert.Equal(t, map[string]int64{"success": 2, "client_error": 1, "timeout": 1}, snapshot.Classes)
	assert.Equal(t, int64(4), snapshot.Latency.Count)

	stats := engine.RequestStats()
	require.Contains(t, stats, "post-visit")
	require.Contains(t, stats, "get-owner")
	assert.Equal(t, int64(2), stats["post-visit"].Count)
}

func TestEngine_ObserveIgnoresCanceled(t *testing.T) {
	engine := NewEngine(nil)

	engine.Observe(outcome("post-visit", 0, http.FailureCanceled, time.Millisecond))

	assert.Zero(t, engine.Snapshot().TotalRequests)
}

func TestEngine_LatencyPercentiles(t *testing.T) {
	engine := NewEngine(nil)

	for i := 1; i <= 10; i++ {
		engine.Observe(outcome("get-owner", 200, http.FailureNone, time.Duration(i*10)*time.Millisecond))
	}

	latency := engine.Snapshot().Latency

	if latency.P50 < 40*time.Millisecond || latency.P50 > 60*time.Millisecond {
		t.Errorf("P50 = %v, want ~50ms", latency.P50)
	}
	if latency.P99 < 90*time.Millisecond || latency.P99 > 110*time.Millisecond {
		t.Errorf("P99 = %v, want ~100ms", latency.P99)
	}
}

func TestEngine_ClampsLatency(t *testing.T) {
	engine := NewEngine(nil)

	engine.Observe(outcome("slow", 200, http.FailureNone, 2*time.Hour))
	engine.Observe(outcome("fast", 200, http.FailureNone, 0))

	assert.Equal(t, int64(2), engine.Snapshot().Latency.Count)
}

func TestEngine_TaskCounters(t *testing.T) {
	collectors := NewCollectors()
	engine := NewEngine(collectors)

	engine.TaskFired("payment-cleanup")
	engine.TaskCompleted("payment-cleanup", 1, time.Second)
	engine.TaskSkipped("create-owner-high")

	snapshot := engine.Snapshot()
	assert.Equal(t, int64(1), snapshot.Firings)
	assert.Equal(t, int64(1), snapshot.Attempted)

	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.firings.WithLabelValues("payment-cleanup")))
	assert.Equal(t, 0.0, testutil.ToFloat64(collectors.running.WithLabelValues("payment-cleanup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.attempted.WithLabelValues("payment-cleanup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.skipped.WithLabelValues("create-owner-high")))
}

func TestEngine_ObserveFeedsCollectors(t *testing.T) {
	collectors := NewCollectors()
	engine := NewEngine(collectors)

	engine.Observe(outcome("post-visit", 201, http.FailureNone, time.Millisecond))
	engine.Observe(outcome("post-visit", 503, http.FailureStatus, time.Millisecond))

	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.requests.WithLabelValues("low-traffic-visits", "post-visit", "POST", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collectors.requests.WithLabelValues("low-traffic-visits", "post-visit", "POST", "server_error")))
}

func TestEngine_LogSummary(t *testing.T) {
	engine := NewEngine(nil)
	engine.Observe(outcome("post-visit", 201, http.FailureNone, time.Millisecond))

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	engine.LogSummary(logger)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "traffic summary", entries[0].Message)
	assert.Equal(t, int64(1), entries[0].Data["requests"])
	assert.Equal(t, "post-visit", entries[1].Data["request"])
}

func TestEngine_RunSummaryStopsOnCancel(t *testing.T) {
	engine := NewEngine(nil)
	logger, hook := logtest.NewNullLogger()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		engine.RunSummary(ctx, 10*time.Millisecond, logger)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(hook.AllEntries()) > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunSummary did not return after cancel")
	}
}

func TestEngine_RunSummaryDisabled(t *testing.T) {
	engine := NewEngine(nil)
	logger, hook := logtest.NewNullLogger()

	engine.RunSummary(context.Background(), 0, logger)

	assert.Empty(t, hook.AllEntries())
}

func TestCollectors_Serve(t *testing.T) {
	collectors := NewCollectors()
	logger, _ := logtest.NewNullLogger()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- collectors.Serve(ctx, "127.0.0.1:0", logger) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestCollectors_ServeBadAddress(t *testing.T) {
	collectors := NewCollectors()
	logger, _ := logtest.NewNullLogger()

	err := collectors.Serve(context.Background(), "not-an-address", logger)

	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
