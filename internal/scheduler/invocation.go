package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/trafficgen/internal/http"
	"github.com/wesleyorama2/trafficgen/internal/random"
)

// WaitFunc blocks for d or until ctx is done, returning ctx.Err() in the
// latter case.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default WaitFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Invocation is one execution of a task body. It hands out random draws,
// pacing waits and request dispatch, and counts every attempted request.
type Invocation struct {
	ctx    context.Context
	task   string
	sender http.Sender
	rnd    *random.Generator
	wait   WaitFunc
	now    func() time.Time
	logger logrus.FieldLogger

	// inflight is shared by the whole scheduler, local only by this
	// invocation.
	inflight *sync.WaitGroup
	local    sync.WaitGroup

	attempted atomic.Int64
}

// Context returns the context requests and pauses are bound to.
func (inv *Invocation) Context() context.Context {
	return inv.ctx
}

// Task returns the name of the running task.
func (inv *Invocation) Task() string {
	return inv.task
}

// Logger returns a logger carrying the task name.
func (inv *Invocation) Logger() logrus.FieldLogger {
	return inv.logger
}

// Now returns the scheduler's current time.
func (inv *Invocation) Now() time.Time {
	return inv.now()
}

// Int draws a value from [min, max].
func (inv *Invocation) Int(min, max int) int {
	return inv.rnd.Int(min, max)
}

// Pause waits for d, the inter-request pacing or a pre-delay. It returns
// the context error if the scheduler is stopping.
func (inv *Invocation) Pause(d time.Duration) error {
	return inv.wait(inv.ctx, d)
}

// Fire sends req without waiting for the outcome.
func (inv *Invocation) Fire(req *http.Request) {
	req.Task = inv.task
	inv.attempted.Add(1)
	inv.inflight.Add(1)
	inv.local.Add(1)

	go func() {
		defer inv.inflight.Done()
		defer inv.local.Done()
		defer inv.recover(req)

		inv.sender.Send(inv.ctx, req)
	}()
}

// Call sends req and waits for its outcome.
func (inv *Invocation) Call(req *http.Request) (out *http.Outcome) {
	req.Task = inv.task
	inv.attempted.Add(1)
	defer inv.recover(req)

	return inv.sender.Send(inv.ctx, req)
}

// recover keeps a panicking sender from taking the process down.
func (inv *Invocation) recover(req *http.Request) {
	if r := recover(); r != nil {
		inv.logger.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.Path,
			"panic":  fmt.Sprint(r),
		}).Error("request panicked")
	}
}

// Attempted returns the number of requests dispatched so far.
func (inv *Invocation) Attempted() int {
	return int(inv.attempted.Load())
}

// waitRequests blocks until every request fired by this invocation has completed.
func (inv *Invocation) waitRequests() {
	inv.local.Wait()
}
