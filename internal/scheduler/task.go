package scheduler

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Body is the work done by one invocation of a task. It returns only the
// context error when a pause is interrupted; request failures never surface
// here.
type Body func(inv *Invocation) error

// Cadence decides when a task runs.
type Cadence interface {
	fmt.Stringer
	validate() error
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Cron fires on a standard five-field cron expression, for example
// "*/5 * * * *" or "0 * * * *".
type Cron struct {
	Spec string
}

func (c Cron) String() string {
	return "cron(" + c.Spec + ")"
}

func (c Cron) validate() error {
	if _, err := cronParser.Parse(c.Spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", c.Spec, err)
	}
	return nil
}

// Schedule returns the parsed schedule.
func (c Cron) Schedule() (cron.Schedule, error) {
	return cronParser.Parse(c.Spec)
}

// Burst runs once at start, then re-arms itself after a delay drawn from
// [MinDelay, MaxDelay] units, recomputed on every cycle.
type Burst struct {
	MinDelay int
	MaxDelay int

	// Unit scales the delay bounds. Zero means time.Minute.
	Unit time.Duration
}

func (b Burst) unit() time.Duration {
	if b.Unit <= 0 {
		return time.Minute
	}
	return b.Unit
}

func (b Burst) String() string {
	return fmt.Sprintf("burst(every %d-%d x %s)", b.MinDelay, b.MaxDelay, b.unit())
}

func (b Burst) validate() error {
	if b.MinDelay < 0 || b.MaxDelay < 0 {
		return errors.New("burst delays must not be negative")
	}
	if b.MinDelay > b.MaxDelay {
		return fmt.Errorf("burst min delay %d exceeds max delay %d", b.MinDelay, b.MaxDelay)
	}
	if b.MaxDelay == 0 {
		return errors.New("burst max delay must be positive")
	}
	return nil
}

// Definition is a registered recurring task. It is not modified after
// registration.
type Definition struct {
	Name        string
	Description string
	Cadence     Cadence

	// Serialize skips a firing while the previous invocation of the same
	// task is still running. Without it invocations may overlap.
	Serialize bool

	Body Body
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return errors.New("task name is required")
	}
	if d.Cadence == nil {
		return fmt.Errorf("task %s: cadence is required", d.Name)
	}
	if d.Body == nil {
		return fmt.Errorf("task %s: body is required", d.Name)
	}
	if err := d.Cadence.validate(); err != nil {
		return fmt.Errorf("task %s: %w", d.Name, err)
	}
	return nil
}

// TaskState represents where a task is in its cycle.
type TaskState int32

const (
	// TaskIdle waits for its next cron firing.
	TaskIdle TaskState = iota
	// TaskRunning has at least one invocation in progress.
	TaskRunning
	// TaskRescheduled is a burst task waiting out its randomized delay.
	TaskRescheduled
)

func (s TaskState) String() string {
	switch s {
	case TaskIdle:
		return "idle"
	case TaskRunning:
		return "running"
	case TaskRescheduled:
		return "rescheduled"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s TaskState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TaskStats is a snapshot of a task's activity.
type TaskStats struct {
	State     TaskState `json:"state" yaml:"state"`
	Firings   int64     `json:"firings" yaml:"firings"`
	Skipped   int64     `json:"skipped" yaml:"skipped"`
	Running   int32     `json:"running" yaml:"running"`
	Attempted int64     `json:"attempted" yaml:"attempted"`
	LastFired time.Time `json:"lastFired,omitempty" yaml:"lastFired,omitempty"`
	NextRun   time.Time `json:"nextRun,omitempty" yaml:"nextRun,omitempty"`
}

// task is the runtime side of a Definition.
type task struct {
	def Definition

	// idle state to report when nothing is running
	rest atomic.Int32

	running   atomic.Int32
	busy      atomic.Bool
	firings   atomic.Int64
	skipped   atomic.Int64
	attempted atomic.Int64
	lastFired atomic.Int64
	nextRun   atomic.Int64

	entryID cron.EntryID
}

func newTask(def Definition) *task {
	return &task{def: def}
}

func (t *task) begin(now time.Time) {
	t.running.Add(1)
	t.firings.Add(1)
	t.lastFired.Store(now.UnixNano())
}

func (t *task) end(attempted int) {
	t.attempted.Add(int64(attempted))
	t.running.Add(-1)
}

func (t *task) reschedule(next time.Time) {
	t.rest.Store(int32(TaskRescheduled))
	t.nextRun.Store(next.UnixNano())
}

func (t *task) stats() TaskStats {
	st := TaskStats{
		State:     TaskState(t.rest.Load()),
		Firings:   t.firings.Load(),
		Skipped:   t.skipped.Load(),
		Running:   t.running.Load(),
		Attempted: t.attempted.Load(),
		LastFired: unixTime(t.lastFired.Load()),
		NextRun:   unixTime(t.nextRun.Load()),
	}
	if st.Running > 0 {
		st.State = TaskRunning
	}
	return st
}

func unixTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
