// Package scheduler runs recurring traffic tasks.
//
// Every task runs independently: cron tasks fire in their own goroutine on
// each tick, burst tasks loop in a goroutine of their own, and requests are
// dispatched without blocking the next firing. Nothing a task does can stop
// another task or the scheduler.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/trafficgen/internal/http"
	"github.com/wesleyorama2/trafficgen/internal/random"
)

// DefaultGracePeriod bounds how long Run waits for in-flight requests
// after its context is done.
const DefaultGracePeriod = 10 * time.Second

// ErrUnknownTask is returned by Fire for a name that was never registered.
var ErrUnknownTask = errors.New("unknown task")

// TaskObserver is notified about task activity, typically the metrics
// engine.
type TaskObserver interface {
	TaskFired(task string)
	TaskCompleted(task string, attempted int, d time.Duration)
	TaskSkipped(task string)
}

// Report summarizes one invocation.
type Report struct {
	Task      string        `json:"task" yaml:"task"`
	Attempted int           `json:"attempted" yaml:"attempted"`
	Started   time.Time     `json:"started" yaml:"started"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Err       error         `json:"-" yaml:"-"`
}

// TaskInfo describes a registered task and its live counters.
type TaskInfo struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Cadence     string    `json:"cadence" yaml:"cadence"`
	Serialize   bool      `json:"serialize" yaml:"serialize"`
	Stats       TaskStats `json:"stats" yaml:"stats"`
}

// Scheduler owns the registered tasks and their cadences.
type Scheduler struct {
	sender   http.Sender
	rnd      *random.Generator
	logger   logrus.FieldLogger
	observer TaskObserver
	wait     WaitFunc
	now      func() time.Time
	location *time.Location
	grace    time.Duration

	tasks  []*task
	byName map[string]*task

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	cron    *cron.Cron
	bursts  *errgroup.Group

	// requests fired and not yet completed, across all tasks
	inflight sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRandom sets the generator used for every draw.
func WithRandom(g *random.Generator) Option {
	return func(s *Scheduler) {
		s.rnd = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithObserver sets the task observer.
func WithObserver(o TaskObserver) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithWait replaces the function used for pacing, pre-delays and burst
// delays.
func WithWait(w WaitFunc) Option {
	return func(s *Scheduler) {
		s.wait = w
	}
}

// WithClock replaces the time source handed to task bodies.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// WithGracePeriod sets how long Run waits for in-flight requests.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Scheduler) {
		s.grace = d
	}
}

type nopObserver struct{}

func (nopObserver) TaskFired(string)                         {}
func (nopObserver) TaskCompleted(string, int, time.Duration) {}
func (nopObserver) TaskSkipped(string)                       {}

// New creates a scheduler sending every request through sender.
func New(sender http.Sender, options ...Option) *Scheduler {
	s := &Scheduler{
		sender:   sender,
		rnd:      random.New(),
		logger:   logrus.StandardLogger(),
		observer: nopObserver{},
		wait:     Sleep,
		now:      time.Now,
		location: time.Local,
		grace:    DefaultGracePeriod,
		byName:   make(map[string]*task),
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Register adds task definitions. Names must be unique and cadences valid.
// Registration is only possible before Start.
func (s *Scheduler) Register(defs ...Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("cannot register tasks after start")
	}

	for i := range defs {
		def := defs[i]
		if err := def.validate(); err != nil {
			return err
		}
		if _, exists := s.byName[def.Name]; exists {
			return fmt.Errorf("task %s registered twice", def.Name)
		}

		t := newTask(def)
		s.tasks = append(s.tasks, t)
		s.byName[def.Name] = t
	}

	return nil
}

// Start arms every registered task and returns immediately. Tasks run
// until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("scheduler already started")
	}
	if len(s.tasks) == 0 {
		return errors.New("no tasks registered")
	}

	ctx, cancel := context.WithCancel(ctx)

	logger := &cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(s.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)

	group, groupCtx := errgroup.WithContext(ctx)

	var bursts []*task
	for _, t := range s.tasks {
		switch cadence := t.def.Cadence.(type) {
		case Cron:
			id, err := c.AddJob(cadence.Spec, s.cronJob(ctx, t))
			if err != nil {
				cancel()
				return fmt.Errorf("task %s: %w", t.def.Name, err)
			}
			t.entryID = id
		case Burst:
			bursts = append(bursts, t)
		default:
			cancel()
			return fmt.Errorf("task %s: unsupported cadence %T", t.def.Name, cadence)
		}
	}

	s.cancel = cancel
	s.cron = c
	s.bursts = group
	s.started = true

	c.Start()
	for _, t := range bursts {
		t := t
		cadence := t.def.Cadence.(Burst)
		group.Go(func() error {
			return s.runBurst(groupCtx, t, cadence)
		})
	}

	for _, t := range s.tasks {
		s.logger.WithFields(logrus.Fields{
			"task":    t.def.Name,
			"cadence": t.def.Cadence.String(),
		}).Info("task scheduled")
	}

	return nil
}

// Run starts the scheduler and blocks until ctx is done, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	s.Stop(s.grace)
	return nil
}

// Stop halts all cadences, cancels running pauses and requests, and waits
// up to timeout for them to wind down.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	c, bursts, cancel := s.cron, s.bursts, s.cancel
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		_ = bursts.Wait()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-time.After(timeout):
		s.logger.WithField("grace", timeout.String()).Warn("scheduler stopped with requests still in flight")
	}
}

// Fire runs the named task once, waits for every request it dispatched,
// and reports the invocation.
func (s *Scheduler) Fire(ctx context.Context, name string) (*Report, error) {
	t, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	inv, report := s.invoke(ctx, t)
	inv.waitRequests()
	report.Attempted = inv.Attempted()
	return report, nil
}

// Tasks lists the registered tasks in registration order.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()

	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := TaskInfo{
			Name:        t.def.Name,
			Description: t.def.Description,
			Cadence:     t.def.Cadence.String(),
			Serialize:   t.def.Serialize,
			Stats:       t.stats(),
		}
		if c != nil && t.entryID != 0 {
			info.Stats.NextRun = c.Entry(t.entryID).Next
		}
		infos = append(infos, info)
	}
	return infos
}

// cronJob adapts a task to a cron job. Each tick runs in its own goroutine.
func (s *Scheduler) cronJob(ctx context.Context, t *task) cron.Job {
	return cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if t.def.Serialize {
			if !t.busy.CompareAndSwap(false, true) {
				t.skipped.Add(1)
				s.observer.TaskSkipped(t.def.Name)
				s.logger.WithField("task", t.def.Name).Info("previous invocation still running, firing skipped")
				return
			}
			defer t.busy.Store(false)
		}
		s.invoke(ctx, t)
	})
}

// runBurst fires t at once, then forever waits a fresh random delay and
// fires again. It returns when ctx is done.
func (s *Scheduler) runBurst(ctx context.Context, t *task, b Burst) error {
	for ctx.Err() == nil {
		s.invoke(ctx, t)

		delay := s.rnd.Duration(b.MinDelay, b.MaxDelay, b.unit())
		t.reschedule(s.now().Add(delay))
		s.logger.WithFields(logrus.Fields{
			"task":  t.def.Name,
			"delay": delay.String(),
		}).Info("burst rescheduled")

		if err := s.wait(ctx, delay); err != nil {
			break
		}
	}
	return nil
}

// invoke runs the body of t once. Requests fired by the body may still be
// in flight when it returns.
func (s *Scheduler) invoke(ctx context.Context, t *task) (*Invocation, *Report) {
	name := t.def.Name
	logger := s.logger.WithField("task", name)

	inv := &Invocation{
		ctx:      ctx,
		task:     name,
		sender:   s.sender,
		rnd:      s.rnd,
		wait:     s.wait,
		now:      s.now,
		logger:   logger,
		inflight: &s.inflight,
	}

	started := s.now()
	t.begin(started)
	s.observer.TaskFired(name)

	begin := time.Now()
	err := s.runBody(t, inv)
	elapsed := time.Since(begin)

	attempted := inv.Attempted()
	t.end(attempted)
	s.observer.TaskCompleted(name, attempted, elapsed)

	entry := logger.WithFields(logrus.Fields{
		"attempted": attempted,
		"duration":  elapsed.String(),
	})
	switch {
	case err == nil:
		entry.Info("task invocation finished")
	case ctx.Err() != nil:
		entry.Info("task invocation interrupted")
	default:
		entry.WithError(err).Warn("task invocation ended early")
	}

	return inv, &Report{
		Task:      name,
		Attempted: attempted,
		Started:   started,
		Duration:  elapsed,
		Err:       err,
	}
}

func (s *Scheduler) runBody(t *task, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.def.Name, r)
		}
	}()
	return t.def.Body(inv)
}
