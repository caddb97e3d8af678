// Package scheduler runs named periodic callbacks the way a timer-service
// daemon does: every firing runs to completion before any other firing starts,
// and a task may choose the wait before its next firing from inside its own
// callback.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MinPeriod is the shortest wait between two firings of one task.
const MinPeriod = time.Millisecond

var (
	ErrDuplicateTask = errors.New("scheduler: duplicate task")
	ErrInvalidPeriod = errors.New("scheduler: period must be positive")
	ErrRunning       = errors.New("scheduler: already running")
)

// MS converts a millisecond count to a period, rounding zero up to MinPeriod.
func MS(ms uint32) time.Duration {
	return clampPeriod(time.Duration(ms) * time.Millisecond)
}

func clampPeriod(d time.Duration) time.Duration {
	if d < MinPeriod {
		return MinPeriod
	}
	return d
}

type task struct {
	name      string
	startWait time.Duration
	initial   time.Duration
	fixed     bool
	fire      func() time.Duration
	fired     atomic.Uint64
}

type Scheduler struct {
	log zerolog.Logger

	regMu sync.Mutex
	tasks map[string]*task
	group *errgroup.Group
	ctx   context.Context

	// fireMu serializes callbacks across tasks.
	fireMu sync.Mutex
}

func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{log: log, tasks: make(map[string]*task)}
}

// Every registers a task firing every period. The first firing happens one
// period after startWait has elapsed.
func (s *Scheduler) Every(name string, period, startWait time.Duration, fn func()) error {
	if period <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, name)
	}
	period = clampPeriod(period)
	return s.add(&task{
		name:      name,
		startWait: startWait,
		initial:   period,
		fixed:     true,
		fire: func() time.Duration {
			fn()
			return period
		},
	})
}

// Adaptive registers a one-shot task that reschedules itself: fn returns the
// wait before the next firing, read fresh on every run. The first firing
// happens initial after startWait.
func (s *Scheduler) Adaptive(name string, startWait, initial time.Duration, fn func() time.Duration) error {
	if initial <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, name)
	}
	return s.add(&task{
		name:      name,
		startWait: startWait,
		initial:   clampPeriod(initial),
		fire:      fn,
	})
}

func (s *Scheduler) add(t *task) error {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	if _, ok := s.tasks[t.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.name)
	}
	s.tasks[t.name] = t
	if s.group != nil {
		s.launch(t)
	}
	s.log.Debug().
		Str("task", t.name).
		Dur("start_wait", t.startWait).
		Dur("initial", t.initial).
		Bool("fixed", t.fixed).
		Msg("task registered")
	return nil
}

// launch must be called with regMu held.
func (s *Scheduler) launch(t *task) {
	ctx := s.ctx
	s.group.Go(func() error { return s.loop(ctx, t) })
}

// Run starts every registered task and blocks until ctx is done. Tasks
// registered while running start immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	s.regMu.Lock()
	if s.group != nil {
		s.regMu.Unlock()
		return ErrRunning
	}
	g, gctx := errgroup.WithContext(ctx)
	s.group, s.ctx = g, gctx
	for _, t := range s.tasks {
		s.launch(t)
	}
	n := len(s.tasks)
	s.regMu.Unlock()

	s.log.Info().Int("tasks", n).Msg("scheduler started")
	<-gctx.Done()
	err := g.Wait()
	s.log.Info().Msg("scheduler stopped")
	return err
}

// Has reports whether a task with this name is registered.
func (s *Scheduler) Has(name string) bool {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

// Fired reports how many times the named task has run.
func (s *Scheduler) Fired(name string) uint64 {
	s.regMu.Lock()
	t, ok := s.tasks[name]
	s.regMu.Unlock()
	if !ok {
		return 0
	}
	return t.fired.Load()
}

func (s *Scheduler) loop(ctx context.Context, t *task) error {
	deadline := time.Now().Add(t.startWait + t.initial)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		next := clampPeriod(s.dispatch(t))
		now := time.Now()
		if t.fixed {
			// Auto-reload keeps the registered cadence unless we fell behind.
			deadline = deadline.Add(next)
			if deadline.Before(now) {
				deadline = now
			}
		} else {
			deadline = now.Add(next)
		}
		timer.Reset(time.Until(deadline))
	}
}

func (s *Scheduler) dispatch(t *task) time.Duration {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	next := t.fire()
	t.fired.Add(1)
	return next
}
