// Package scheduler advances mission progress on a fixed cadence.
package scheduler

import (
	"math"
	"sync"
	"time"

	"github.com/skyfleet/missionctl/internal/clock"
	"github.com/skyfleet/missionctl/internal/phase"
	"github.com/skyfleet/missionctl/pkg/core"
)

const (
	// DefaultInterval is the period between progress ticks.
	DefaultInterval = 150 * time.Millisecond

	// Progress increments per tick, in percent.
	CruiseStep = 0.5
	ReturnStep = 1.5
)

// Tick computes the state after one scheduler tick. Only a running,
// unpaused mission moves; done reports that progress reached 100.
func Tick(state core.ExecutionState) (next core.ExecutionState, done bool) {
	if state.Status != core.StatusRunning || state.Paused {
		return state, false
	}

	step := CruiseStep
	if state.Returning {
		step = ReturnStep
	}

	next = state
	next.Progress = math.Min(100, state.Progress+step)
	if next.Progress >= phase.ReturnStart {
		next.Returning = true
	}
	return next, next.Progress >= 100
}

// Scheduler owns at most one repeating timer. Each Start supersedes the
// previous one; callbacks of a superseded timer are discarded.
type Scheduler struct {
	clock    clock.Clock
	interval time.Duration

	mu     sync.Mutex
	timer  clock.Timer
	gen    uint64
	runID  uint64
	active bool
}

// New creates an idle scheduler. A non-positive interval uses DefaultInterval.
func New(clk clock.Clock, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{clock: clk, interval: interval}
}

// Start begins calling fn every interval, tagged with runID, until fn
// returns false or Stop is called. Any previous timer is cancelled first.
// fn is called without the scheduler lock held and receives the generation
// of the timer that fired; callers holding their own lock recheck it with
// Current before applying the tick.
func (s *Scheduler) Start(runID uint64, fn func(gen uint64) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	s.runID = runID
	s.active = true
	s.armLocked(s.gen, fn)
}

// Stop cancels the pending tick, if any.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Active reports whether a timer is armed.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// RunID returns the run id given to the most recent Start.
func (s *Scheduler) RunID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// Bumping the generation invalidates a callback already in flight.
	s.gen++
	s.active = false
}

// Current reports whether gen belongs to the armed timer. It turns false
// as soon as Stop or Start supersedes that timer.
func (s *Scheduler) Current(gen uint64) bool {
	return s.current(gen)
}

func (s *Scheduler) armLocked(gen uint64, fn func(uint64) bool) {
	s.timer = s.clock.AfterFunc(s.interval, func() {
		s.fire(gen, fn)
	})
}

func (s *Scheduler) fire(gen uint64, fn func(uint64) bool) {
	if !s.current(gen) {
		return
	}

	more := fn(gen)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.active {
		return
	}
	if !more {
		s.timer = nil
		s.active = false
		return
	}
	s.armLocked(gen, fn)
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen && s.active
}
