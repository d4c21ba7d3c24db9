// Package controller owns the execution state of one mission and drives it
// through validation, preparation, flight and completion.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skyfleet/missionctl/internal/clock"
	"github.com/skyfleet/missionctl/internal/geo"
	"github.com/skyfleet/missionctl/internal/phase"
	"github.com/skyfleet/missionctl/internal/scheduler"
	"github.com/skyfleet/missionctl/internal/validation"
	"github.com/skyfleet/missionctl/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Fixed delays of the launch pipeline.
const (
	DefaultPrepareDelay = 2500 * time.Millisecond
	DefaultLaunchDelay  = 1000 * time.Millisecond

	// LaunchProgress is the progress a mission starts flying at.
	LaunchProgress = 0.1
)

// Catalog provides the routes and capture profiles a mission can select.
type Catalog interface {
	Route(pattern core.MissionPattern) (core.Route, bool)
	Profile(id string) (core.CaptureProfile, bool)
}

// Options configures a Controller. Clock, Catalog, Pattern and ProfileID are required.
type Options struct {
	ID        string
	Clock     clock.Clock
	Catalog   Catalog
	Pattern   core.MissionPattern
	ProfileID string

	// Engine defaults to a validation engine on Clock with default latency.
	Engine       *validation.Engine
	TickInterval time.Duration
	PrepareDelay time.Duration
	LaunchDelay  time.Duration
	Logger       *slog.Logger
}

// Controller is the single writer of a mission's ExecutionState. All timer
// and validation callbacks carry the run id they were started under and are
// discarded when it no longer matches.
type Controller struct {
	id           string
	clock        clock.Clock
	catalog      Catalog
	engine       *validation.Engine
	sched        *scheduler.Scheduler
	prepareDelay time.Duration
	launchDelay  time.Duration
	logger       *slog.Logger
	metrics      *metrics

	mu         sync.Mutex
	state      core.ExecutionState
	pattern    core.MissionPattern
	route      core.Route
	profile    core.CaptureProfile
	validated  bool
	validating bool
	launching  bool
	verdict    *core.Verdict
	runID      uint64
	verifyT    clock.Timer
	stageT     clock.Timer
	subs       map[*Subscription]struct{}
	disposed   bool
}

// New creates a controller in the initial Ready state.
func New(opts Options) (*Controller, error) {
	if opts.Clock == nil {
		return nil, fmt.Errorf("controller: clock is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("controller: catalog is required")
	}

	route, ok := opts.Catalog.Route(opts.Pattern)
	if !ok || len(route) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, opts.Pattern)
	}
	profile, ok := opts.Catalog.Profile(opts.ProfileID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, opts.ProfileID)
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	if opts.Engine == nil {
		opts.Engine = validation.NewEngine(opts.Clock, validation.Options{})
	}
	if opts.PrepareDelay <= 0 {
		opts.PrepareDelay = DefaultPrepareDelay
	}
	if opts.LaunchDelay <= 0 {
		opts.LaunchDelay = DefaultLaunchDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Controller{
		id:           opts.ID,
		clock:        opts.Clock,
		catalog:      opts.Catalog,
		engine:       opts.Engine,
		sched:        scheduler.New(opts.Clock, opts.TickInterval),
		prepareDelay: opts.PrepareDelay,
		launchDelay:  opts.LaunchDelay,
		logger:       opts.Logger.With("mission", opts.ID),
		metrics:      m,
		state:        core.InitialState(),
		pattern:      opts.Pattern,
		route:        route,
		profile:      profile,
		subs:         make(map[*Subscription]struct{}),
	}, nil
}

// ID returns the mission id given at creation.
func (c *Controller) ID() string {
	return c.id
}

// Snapshot returns the current derived view of the mission.
func (c *Controller) Snapshot() core.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers a subscription that immediately receives the current
// snapshot and then one snapshot per change. buffer is clamped to at least 1.
func (c *Controller) Subscribe(buffer int) (*Subscription, error) {
	if buffer < 1 {
		buffer = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, ErrDisposed
	}

	ch := make(chan core.Snapshot, buffer)
	sub := &Subscription{C: ch, ch: ch, ctrl: c}
	c.subs[sub] = struct{}{}
	sub.deliver(c.snapshotLocked())
	return sub, nil
}

// SelectPattern switches the flown route. Changing it resets the mission.
func (c *Controller) SelectPattern(p core.MissionPattern) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}

	route, ok := c.catalog.Route(p)
	if !ok || len(route) == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, p)
	}
	if c.lockedLocked() {
		return ErrMissionLocked
	}
	if p == c.pattern {
		return nil
	}

	c.pattern = p
	c.route = route
	c.resetLocked("pattern changed")
	return nil
}

// SelectProfile switches the capture profile. Changing it resets the mission.
func (c *Controller) SelectProfile(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}

	profile, ok := c.catalog.Profile(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, id)
	}
	if c.lockedLocked() {
		return ErrMissionLocked
	}
	if id == c.profile.ID {
		return nil
	}

	c.profile = profile
	c.resetLocked("profile changed")
	return nil
}

// Validate starts a validation run for the current pattern and profile.
// A run already in progress is superseded.
func (c *Controller) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if c.lockedLocked() {
		return ErrMissionLocked
	}
	if c.state.Status != core.StatusReady {
		return ErrInvalidTransition
	}

	c.stopTimerLocked(&c.verifyT)
	c.runID++
	c.validated = false
	c.validating = true
	c.verdict = nil

	runID := c.runID
	plan := validation.Plan{Pattern: c.pattern, Route: c.route, Profile: c.profile}
	c.verifyT = c.engine.Start(plan, func(v core.Verdict) {
		c.onVerdict(runID, v)
	})

	c.logger.Debug("validation started", "run", runID, "pattern", c.pattern, "profile", c.profile.ID)
	c.publishLocked()
	return nil
}

// Execute begins the launch pipeline, resumes a paused flight, or resets a
// completed mission. Calls while the pipeline is already active are no-ops.
func (c *Controller) Execute() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}

	switch {
	case c.state.Status == core.StatusCompleted:
		c.resetLocked("restart")
		return nil
	case c.state.Status == core.StatusRunning && c.state.Paused:
		c.resumeLocked()
		return nil
	case c.lockedLocked():
		return nil
	case c.state.Status != core.StatusReady:
		return ErrInvalidTransition
	case !c.validated:
		return ErrNotValidated
	}

	c.setStatusLocked(core.StatusPreparing)
	runID := c.runID
	c.stageT = c.clock.AfterFunc(c.prepareDelay, func() {
		c.onPrepared(runID)
	})
	c.publishLocked()
	return nil
}

// Restart returns a completed or failed mission to its initial state.
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if c.state.Status != core.StatusCompleted && c.state.Status != core.StatusFailed {
		return ErrInvalidTransition
	}
	c.resetLocked("restart")
	return nil
}

// Pause holds a running mission in place.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if c.state.Status != core.StatusRunning {
		return ErrInvalidTransition
	}
	if c.state.Paused {
		return nil
	}

	c.state.Paused = true
	c.sched.Stop()
	c.logger.Info("mission paused", "progress", c.state.Progress)
	c.publishLocked()
	return nil
}

// Resume continues a paused mission.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if c.state.Status != core.StatusRunning {
		return ErrInvalidTransition
	}
	if c.state.Paused {
		c.resumeLocked()
	}
	return nil
}

// ReturnToLaunch switches a running mission to its faster return leg.
func (c *Controller) ReturnToLaunch() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	if c.state.Status != core.StatusRunning {
		return ErrInvalidTransition
	}
	if c.state.Returning {
		return nil
	}

	c.state.Returning = true
	c.logger.Info("return to launch requested", "progress", c.state.Progress)
	c.publishLocked()
	return nil
}

// Dispose cancels every pending timer and closes all subscriptions.
// Later calls on the controller return ErrDisposed.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}

	c.disposed = true
	c.runID++
	c.cancelTimersLocked()
	for sub := range c.subs {
		c.unsubscribeLocked(sub)
	}
	c.logger.Debug("mission disposed")
}

// Wait blocks until the mission reaches a terminal status or ctx is done.
func (c *Controller) Wait(ctx context.Context) (core.Snapshot, error) {
	sub, err := c.Subscribe(1)
	if err != nil {
		return core.Snapshot{}, err
	}
	defer sub.Close()

	for {
		select {
		case snap, ok := <-sub.C:
			if !ok {
				return c.Snapshot(), ErrDisposed
			}
			if snap.State.Status == core.StatusCompleted || snap.State.Status == core.StatusFailed {
				return snap, nil
			}
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

func (c *Controller) onVerdict(runID uint64, v core.Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(runID, "verdict") || !c.validating {
		return
	}

	c.verifyT = nil
	c.validating = false
	c.verdict = &v
	c.validated = v.Passed()
	c.logger.Info("validation complete", "run", runID, "passed", c.validated)
	c.publishLocked()
}

func (c *Controller) onPrepared(runID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(runID, "prepare") || c.state.Status != core.StatusPreparing {
		return
	}

	c.launching = true
	c.setStatusLocked(core.StatusReady)
	c.stageT = c.clock.AfterFunc(c.launchDelay, func() {
		c.onLaunched(runID)
	})
	c.publishLocked()
}

func (c *Controller) onLaunched(runID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(runID, "launch") || !c.launching {
		return
	}

	c.stageT = nil
	c.launching = false
	c.state.Progress = LaunchProgress
	c.state.Paused = false
	c.state.Returning = false
	c.setStatusLocked(core.StatusRunning)
	c.sched.Start(runID, func(gen uint64) bool { return c.onTick(runID, gen) })
	c.publishLocked()
}

func (c *Controller) onTick(runID, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked(runID, "tick") || c.state.Status != core.StatusRunning {
		return false
	}
	// A pause or resume while this tick waited for the lock replaced its timer.
	if !c.sched.Current(gen) {
		c.metrics.stale.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", "tick")))
		return false
	}

	next, done := scheduler.Tick(c.state)
	c.state = next
	c.metrics.ticks.Add(context.Background(), 1)
	if done {
		c.setStatusLocked(core.StatusCompleted)
	}
	c.publishLocked()
	return !done
}

func (c *Controller) resumeLocked() {
	c.state.Paused = false
	runID := c.runID
	c.sched.Start(runID, func(gen uint64) bool { return c.onTick(runID, gen) })
	c.logger.Info("mission resumed", "progress", c.state.Progress)
	c.publishLocked()
}

// resetLocked cancels the current run and returns to the initial state.
func (c *Controller) resetLocked(reason string) {
	c.runID++
	c.cancelTimersLocked()
	from := c.state.Status
	c.state = core.InitialState()
	c.validated = false
	c.validating = false
	c.launching = false
	c.verdict = nil
	c.countTransition(from, c.state.Status)
	c.logger.Info("mission reset", "reason", reason, "run", c.runID, "pattern", c.pattern, "profile", c.profile.ID)
	c.publishLocked()
}

func (c *Controller) cancelTimersLocked() {
	c.stopTimerLocked(&c.verifyT)
	c.stopTimerLocked(&c.stageT)
	c.sched.Stop()
}

func (c *Controller) stopTimerLocked(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (c *Controller) setStatusLocked(s core.Status) {
	from := c.state.Status
	c.state.Status = s
	c.countTransition(from, s)
	c.logger.Info("mission status changed", "from", from, "to", s, "run", c.runID)
}

func (c *Controller) countTransition(from, to core.Status) {
	c.metrics.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (c *Controller) staleLocked(runID uint64, kind string) bool {
	if !c.disposed && runID == c.runID {
		return false
	}
	c.metrics.stale.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
	c.logger.Debug("discarding stale callback", "kind", kind, "run", runID, "current", c.runID)
	return true
}

// lockedLocked reports whether pattern and profile are frozen.
func (c *Controller) lockedLocked() bool {
	return c.state.Status == core.StatusPreparing || c.state.Status == core.StatusRunning || c.launching
}

func (c *Controller) unsubscribeLocked(sub *Subscription) {
	delete(c.subs, sub)
	sub.close()
}

func (c *Controller) snapshotLocked() core.Snapshot {
	pos, err := geo.PositionAt(c.route, c.state.Progress)
	if err != nil {
		c.logger.Warn("cannot place vehicle", "error", err)
	}

	snap := core.Snapshot{
		MissionID:  c.id,
		RunID:      c.runID,
		State:      c.state,
		Validated:  c.validated,
		Validating: c.validating,
		Launching:  c.launching,
		Pattern:    c.pattern,
		ProfileID:  c.profile.ID,
		Position:   pos,
		Phase:      phase.Resolve(c.state.Status, c.state.Progress, c.pattern),
		Time:       c.clock.Now(),
	}
	if c.verdict != nil {
		v := *c.verdict
		snap.Verdict = &v
	}
	return snap
}

func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for sub := range c.subs {
		sub.deliver(snap)
	}
}
