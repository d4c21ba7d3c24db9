// Package validation simulates pre-flight plan checks with a fixed latency.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/skyfleet/missionctl/internal/clock"
	"github.com/skyfleet/missionctl/internal/geo"
	"github.com/skyfleet/missionctl/pkg/core"
)

// DefaultLatency is how long a validation run takes before its verdict is available.
const DefaultLatency = 1500 * time.Millisecond

// Plan is the input of a validation run.
type Plan struct {
	Pattern core.MissionPattern
	Route   core.Route
	Profile core.CaptureProfile
}

// Options configures an Engine.
type Options struct {
	Latency       time.Duration
	MetersPerUnit float64
}

// Engine runs validation checks. It never touches execution state; the
// caller decides what to do with the verdict.
type Engine struct {
	clock         clock.Clock
	latency       time.Duration
	metersPerUnit float64
}

// NewEngine creates an engine on the given clock. Zero options fall back to defaults.
func NewEngine(clk clock.Clock, opts Options) *Engine {
	if opts.Latency <= 0 {
		opts.Latency = DefaultLatency
	}
	if opts.MetersPerUnit <= 0 {
		opts.MetersPerUnit = 1
	}
	return &Engine{clock: clk, latency: opts.Latency, metersPerUnit: opts.MetersPerUnit}
}

// Latency returns the configured validation latency.
func (e *Engine) Latency() time.Duration {
	return e.latency
}

// Start schedules a validation run and calls done exactly once when it
// completes, unless the returned timer is stopped first.
func (e *Engine) Start(plan Plan, done func(core.Verdict)) clock.Timer {
	return e.clock.AfterFunc(e.latency, func() {
		done(e.Evaluate(plan))
	})
}

// Validate runs a validation and blocks until the verdict is ready or ctx is done.
func (e *Engine) Validate(ctx context.Context, plan Plan) (core.Verdict, error) {
	result := make(chan core.Verdict, 1)
	t := e.Start(plan, func(v core.Verdict) { result <- v })

	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		t.Stop()
		return core.Verdict{}, ctx.Err()
	}
}

// Evaluate computes the verdict for plan immediately.
func (e *Engine) Evaluate(plan Plan) core.Verdict {
	length := geo.Length(plan.Route)

	var duration time.Duration
	if plan.Profile.Speed > 0 {
		seconds := length * e.metersPerUnit / plan.Profile.Speed
		duration = time.Duration(seconds * float64(time.Second))
	}

	return core.Verdict{
		Pattern:   plan.Pattern,
		ProfileID: plan.Profile.ID,
		Checks: []core.CheckResult{
			{Name: core.CheckNoFlyZone, Passed: true, Detail: fmt.Sprintf("%d waypoints clear", len(plan.Route))},
			{Name: core.CheckTerrainSafety, Passed: true, Detail: fmt.Sprintf("clearance at %.0f m", plan.Profile.Altitude)},
			{Name: core.CheckDeviceHealth, Passed: true, Detail: "nominal"},
		},
		RouteLength:       length * e.metersPerUnit,
		EstimatedDuration: duration,
		CheckedAt:         e.clock.Now(),
	}
}
