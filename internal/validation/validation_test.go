package validation

import (
	"context"
	"testing"
	"time"

	"github.com/skyfleet/missionctl/internal/clock"
	"github.com/skyfleet/missionctl/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPlan = Plan{
	Pattern: core.PatternGrid,
	Route:   core.Route{{X: 0, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 40}},
	Profile: core.CaptureProfile{ID: "mapping", Altitude: 60, Speed: 10},
}

func TestEngine_StartFiresAfterLatency(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	e := NewEngine(clk, Options{MetersPerUnit: 2})

	var got []core.Verdict
	e.Start(testPlan, func(v core.Verdict) { got = append(got, v) })

	clk.Advance(DefaultLatency - time.Millisecond)
	assert.Empty(t, got)

	clk.Advance(time.Millisecond)
	require.Len(t, got, 1)

	v := got[0]
	assert.True(t, v.Passed())
	assert.Len(t, v.Checks, 3)
	assert.Equal(t, core.PatternGrid, v.Pattern)
	assert.Equal(t, "mapping", v.ProfileID)
	assert.InDelta(t, 140.0, v.RouteLength, 1e-9)
	assert.Equal(t, 14*time.Second, v.EstimatedDuration)
	assert.Equal(t, clk.Now(), v.CheckedAt)

	clk.Advance(time.Hour)
	assert.Len(t, got, 1, "verdict delivered once")
}

func TestEngine_StopCancelsVerdict(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	e := NewEngine(clk, Options{})

	called := false
	timer := e.Start(testPlan, func(core.Verdict) { called = true })
	assert.True(t, timer.Stop())

	clk.Advance(time.Minute)
	assert.False(t, called)
}

func TestEngine_CustomLatency(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	e := NewEngine(clk, Options{Latency: 200 * time.Millisecond})
	assert.Equal(t, 200*time.Millisecond, e.Latency())

	called := false
	e.Start(testPlan, func(core.Verdict) { called = true })
	clk.Advance(200 * time.Millisecond)
	assert.True(t, called)
}

func TestEngine_ValidateBlocking(t *testing.T) {
	e := NewEngine(clock.Real(), Options{Latency: 5 * time.Millisecond})

	v, err := e.Validate(context.Background(), testPlan)
	require.NoError(t, err)
	assert.True(t, v.Passed())
}

func TestEngine_ValidateCancelled(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	e := NewEngine(clk, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Validate(ctx, testPlan)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, clk.Pending())
}

func TestEvaluate_ZeroSpeedHasNoEstimate(t *testing.T) {
	e := NewEngine(clock.NewFake(time.Unix(0, 0)), Options{})
	plan := testPlan
	plan.Profile.Speed = 0

	v := e.Evaluate(plan)
	assert.Zero(t, v.EstimatedDuration)
	assert.True(t, v.Passed())
}
