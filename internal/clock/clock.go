// Package clock abstracts wall-clock timers so mission timing can be driven
// deterministically in tests.
package clock

import "time"

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the callback
	// already fired or was already stopped.
	Stop() bool
}

// Clock schedules callbacks in the future.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine (real clocks) or inline during
	// Advance (fake clocks) once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type scaledClock struct {
	inner Clock
	speed float64
}

// Scaled returns a clock whose delays are divided by speed, so a speed
// below 1 slows the simulation down. A speed of 1 or a non-positive speed
// returns inner unchanged.
func Scaled(inner Clock, speed float64) Clock {
	if speed == 1 || speed <= 0 {
		return inner
	}
	return &scaledClock{inner: inner, speed: speed}
}

func (c *scaledClock) Now() time.Time {
	return c.inner.Now()
}

func (c *scaledClock) AfterFunc(d time.Duration, f func()) Timer {
	return c.inner.AfterFunc(time.Duration(float64(d)/c.speed), f)
}
