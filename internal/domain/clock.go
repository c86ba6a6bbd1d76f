package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for run timestamps and the default
// target year. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock. Predictions themselves
// are never stamped; callers that need a run or publish timestamp take it
// from here so tests can freeze it.
func Now() time.Time {
	return clock.Now()
}

// DefaultTargetYear returns the year after the current calendar year — the
// next spawning season when forecasting from in-season survey data.
func DefaultTargetYear() int {
	return clock.Now().Year() + 1
}
