// Package clock provides an injectable time source.
//
// The engine never calls time.Now or time.After directly: every deadline,
// budget, and SLA measurement goes through a Clock so that timeout behavior
// is deterministic under test.
package clock

import "time"

// Clock is the time source injected into the engine.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the elapsed time since t.
	Since(t time.Time) time.Duration
	// After returns a channel that fires once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// System is a Clock backed by the real wall clock.
type System struct{}

// NewSystem creates a system clock.
func NewSystem() *System { return &System{} }

func (*System) Now() time.Time                         { return time.Now() }
func (*System) Since(t time.Time) time.Duration        { return time.Since(t) }
func (*System) After(d time.Duration) <-chan time.Time { return time.After(d) }
