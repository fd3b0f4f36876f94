// Package clock provides the time base shared by the transports and the
// event log. All scenario parameters are expressed in units; a Unit maps
// one unit onto wall-clock time so a whole run can be scaled down in tests.
package clock

import "time"

// Clock is the source of timestamps and delays for a run.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Wall is the real-time Clock.
type Wall struct{}

// Now returns the current wall-clock time.
func (Wall) Now() time.Time { return time.Now() }

// Sleep pauses the calling goroutine for d. Non-positive durations return immediately.
func (Wall) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Unit is the wall-clock length of one simulation unit.
type Unit time.Duration

// DefaultUnit makes one unit equal to one second, matching the demo defaults.
const DefaultUnit = Unit(time.Second)

// Duration converts a value in units to a wall-clock duration.
func (u Unit) Duration(units float64) time.Duration {
	return time.Duration(units * float64(u))
}

// Units converts a wall-clock duration to units.
func (u Unit) Units(d time.Duration) float64 {
	if u == 0 {
		return 0
	}
	return float64(d) / float64(u)
}

// String renders the unit as its wall-clock duration.
func (u Unit) String() string {
	return time.Duration(u).String()
}
