package clock

import "time"

// Clock supplies the timestamps stamped onto thresholds and alert records,
// kept injectable so stores and the manager stay deterministic under test.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock is the production clock. All persisted timestamps and
// generated identities use UTC.
// Params: none.
// Returns: system time normalized to UTC.
type RealClock struct{}

// Now reads the system clock.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
