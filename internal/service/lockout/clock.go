// Package lockout implements tiered brute-force protection for the admin
// credential: per-identity failure counting with durable attempt records, a
// fixed lockout window, and an advisory in-process memory that defers
// attempt-record cleanup.
package lockout

import "time"

// Clock provides an abstraction for time operations to enable testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
