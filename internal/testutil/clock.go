// Package testutil provides shared helpers for tests.
package testutil

import "time"

// FixedClock returns the same instant on every call. It pins
// date-sensitive handlers so tests can assert exact promised dates.
type FixedClock struct {
	Instant time.Time
}

// NewFixedClock parses a YYYY-MM-DD date into a fixed clock.
// Panics on a malformed date; use only in tests.
func NewFixedClock(date string) FixedClock {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return FixedClock{Instant: t}
}

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.Instant }
