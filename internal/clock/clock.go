// Package clock provides an injectable time source.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock, truncated to the microsecond resolution Postgres stores.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// Manual is a manually advanced clock for tests and tooling.
type Manual struct {
	mu sync.Mutex
	t  time.Time
}

// NewManual returns a clock frozen at t.
func NewManual(t time.Time) *Manual { return &Manual{t: t} }

// Now returns the current manual instant.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}
