// Package clock supplies the current time to the entity and the token
// validator. Nothing in the application calls time.Now directly for domain
// timestamps, so tests can pin the time.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in a fixed location (APP_TIMEZONE).
type System struct {
	loc *time.Location
}

// NewSystem loads the named IANA zone. An empty name means UTC.
func NewSystem(timezone string) (*System, error) {
	if timezone == "" {
		return &System{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("clock: loading timezone %q: %w", timezone, err)
	}
	return &System{loc: loc}, nil
}

func (s *System) Now() time.Time {
	return time.Now().In(s.loc)
}

// Location is the zone Now reports in.
func (s *System) Location() *time.Location {
	return s.loc
}

// Manual is a settable clock for tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
