// Package clock resolves event timestamps and UTC calendar days.
package clock

import (
	"sync"
	"time"
)

// DayLayout formats calendar-day keys.
const DayLayout = "2006-01-02"

// Clock supplies the server time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now returns time.Now.
func (System) Now() time.Time { return time.Now() }

// MaxClientSkew is how far a client timestamp may sit from server time
// before it is ignored.
const MaxClientSkew = 24 * time.Hour

// ResolveTimestamp prefers a positive client timestamp in milliseconds that
// lies within MaxClientSkew of now, and falls back to now otherwise.
func ResolveTimestamp(clientMs int64, now time.Time) time.Time {
	if clientMs <= 0 {
		return now
	}
	ts := time.UnixMilli(clientMs)
	if d := ts.Sub(now); d > MaxClientSkew || d < -MaxClientSkew {
		return now
	}
	return ts
}

// DayKey returns the UTC calendar day of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// NextDayBoundary returns midnight UTC following t.
func NextDayBoundary(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// MarkExpiry returns when a pair mark for the day of ts may be dropped.
// A resolved timestamp trails server time by at most MaxClientSkew, so the
// day stops being reachable MaxClientSkew after its end.
func MarkExpiry(ts time.Time) time.Time {
	return NextDayBoundary(ts).Add(MaxClientSkew)
}

// Manual is a settable clock for tests and simulations.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a clock frozen at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
