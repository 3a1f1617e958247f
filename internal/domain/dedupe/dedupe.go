// Package dedupe guards against awarding the same pair twice in one day.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/clink/internal/domain/clock"
	"github.com/okian/clink/internal/domain/model"
)

// InMemoryLedger records (pair, day) marks in process memory.
// Marks expire lazily: an expired mark behaves as absent and is
// reclaimed by a periodic sweep on the write path.
type InMemoryLedger struct {
	mu         sync.Mutex
	marks      map[model.PairKey]time.Time // key -> expiresAt
	clock      clock.Clock
	sweepEvery int
	writes     int
	size       atomic.Int64
}

// NewInMemoryLedger creates an empty ledger.
func NewInMemoryLedger(opts ...Option) *InMemoryLedger {
	l := &InMemoryLedger{
		clock:      clock.System{},
		sweepEvery: 1024,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.marks = make(map[model.PairKey]time.Time)
	return l
}

// MarkIfAbsent atomically records key unless an unexpired mark exists.
// Returns true if the mark was newly created.
func (l *InMemoryLedger) MarkIfAbsent(_ context.Context, key model.PairKey, expiresAt time.Time) (bool, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if exp, ok := l.marks[key]; ok {
		if now.Before(exp) {
			return false, nil
		}
		delete(l.marks, key)
		l.size.Add(-1)
	}

	l.marks[key] = expiresAt
	l.size.Add(1)

	l.writes++
	if l.sweepEvery > 0 && l.writes%l.sweepEvery == 0 {
		l.sweepLocked(now)
	}
	return true, nil
}

// Unmark removes key so that the pair can be awarded again.
// It is used to roll back a mark whose award could not be applied.
func (l *InMemoryLedger) Unmark(_ context.Context, key model.PairKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.marks[key]; ok {
		delete(l.marks, key)
		l.size.Add(-1)
	}
	return nil
}

// IsMarked reports whether an unexpired mark exists for key.
func (l *InMemoryLedger) IsMarked(_ context.Context, key model.PairKey) (bool, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.marks[key]
	return ok && now.Before(exp), nil
}

// Sweep drops every expired mark.
func (l *InMemoryLedger) Sweep() {
	now := l.clock.Now()
	l.mu.Lock()
	l.sweepLocked(now)
	l.mu.Unlock()
}

func (l *InMemoryLedger) sweepLocked(now time.Time) {
	for k, exp := range l.marks {
		if !now.Before(exp) {
			delete(l.marks, k)
			l.size.Add(-1)
		}
	}
}

// Size returns the number of stored marks, including expired ones not yet swept.
func (l *InMemoryLedger) Size() int64 {
	return l.size.Load()
}
