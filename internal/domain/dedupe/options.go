package dedupe

import "github.com/okian/clink/internal/domain/clock"

// Option applies a configuration option to the InMemoryLedger.
type Option func(*InMemoryLedger)

// WithClock sets the time source used for expiry checks.
func WithClock(c clock.Clock) Option {
	return func(l *InMemoryLedger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithSweepEvery sets how many writes happen between expiry sweeps.
// If n <= 0 expired marks are only reclaimed when their key is written again
// or Sweep is called.
func WithSweepEvery(n int) Option {
	return func(l *InMemoryLedger) {
		l.sweepEvery = n
	}
}
