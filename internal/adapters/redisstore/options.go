package redisstore

import (
	"time"

	"github.com/okian/clink/internal/domain/clock"
)

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix namespaces every key, "clink" by default.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRetention sets how long window events are kept after receipt.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock sets the time source used to compute pair mark TTLs.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}
