package matchmaking

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/clink/internal/domain/clock"
	"github.com/okian/clink/pkg/logger"
)

// CreditPolicy decides who is credited when a pair is awarded.
type CreditPolicy string

const (
	// CreditBoth credits both participants of the pair.
	CreditBoth CreditPolicy = "both"
	// CreditCompleter credits only the participant whose request found the partner.
	CreditCompleter CreditPolicy = "completer"
)

// ParseCreditPolicy parses a policy name; empty means CreditBoth.
func ParseCreditPolicy(s string) (CreditPolicy, error) {
	switch CreditPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CreditBoth:
		return CreditBoth, nil
	case CreditCompleter:
		return CreditCompleter, nil
	default:
		return "", fmt.Errorf("unknown credit policy %q", s)
	}
}

// Default tuning.
const (
	DefaultPairWindow = 2500 * time.Millisecond
	DefaultRetention  = 5 * time.Second
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the server time source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithPairWindow sets the tolerance between two matching clinks.
func WithPairWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pairWindow = d
		}
	}
}

// WithRetention sets how long a received clink stays eligible.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retention = d
		}
	}
}

// WithDailyPairEnforcement toggles the once-per-day rule. Enabled by default.
func WithDailyPairEnforcement(enabled bool) Option {
	return func(e *Engine) {
		e.dailyPairs = enabled
	}
}

// WithVerifier sets the token check and turns strict verification on.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) {
		e.verifier = v
		e.strict = v != nil
	}
}

// WithCreditPolicy sets who gets credited on an award.
func WithCreditPolicy(p CreditPolicy) Option {
	return func(e *Engine) {
		if p != "" {
			e.credit = p
		}
	}
}

// WithPublisher sets where match notices are published.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
