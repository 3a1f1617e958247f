// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogJSON switches log output to JSON lines.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Backend selects the store implementation: memory or redis.
	Backend string `koanf:"backend"`

	RedisAddr      string `koanf:"redis_addr"`
	RedisUsername  string `koanf:"redis_username"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// DailyPairEnforcement limits each pair to one award per UTC day.
	DailyPairEnforcement bool `koanf:"daily_pair_enforcement"`

	// StrictVerification requires a valid Telegram init data signature.
	StrictVerification bool   `koanf:"strict_verification"`
	BotToken           string `koanf:"bot_token"`
	// InitDataMaxAgeSec rejects older init data; zero disables the check.
	InitDataMaxAgeSec int `koanf:"init_data_max_age_sec"`

	PairWindowMS int `koanf:"pair_window_ms"`
	RetentionMS  int `koanf:"retention_ms"`
	// MinResendIntervalMS is published to clients; the server does not enforce it.
	MinResendIntervalMS int `koanf:"min_resend_interval_ms"`
	// WindowMaxEvents caps the in-memory event window.
	WindowMaxEvents int `koanf:"window_max_events"`

	// CreditPolicy is "both" or "completer".
	CreditPolicy string `koanf:"credit_policy"`

	// NotifyWorkers is the number of match notice workers; zero disables notices.
	NotifyWorkers   int `koanf:"notify_workers"`
	NotifyQueueSize int `koanf:"notify_queue_size"`

	// AllowedOrigins is a comma separated CORS allow list; empty allows any origin.
	AllowedOrigins string `koanf:"allowed_origins"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config with defaults. Context is accepted first to
// satisfy the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		Backend:              BackendMemory,
		RedisAddr:            "localhost:6379",
		RedisKeyPrefix:       "clink",
		DailyPairEnforcement: true,
		PairWindowMS:         2500,
		RetentionMS:          5000,
		MinResendIntervalMS:  1500,
		WindowMaxEvents:      10_000,
		CreditPolicy:         "both",
		NotifyWorkers:        2,
		NotifyQueueSize:      1024,
		MaxLeaderboardLimit:  100,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Backend != BackendMemory && c.Backend != BackendRedis:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	case c.Backend == BackendRedis && c.RedisAddr == "":
		return fmt.Errorf("%w: redis_addr is required for the redis backend", ErrInvalidConfig)
	case c.StrictVerification && c.BotToken == "":
		return fmt.Errorf("%w: bot_token is required with strict_verification", ErrInvalidConfig)
	case c.PairWindowMS <= 0:
		return fmt.Errorf("%w: pair_window_ms must be positive", ErrInvalidConfig)
	case c.RetentionMS < c.PairWindowMS:
		return fmt.Errorf("%w: retention_ms must not be shorter than pair_window_ms", ErrInvalidConfig)
	case c.MinResendIntervalMS < 0, c.InitDataMaxAgeSec < 0:
		return fmt.Errorf("%w: intervals must not be negative", ErrInvalidConfig)
	case c.NotifyWorkers < 0:
		return fmt.Errorf("%w: notify_workers must not be negative", ErrInvalidConfig)
	case c.NotifyWorkers > 0 && c.NotifyQueueSize <= 0:
		return fmt.Errorf("%w: notify_queue_size must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.CreditPolicy) {
	case "", "both", "completer":
	default:
		return fmt.Errorf("%w: unknown credit_policy %q", ErrInvalidConfig, c.CreditPolicy)
	}
	return nil
}

// PairWindow returns PairWindowMS as a duration.
func (c *Config) PairWindow() time.Duration {
	return time.Duration(c.PairWindowMS) * time.Millisecond
}

// Retention returns RetentionMS as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionMS) * time.Millisecond
}

// InitDataMaxAge returns InitDataMaxAgeSec as a duration.
func (c *Config) InitDataMaxAge() time.Duration {
	return time.Duration(c.InitDataMaxAgeSec) * time.Second
}

// Origins splits AllowedOrigins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
