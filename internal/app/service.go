// Package service builds the clink backend from configuration and exposes
// the operations required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/clink/internal/adapters/mq/queue"
	"github.com/okian/clink/internal/adapters/mq/worker"
	"github.com/okian/clink/internal/adapters/redisstore"
	"github.com/okian/clink/internal/adapters/repository"
	"github.com/okian/clink/internal/config"
	"github.com/okian/clink/internal/domain/auth"
	"github.com/okian/clink/internal/domain/clock"
	"github.com/okian/clink/internal/domain/dedupe"
	"github.com/okian/clink/internal/domain/matchmaking"
	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/internal/domain/window"
	"github.com/okian/clink/pkg/logger"
	"github.com/okian/clink/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

const stopTimeout = 10 * time.Second

// Service owns the pairing engine and its supporting components.
type Service struct {
	mu sync.RWMutex

	cfg         *config.Config
	clock       clock.Clock
	redisClient redis.UniversalClient
	notifier    worker.Notifier

	// Built by Start.
	engine     *matchmaking.Engine
	windowSize func(ctx context.Context) (int, error)
	closer     func() error
	notices    *queue.InMemoryQueue
	workerPool *worker.Pool
	cancelRun  context.CancelFunc

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithClock sets the server time source used by the engine and stores.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRedisClient makes the redis backend use client instead of dialing
// redis_addr. The caller keeps ownership of client.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(s *Service) {
		s.redisClient = client
	}
}

// WithNotifier replaces the log notifier behind the match notice workers.
func WithNotifier(n worker.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Nothing is connected until Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:   config.New(context.Background()),
		clock: clock.System{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the configuration the service runs with.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Start builds the backend, the notice pipeline and the engine.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.logger.Info(ctx, "starting clink service...", logger.String("backend", s.cfg.Backend))

	backend, err := s.buildBackend(ctx)
	if err != nil {
		return err
	}

	credit, err := matchmaking.ParseCreditPolicy(s.cfg.CreditPolicy)
	if err != nil {
		s.closeBackend()
		return err
	}
	opts := []matchmaking.Option{
		matchmaking.WithClock(s.clock),
		matchmaking.WithPairWindow(s.cfg.PairWindow()),
		matchmaking.WithRetention(s.cfg.Retention()),
		matchmaking.WithDailyPairEnforcement(s.cfg.DailyPairEnforcement),
		matchmaking.WithCreditPolicy(credit),
		matchmaking.WithLogger(s.logger.Named("engine")),
	}

	if s.cfg.StrictVerification {
		v, err := auth.NewTelegramVerifier(s.cfg.BotToken,
			auth.WithMaxAge(s.cfg.InitDataMaxAge()),
			auth.WithClock(s.clock),
		)
		if err != nil {
			s.closeBackend()
			return err
		}
		opts = append(opts, matchmaking.WithVerifier(v))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if s.cfg.NotifyWorkers > 0 {
		s.notices = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.NotifyQueueSize))
		notifier := s.notifier
		if notifier == nil {
			notifier = worker.NewLogNotifier(s.logger.Named("notifier"))
		}
		s.workerPool = worker.NewPool(s.cfg.NotifyWorkers, s.notices, notifier)
		s.workerPool.Start(runCtx)
		opts = append(opts, matchmaking.WithPublisher(s.notices))
	}

	engine, err := matchmaking.New(backend, opts...)
	if err != nil {
		cancel()
		s.stopPipeline(ctx)
		s.closeBackend()
		return err
	}

	s.engine = engine
	s.cancelRun = cancel
	s.started = true
	s.logger.Info(ctx, "clink service started",
		logger.String("backend", s.cfg.Backend),
		logger.Duration("pair_window", s.cfg.PairWindow()),
		logger.Duration("retention", s.cfg.Retention()),
		logger.Bool("daily_pair_enforcement", s.cfg.DailyPairEnforcement),
		logger.Bool("strict_verification", s.cfg.StrictVerification),
		logger.String("credit_policy", string(credit)),
		logger.Int("notify_workers", s.cfg.NotifyWorkers),
	)
	return nil
}

func (s *Service) buildBackend(ctx context.Context) (matchmaking.Backend, error) {
	switch s.cfg.Backend {
	case config.BackendRedis:
		client := s.redisClient
		owned := client == nil
		if owned {
			client = redisstore.NewClient(redisstore.ClientOptions{
				Addr:     s.cfg.RedisAddr,
				Username: s.cfg.RedisUsername,
				Password: s.cfg.RedisPassword,
				DB:       s.cfg.RedisDB,
			})
		}
		store := redisstore.NewStore(client,
			redisstore.WithKeyPrefix(s.cfg.RedisKeyPrefix),
			redisstore.WithRetention(s.cfg.Retention()),
			redisstore.WithClock(s.clock),
		)
		if err := store.Ping(ctx); err != nil {
			if owned {
				_ = store.Close()
			}
			return matchmaking.Backend{}, fmt.Errorf("connect redis at %s: %w", s.cfg.RedisAddr, err)
		}
		s.windowSize = store.WindowLen
		if owned {
			s.closer = store.Close
		}
		s.logger.Info(ctx, "using redis store",
			logger.String("addr", s.cfg.RedisAddr),
			logger.String("key_prefix", s.cfg.RedisKeyPrefix),
		)
		return matchmaking.Backend{Profiles: store, Window: store, Pairs: store, Scores: store}, nil

	default:
		w := window.NewInMemoryWindow(
			window.WithRetention(s.cfg.Retention()),
			window.WithMaxEvents(s.cfg.WindowMaxEvents),
		)
		s.windowSize = func(context.Context) (int, error) { return w.Len(), nil }
		s.logger.Info(ctx, "using in-memory treap store")
		return matchmaking.Backend{
			Profiles: repository.NewInMemoryProfiles(),
			Window:   w,
			Pairs:    dedupe.NewInMemoryLedger(dedupe.WithClock(s.clock)),
			Scores:   repository.NewTreapStore(),
		}, nil
	}
}

// Stop drains pending match notices and releases the backend.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping clink service...")
	s.stopPipeline(ctx)
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.closeBackend()

	s.engine = nil
	s.started = false
	s.logger.Info(ctx, "clink service stopped")
}

func (s *Service) stopPipeline(ctx context.Context) {
	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "notice workers did not drain", logger.Error(err))
		}
		s.workerPool = nil
	}
	s.notices = nil
}

func (s *Service) closeBackend() {
	if s.closer != nil {
		if err := s.closer(); err != nil {
			s.logger.Warn(context.Background(), "error closing backend", logger.Error(err))
		}
		s.closer = nil
	}
	s.windowSize = nil
}

func (s *Service) running() (*matchmaking.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.engine, nil
}

// RecordShake registers one clink.
func (s *Service) RecordShake(ctx context.Context, req model.ShakeRequest) (model.ShakeResult, error) {
	e, err := s.running()
	if err != nil {
		return model.ShakeResult{}, err
	}
	return e.RecordShake(ctx, req)
}

// GetProgress returns the total and rank of a participant.
func (s *Service) GetProgress(ctx context.Context, id model.ParticipantID) (model.Progress, error) {
	e, err := s.running()
	if err != nil {
		return model.Progress{}, err
	}
	return e.GetProgress(ctx, id)
}

// Leaderboard returns the top limit standings.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]model.Standing, error) {
	e, err := s.running()
	if err != nil {
		return nil, err
	}
	return e.Leaderboard(ctx, limit)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"backend":       s.cfg.Backend,
		"started":       s.started,
		"notifyWorkers": s.cfg.NotifyWorkers,
	}
	if !s.started {
		return stats
	}

	if s.windowSize != nil {
		if n, err := s.windowSize(ctx); err == nil {
			stats["windowSize"] = n
			metrics.UpdateWindowEvents(n)
		}
	}
	if s.notices != nil {
		queueLen := s.notices.Len(ctx)
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	if n, err := s.engine.Participants(ctx); err == nil {
		stats["participants"] = n
		metrics.UpdateParticipants(n)
	} else {
		stats["participantsError"] = err.Error()
	}
	return stats
}
