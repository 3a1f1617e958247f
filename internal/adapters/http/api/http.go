// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/clink/internal/domain/matchmaking"
	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/pkg/logger"
)

const defaultLeaderboardLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RecordShake(ctx context.Context, req model.ShakeRequest) (model.ShakeResult, error)
	GetProgress(ctx context.Context, id model.ParticipantID) (model.Progress, error)
	Leaderboard(ctx context.Context, limit int) ([]model.Standing, error)
}

// Settings are the tunables the handlers publish or enforce.
type Settings struct {
	// MaxLeaderboardLimit caps ?limit on /leaderboard.
	MaxLeaderboardLimit int
	// PairWindow and MinResendInterval are published on /client-config.
	PairWindow        time.Duration
	MinResendInterval time.Duration
	// AllowedOrigins is the CORS allow list; empty allows any origin.
	AllowedOrigins []string
}

// Server wires HTTP routes for the business API.
type Server struct {
	settings Settings
	logger   logger.Logger

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	shakeHandler       *ShakeHandler
	progressHandler    *ProgressHandler
	leaderboardHandler *LeaderboardHandler
	clientHandler      *ClientHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, settings Settings) *Server {
	if settings.MaxLeaderboardLimit < 1 {
		settings.MaxLeaderboardLimit = defaultLeaderboardLimit
	}
	l := logger.Get().Named("api")
	return &Server{
		settings:           settings,
		logger:             l,
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		shakeHandler:       NewShakeHandler(deps, l),
		progressHandler:    NewProgressHandler(deps, l),
		leaderboardHandler: NewLeaderboardHandler(deps, settings.MaxLeaderboardLimit, l),
		clientHandler:      NewClientHandler(settings.PairWindow, settings.MinResendInterval, l.Named("client")),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/shake", MetricsMiddleware(s.shakeHandler.HandlePostShake, "shake"))
	mux.HandleFunc("/progress/", MetricsMiddleware(s.progressHandler.HandleGetProgress, "progress"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/client-config", MetricsMiddleware(s.clientHandler.HandleConfig, "client_config"))
	mux.HandleFunc("/client-log", MetricsMiddleware(s.clientHandler.HandleLog, "client_log"))
	mux.HandleFunc("/debug-log", MetricsMiddleware(s.clientHandler.HandleLog, "client_log"))
	mux.HandleFunc("/", s.healthHandler.HandleRoot)
}

// Wrap applies the request id and CORS middleware around next.
func (s *Server) Wrap(next http.Handler) http.Handler {
	return RequestIDMiddleware(CORSMiddleware(s.settings.AllowedOrigins, s.logger)(next))
}

type errorResponse struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{OK: false, Code: code, Message: msg})
}

// writeEngineError maps the engine error kinds to HTTP statuses. Backend
// details stay in the logs.
func writeEngineError(ctx context.Context, l logger.Logger, w http.ResponseWriter, op string, err error) {
	switch matchmaking.KindOf(err) {
	case matchmaking.ErrInvalidRequest:
		writeError(w, http.StatusBadRequest, "invalid_request", WrapKind(op, ErrBadRequest, matchmaking.ErrInvalidRequest))
	case matchmaking.ErrUnauthorized:
		l.Warn(ctx, "unauthorized request", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusUnauthorized, "unauthorized", errors.New("init data verification failed"))
	case matchmaking.ErrBackendUnavailable:
		l.Error(ctx, "backend unavailable", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "backend_unavailable", errors.New("storage temporarily unavailable, retry later"))
	default:
		l.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", errors.New("service unavailable"))
	}
}
