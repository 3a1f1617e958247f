package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/pkg/logger"
)

// LeaderboardDependencies defines the interface for leaderboard operations
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, limit int) ([]model.Standing, error)
}

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
	logger   logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int, l logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
		logger:   l,
	}
}

type leaderboardResponse struct {
	OK      bool             `json:"ok"`
	Entries []model.Standing `json:"entries"`
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N requests.
// A missing limit means min(100, maxLimit).
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	n := min(defaultLeaderboardLimit, h.maxLimit)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), n)
	if err != nil {
		writeEngineError(r.Context(), h.logger, w, op, err)
		return
	}
	if entries == nil {
		entries = []model.Standing{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{OK: true, Entries: entries})
}
