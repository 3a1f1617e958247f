package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/pkg/logger"
)

// ProgressDependencies defines the interface for progress reads.
type ProgressDependencies interface {
	GetProgress(ctx context.Context, id model.ParticipantID) (model.Progress, error)
}

// ProgressHandler handles progress requests.
type ProgressHandler struct {
	deps   ProgressDependencies
	logger logger.Logger
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(deps ProgressDependencies, l logger.Logger) *ProgressHandler {
	return &ProgressHandler{deps: deps, logger: l}
}

type progressResponse struct {
	OK            bool                `json:"ok"`
	ParticipantID model.ParticipantID `json:"participant_id"`
	Total         int64               `json:"total"`
	Rank          int                 `json:"rank"`
	Profile       model.Profile       `json:"profile"`
}

// HandleGetProgress handles GET /progress/{participant_id} requests.
func (h *ProgressHandler) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_progress"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	// Extract path parameter after /progress/
	path := strings.TrimPrefix(r.URL.Path, "/progress/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	id, err := parseParticipantID(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	p, err := h.deps.GetProgress(r.Context(), id)
	if err != nil {
		writeEngineError(r.Context(), h.logger, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		OK:            true,
		ParticipantID: p.ParticipantID,
		Total:         p.Total,
		Rank:          p.Rank,
		Profile:       p.Profile,
	})
}
