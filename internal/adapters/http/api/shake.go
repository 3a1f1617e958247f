package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/pkg/logger"
)

const (
	maxBodyBytes = 1 << 20
	// InitDataHeader carries Telegram WebApp init data when the body has no auth_token.
	InitDataHeader = "X-Telegram-Init-Data"
)

// ShakeDependencies defines the interface for clink processing.
type ShakeDependencies interface {
	RecordShake(ctx context.Context, req model.ShakeRequest) (model.ShakeResult, error)
}

// ShakeHandler handles clink requests.
type ShakeHandler struct {
	deps   ShakeDependencies
	logger logger.Logger
}

// NewShakeHandler creates a new shake handler.
func NewShakeHandler(deps ShakeDependencies, l logger.Logger) *ShakeHandler {
	return &ShakeHandler{deps: deps, logger: l}
}

// shakeRequest is the body of POST /shake. The legacy web client posts
// telegramId, name and contact; both spellings are accepted.
type shakeRequest struct {
	ParticipantID flexibleID        `json:"participant_id"`
	DisplayHandle string            `json:"display_handle"`
	ContactTag    string            `json:"contact_tag"`
	ClientTS      flexibleTimestamp `json:"client_ts"`
	AuthToken     string            `json:"auth_token"`

	TelegramID flexibleID `json:"telegramId"`
	Name       string     `json:"name"`
	Contact    string     `json:"contact"`
}

func (s shakeRequest) toModel(headerToken string) model.ShakeRequest {
	req := model.ShakeRequest{
		ParticipantID:     model.ParticipantID(s.ParticipantID),
		DisplayHandle:     s.DisplayHandle,
		ContactTag:        s.ContactTag,
		ClientTimestampMs: int64(s.ClientTS),
		AuthToken:         s.AuthToken,
	}
	if req.ParticipantID == 0 {
		req.ParticipantID = model.ParticipantID(s.TelegramID)
	}
	if req.DisplayHandle == "" {
		req.DisplayHandle = s.Name
	}
	if req.ContactTag == "" {
		req.ContactTag = s.Contact
	}
	if req.AuthToken == "" {
		req.AuthToken = headerToken
	}
	return req
}

type shakeResponse struct {
	OK          bool               `json:"ok"`
	Message     string             `json:"message"`
	Awarded     bool               `json:"awarded"`
	Status      model.Outcome      `json:"status"`
	Waiting     bool               `json:"waiting"`
	CalendarDay string             `json:"calendar_day"`
	Partner     *model.PartnerView `json:"partner"`
	Total       int64              `json:"total"`
}

// HandlePostShake handles POST /shake requests.
func (h *ShakeHandler) HandlePostShake(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_shake"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	var body shakeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		h.logger.Debug(r.Context(), "undecodable clink body", logger.Error(err))
		if errors.Is(err, errInvalidParticipantID) {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errInvalidParticipantID))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	res, err := h.deps.RecordShake(r.Context(), body.toModel(r.Header.Get(InitDataHeader)))
	if err != nil {
		writeEngineError(r.Context(), h.logger, w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, shakeResponse{
		OK:          true,
		Message:     res.Message,
		Awarded:     res.Awarded,
		Status:      res.Outcome,
		Waiting:     res.Outcome == model.OutcomeWaiting,
		CalendarDay: res.CalendarDay,
		Partner:     res.Partner,
		Total:       res.Total,
	})
}
