package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/okian/clink/pkg/logger"
)

const maxClientLogBytes = 64 << 10

// ClientHandler serves the web client's configuration and debug log sink.
type ClientHandler struct {
	pairWindow        time.Duration
	minResendInterval time.Duration
	logger            logger.Logger
}

// NewClientHandler creates a new client handler.
func NewClientHandler(pairWindow, minResendInterval time.Duration, l logger.Logger) *ClientHandler {
	return &ClientHandler{
		pairWindow:        pairWindow,
		minResendInterval: minResendInterval,
		logger:            l,
	}
}

type clientConfigResponse struct {
	MinResendIntervalMS int64 `json:"min_resend_interval_ms"`
	PairWindowMS        int64 `json:"pair_window_ms"`
}

// HandleConfig handles GET /client-config requests.
func (h *ClientHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	writeJSON(w, http.StatusOK, clientConfigResponse{
		MinResendIntervalMS: h.minResendInterval.Milliseconds(),
		PairWindowMS:        h.pairWindow.Milliseconds(),
	})
}

type okResponse struct {
	OK bool `json:"ok"`
}

// HandleLog handles POST /client-log requests. The payload is logged as is.
func (h *ClientHandler) HandleLog(w http.ResponseWriter, r *http.Request) {
	const op = "api.client_log"
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	var payload json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, maxClientLogBytes)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	h.logger.Info(r.Context(), "client log",
		logger.String("path", r.URL.Path),
		logger.String("request_id", RequestIDFrom(r.Context())),
		logger.String("payload", string(payload)),
	)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
