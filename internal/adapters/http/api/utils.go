package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/okian/clink/internal/domain/model"
)

var errInvalidParticipantID = errors.New("participant_id must be an integer")

// flexibleID accepts a participant id as a JSON number or a numeric string.
// Telegram clients send either depending on the SDK.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*f = 0
			return nil
		}
		id, err := parseParticipantID(s)
		if err != nil {
			return err
		}
		*f = flexibleID(id)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errInvalidParticipantID
	}
	id, err := parseParticipantID(n.String())
	if err != nil {
		return err
	}
	*f = flexibleID(id)
	return nil
}

// parseParticipantID parses a decimal participant id. Non-positive values are
// left for the engine to reject.
func parseParticipantID(s string) (model.ParticipantID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errInvalidParticipantID
	}
	return model.ParticipantID(id), nil
}

// flexibleTimestamp reads client_ts leniently: a number or numeric string of
// milliseconds, fractions truncated. Anything else decodes as absent so the
// server clock is used.
type flexibleTimestamp int64

func (f *flexibleTimestamp) UnmarshalJSON(b []byte) error {
	*f = 0
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		b = []byte(strings.TrimSpace(s))
	}
	ms, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(ms) || ms <= 0 || ms >= math.MaxInt64 {
		return nil
	}
	*f = flexibleTimestamp(ms)
	return nil
}
