package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/okian/clink/internal/domain/model"
)

func TestFlexibleID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    model.ParticipantID
		wantErr bool
	}{
		{name: "number", in: `{"participant_id":1001}`, want: 1001},
		{name: "numeric string", in: `{"participant_id":"2002"}`, want: 2002},
		{name: "padded string", in: `{"participant_id":" 42 "}`, want: 42},
		{name: "empty string", in: `{"participant_id":""}`, want: 0},
		{name: "null", in: `{"participant_id":null}`, want: 0},
		{name: "absent", in: `{}`, want: 0},
		{name: "negative passes through", in: `{"participant_id":-5}`, want: -5},
		{name: "fraction", in: `{"participant_id":1.5}`, wantErr: true},
		{name: "word", in: `{"participant_id":"abc"}`, wantErr: true},
		{name: "bool", in: `{"participant_id":true}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req shakeRequest
			err := json.Unmarshal([]byte(tt.in), &req)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := model.ParticipantID(req.ParticipantID); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestShakeRequestToModel(t *testing.T) {
	req := shakeRequest{TelegramID: 7, Name: "@dan", Contact: "dan_tg"}.toModel("init-data")
	if req.ParticipantID != 7 || req.DisplayHandle != "@dan" || req.ContactTag != "dan_tg" || req.AuthToken != "init-data" {
		t.Errorf("legacy fields not mapped: %+v", req)
	}

	req = shakeRequest{ParticipantID: 8, TelegramID: 7, DisplayHandle: "eve", Name: "dan", AuthToken: "body"}.toModel("header")
	if req.ParticipantID != 8 || req.DisplayHandle != "eve" || req.AuthToken != "body" {
		t.Errorf("primary fields should win: %+v", req)
	}
}

func TestFlexibleTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int64
	}{
		{name: "integer", in: `{"client_ts":1700000000000}`, want: 1700000000000},
		{name: "fraction truncated", in: `{"client_ts":1700000000000.5}`, want: 1700000000000},
		{name: "numeric string", in: `{"client_ts":"1700000000123"}`, want: 1700000000123},
		{name: "exponent", in: `{"client_ts":1.7e12}`, want: 1700000000000},
		{name: "word", in: `{"client_ts":"soon"}`, want: 0},
		{name: "bool", in: `{"client_ts":true}`, want: 0},
		{name: "object", in: `{"client_ts":{"ms":5}}`, want: 0},
		{name: "negative", in: `{"client_ts":-1}`, want: 0},
		{name: "overflow", in: `{"client_ts":1e300}`, want: 0},
		{name: "null", in: `{"client_ts":null}`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req shakeRequest
			if err := json.Unmarshal([]byte(`{"participant_id":1,`+tt.in[1:]), &req); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := req.toModel("").ClientTimestampMs; got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFlexibleIDErrorKind(t *testing.T) {
	var req shakeRequest
	err := json.Unmarshal([]byte(`{"participant_id":"abc"}`), &req)
	if !errors.Is(err, errInvalidParticipantID) {
		t.Fatalf("expected errInvalidParticipantID, got %v", err)
	}
}

func TestOpError(t *testing.T) {
	err := WrapKind("api.test", ErrBadRequest, ErrNotFound)
	if err.Error() != "api.test: bad request: not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if NewKind("api.test", ErrBadRequest).Error() != "api.test: bad request" {
		t.Errorf("unexpected kind message")
	}
}
