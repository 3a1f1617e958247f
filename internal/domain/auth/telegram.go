// Package auth verifies Telegram WebApp init data presented with a clink.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/clink/internal/domain/clock"
	"github.com/okian/clink/internal/domain/model"
)

// Sentinel kinds for verification failures.
var (
	ErrMissingToken = errors.New("missing init data")
	ErrMalformed    = errors.New("malformed init data")
	ErrBadSignature = errors.New("init data signature mismatch")
	ErrExpired      = errors.New("init data expired")
	ErrWrongUser    = errors.New("init data belongs to another user")
)

// TelegramVerifier checks the signature Telegram puts on WebApp init data.
type TelegramVerifier struct {
	secret []byte
	maxAge time.Duration
	clock  clock.Clock
}

// VerifierOption configures a TelegramVerifier.
type VerifierOption func(*TelegramVerifier)

// WithMaxAge rejects init data whose auth_date is older than d. Zero disables the check.
func WithMaxAge(d time.Duration) VerifierOption {
	return func(v *TelegramVerifier) {
		if d >= 0 {
			v.maxAge = d
		}
	}
}

// WithClock sets the time source for the age check.
func WithClock(c clock.Clock) VerifierOption {
	return func(v *TelegramVerifier) {
		if c != nil {
			v.clock = c
		}
	}
}

// NewTelegramVerifier creates a verifier for the bot identified by botToken.
func NewTelegramVerifier(botToken string, opts ...VerifierOption) (*TelegramVerifier, error) {
	if botToken == "" {
		return nil, errors.New("auth: bot token is required")
	}
	v := &TelegramVerifier{
		secret: SecretKey(botToken),
		clock:  clock.System{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// SecretKey derives the WebApp signing key from a bot token.
func SecretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// Sign returns the hex signature of values under secret. The hash field is ignored.
func Sign(secret []byte, values url.Values) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(dataCheckString(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the raw init data string against the participant id.
func (v *TelegramVerifier) Verify(_ context.Context, token string, id model.ParticipantID) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}
	values, err := url.ParseQuery(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	got, err := hex.DecodeString(values.Get("hash"))
	if err != nil || len(got) == 0 {
		return ErrMalformed
	}
	want, _ := hex.DecodeString(Sign(v.secret, values))
	if !hmac.Equal(got, want) {
		return ErrBadSignature
	}

	if v.maxAge > 0 {
		sec, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: auth_date", ErrMalformed)
		}
		if v.clock.Now().Sub(time.Unix(sec, 0)) > v.maxAge {
			return ErrExpired
		}
	}

	if raw := values.Get("user"); raw != "" {
		var user struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return fmt.Errorf("%w: user", ErrMalformed)
		}
		if model.ParticipantID(user.ID) != id {
			return ErrWrongUser
		}
	}
	return nil
}

func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}
	return strings.Join(lines, "\n")
}
