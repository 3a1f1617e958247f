package matchmaking

import (
	"context"
	"time"

	"github.com/okian/clink/internal/domain/model"
)

// ProfileStore keeps the latest public details per participant.
type ProfileStore interface {
	// UpsertProfile merges the non-empty fields of p and returns the stored profile.
	UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	GetProfile(ctx context.Context, id model.ParticipantID) (model.Profile, bool, error)
}

// EventWindow holds recently received clink events.
type EventWindow interface {
	// Insert stores ev and returns it with its insertion sequence set.
	Insert(ctx context.Context, ev model.ShakeEvent) (model.ShakeEvent, error)
	// FindPartner returns the most recently inserted event matching q.
	FindPartner(ctx context.Context, q model.PartnerQuery) (model.ShakeEvent, bool, error)
}

// PairLedger records which pairs were awarded on which day.
type PairLedger interface {
	// MarkIfAbsent atomically creates the mark unless it exists.
	// Returns true when this call created it.
	MarkIfAbsent(ctx context.Context, key model.PairKey, expiresAt time.Time) (bool, error)
	Unmark(ctx context.Context, key model.PairKey) error
}

// ScoreLedger holds participant totals.
type ScoreLedger interface {
	Increment(ctx context.Context, id model.ParticipantID, delta int64) (int64, error)
	Score(ctx context.Context, id model.ParticipantID) (int64, error)
	// Rank returns the competition rank, or zero for unknown participants.
	Rank(ctx context.Context, id model.ParticipantID) (int, error)
	TopN(ctx context.Context, n int) ([]model.Standing, error)
	Count(ctx context.Context) (int, error)
}

// Backend bundles the stores the engine works on.
type Backend struct {
	Profiles ProfileStore
	Window   EventWindow
	Pairs    PairLedger
	Scores   ScoreLedger
}

func (b Backend) valid() bool {
	return b.Profiles != nil && b.Window != nil && b.Pairs != nil && b.Scores != nil
}

// Verifier checks the opaque auth token presented with a clink.
type Verifier interface {
	Verify(ctx context.Context, token string, id model.ParticipantID) error
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string, id model.ParticipantID) error

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, token string, id model.ParticipantID) error {
	return f(ctx, token, id)
}

// Publisher receives notices of awarded matches. Publish must not block.
type Publisher interface {
	Enqueue(ctx context.Context, n model.MatchNotice) bool
}
