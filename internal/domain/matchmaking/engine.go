// Package matchmaking pairs clinks from nearby participants and awards
// scores at most once per unordered pair per UTC day.
package matchmaking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/clink/internal/domain/clock"
	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/pkg/logger"
	"github.com/okian/clink/pkg/metrics"
)

// Messages returned to clients.
const (
	MessageWaiting        = "clink received, waiting for a partner"
	MessageAwarded        = "clink! +1 point"
	MessageAwardedBoth    = "clink! +1 point to both of you"
	MessageAlreadyMatched = "already clinked with this partner today"
)

// Engine orchestrates the profile store, event window, pair ledger and
// score ledger for every incoming clink.
type Engine struct {
	backend Backend

	clock      clock.Clock
	pairWindow time.Duration
	retention  time.Duration
	dailyPairs bool
	strict     bool
	verifier   Verifier
	credit     CreditPolicy
	publisher  Publisher
	logger     logger.Logger
}

// New creates an engine over backend.
func New(backend Backend, opts ...Option) (*Engine, error) {
	if !backend.valid() {
		return nil, errors.New("matchmaking: backend must provide all four stores")
	}
	e := &Engine{
		backend:    backend,
		clock:      clock.System{},
		pairWindow: DefaultPairWindow,
		retention:  DefaultRetention,
		dailyPairs: true,
		credit:     CreditBoth,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RecordShake registers one clink and tries to pair it.
func (e *Engine) RecordShake(ctx context.Context, req model.ShakeRequest) (model.ShakeResult, error) {
	const op = "RecordShake"
	start := time.Now()
	defer func() {
		metrics.RecordShakeLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if !req.ParticipantID.Valid() {
		metrics.RecordShakeRejected("invalid_request")
		return model.ShakeResult{}, newError(op, ErrInvalidRequest)
	}
	if e.strict {
		if err := e.verifier.Verify(ctx, req.AuthToken, req.ParticipantID); err != nil {
			metrics.RecordShakeRejected("unauthorized")
			e.logger.Warn(ctx, "clink rejected by verifier",
				logger.Int64("participant", int64(req.ParticipantID)), logger.Error(err))
			return model.ShakeResult{}, wrapError(op, ErrUnauthorized, err)
		}
	}
	metrics.RecordShakeReceived()

	now := e.clock.Now()
	ts := clock.ResolveTimestamp(req.ClientTimestampMs, now)
	day := clock.DayKey(ts)

	profile, err := e.backend.Profiles.UpsertProfile(ctx, model.Profile{
		ParticipantID: req.ParticipantID,
		DisplayHandle: normalizeHandle(req.DisplayHandle),
		ContactTag:    strings.TrimSpace(req.ContactTag),
	})
	if err != nil {
		return model.ShakeResult{}, e.backendError(ctx, op, "upsert profile", err)
	}

	if _, err := e.backend.Window.Insert(ctx, model.ShakeEvent{
		ParticipantID: req.ParticipantID,
		DisplayHandle: profile.DisplayHandle,
		ContactTag:    profile.ContactTag,
		Timestamp:     ts,
		ReceivedAt:    now,
	}); err != nil {
		return model.ShakeResult{}, e.backendError(ctx, op, "window insert", err)
	}

	partnerEv, found, err := e.backend.Window.FindPartner(ctx, model.PartnerQuery{
		ParticipantID: req.ParticipantID,
		Timestamp:     ts,
		Window:        e.pairWindow,
		NotBefore:     now.Add(-e.retention),
	})
	if err != nil {
		return model.ShakeResult{}, e.backendError(ctx, op, "find partner", err)
	}

	if !found {
		total, err := e.backend.Scores.Score(ctx, req.ParticipantID)
		if err != nil {
			return model.ShakeResult{}, e.backendError(ctx, op, "read score", err)
		}
		metrics.RecordShakeUnpaired()
		return model.ShakeResult{
			Outcome:     model.OutcomeWaiting,
			Message:     MessageWaiting,
			CalendarDay: day,
			Total:       total,
		}, nil
	}

	partner := e.partnerView(ctx, partnerEv)
	key := model.NewPairKey(req.ParticipantID, partner.ParticipantID, day)

	if e.dailyPairs {
		created, err := e.backend.Pairs.MarkIfAbsent(ctx, key, clock.MarkExpiry(ts))
		if err != nil {
			return model.ShakeResult{}, e.backendError(ctx, op, "mark pair", err)
		}
		if !created {
			total, err := e.backend.Scores.Score(ctx, req.ParticipantID)
			if err != nil {
				return model.ShakeResult{}, e.backendError(ctx, op, "read score", err)
			}
			metrics.RecordMatchRepeat()
			return model.ShakeResult{
				Outcome:     model.OutcomeAlreadyMatched,
				Message:     MessageAlreadyMatched,
				CalendarDay: day,
				Partner:     &partner,
				Total:       total,
			}, nil
		}
	}

	total, err := e.backend.Scores.Increment(ctx, req.ParticipantID, 1)
	if err != nil {
		if e.dailyPairs {
			// nothing was credited, so a retry must still be able to award
			if uerr := e.backend.Pairs.Unmark(ctx, key); uerr != nil {
				e.logger.Error(ctx, "failed to release pair mark",
					logger.String("pair", key.String()), logger.Error(uerr))
			}
		}
		return model.ShakeResult{}, e.backendError(ctx, op, "increment score", err)
	}

	message := MessageAwarded
	var partnerTotal int64
	if e.credit == CreditBoth {
		message = MessageAwardedBoth
		partnerTotal, err = e.backend.Scores.Increment(ctx, partner.ParticipantID, 1)
		if err != nil {
			metrics.RecordPartnerCreditError()
			e.logger.Error(ctx, "failed to credit partner",
				logger.Int64("partner", int64(partner.ParticipantID)),
				logger.String("pair", key.String()),
				logger.Error(err))
			partnerTotal = 0
		}
	}

	metrics.RecordMatchAwarded()
	e.logger.Debug(ctx, "pair awarded",
		logger.String("pair", key.String()),
		logger.Int64("total", total))

	e.publish(ctx, model.MatchNotice{
		ID:        uuid.NewString(),
		Day:       day,
		AwardedAt: now,
		Initiator: model.PartnerView{
			ParticipantID: req.ParticipantID,
			DisplayHandle: profile.DisplayHandle,
			ContactTag:    profile.ContactTag,
		},
		Partner:        partner,
		InitiatorTotal: total,
		PartnerTotal:   partnerTotal,
	})

	return model.ShakeResult{
		Outcome:     model.OutcomeAwarded,
		Message:     message,
		Awarded:     true,
		CalendarDay: day,
		Partner:     &partner,
		Total:       total,
	}, nil
}

// GetProgress returns the total, rank and profile of a participant.
func (e *Engine) GetProgress(ctx context.Context, id model.ParticipantID) (model.Progress, error) {
	const op = "GetProgress"
	if !id.Valid() {
		return model.Progress{}, newError(op, ErrInvalidRequest)
	}

	total, err := e.backend.Scores.Score(ctx, id)
	if err != nil {
		return model.Progress{}, e.backendError(ctx, op, "read score", err)
	}
	rank, err := e.backend.Scores.Rank(ctx, id)
	if err != nil {
		return model.Progress{}, e.backendError(ctx, op, "read rank", err)
	}
	profile, ok, err := e.backend.Profiles.GetProfile(ctx, id)
	if err != nil {
		return model.Progress{}, e.backendError(ctx, op, "read profile", err)
	}
	if !ok {
		profile = model.Profile{ParticipantID: id}
	}
	return model.Progress{ParticipantID: id, Total: total, Rank: rank, Profile: profile}, nil
}

// Leaderboard returns the top limit standings with display handles.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]model.Standing, error) {
	const op = "Leaderboard"
	if limit < 1 {
		return nil, newError(op, ErrInvalidRequest)
	}

	standings, err := e.backend.Scores.TopN(ctx, limit)
	if err != nil {
		return nil, e.backendError(ctx, op, "top n", err)
	}
	for i := range standings {
		p, ok, err := e.backend.Profiles.GetProfile(ctx, standings[i].ParticipantID)
		if err != nil {
			return nil, e.backendError(ctx, op, "read profile", err)
		}
		if ok {
			standings[i].DisplayHandle = p.DisplayHandle
		}
	}
	return standings, nil
}

// Participants returns the number of participants with a score.
func (e *Engine) Participants(ctx context.Context) (int, error) {
	n, err := e.backend.Scores.Count(ctx)
	if err != nil {
		return 0, e.backendError(ctx, "Participants", "count", err)
	}
	return n, nil
}

// partnerView prefers the freshest stored profile and falls back to the
// fields captured on the matched event.
func (e *Engine) partnerView(ctx context.Context, ev model.ShakeEvent) model.PartnerView {
	view := model.PartnerView{
		ParticipantID: ev.ParticipantID,
		DisplayHandle: ev.DisplayHandle,
		ContactTag:    ev.ContactTag,
	}
	p, ok, err := e.backend.Profiles.GetProfile(ctx, ev.ParticipantID)
	if err != nil {
		e.logger.Warn(ctx, "partner profile unavailable, using event fields",
			logger.Int64("partner", int64(ev.ParticipantID)), logger.Error(err))
		return view
	}
	if ok {
		if p.DisplayHandle != "" {
			view.DisplayHandle = p.DisplayHandle
		}
		if p.ContactTag != "" {
			view.ContactTag = p.ContactTag
		}
	}
	return view
}

func (e *Engine) publish(ctx context.Context, n model.MatchNotice) {
	if e.publisher == nil {
		return
	}
	if !e.publisher.Enqueue(ctx, n) {
		e.logger.Warn(ctx, "match notice dropped", logger.String("notice_id", n.ID))
	}
}

func (e *Engine) backendError(ctx context.Context, op, step string, err error) error {
	e.logger.Error(ctx, "backend failure", logger.String("op", op), logger.String("step", step), logger.Error(err))
	metrics.RecordErrorByType("backend_unavailable", "high")
	return wrapError(op, ErrBackendUnavailable, err)
}

func normalizeHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}
