// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"time"
)

// ParticipantID identifies an end user. Valid ids are positive.
type ParticipantID int64

// Valid reports whether the id can take part in matching.
func (id ParticipantID) Valid() bool { return id > 0 }

func (id ParticipantID) String() string { return strconv.FormatInt(int64(id), 10) }

// ShakeEvent is a single clink signal held in the recent-event window.
// Events are never mutated after insertion.
type ShakeEvent struct {
	ParticipantID ParticipantID `json:"participant_id"`
	DisplayHandle string        `json:"display_handle,omitempty"`
	ContactTag    string        `json:"contact_tag,omitempty"`
	// Timestamp is the resolved event time used for pairing.
	Timestamp time.Time `json:"ts"`
	// ReceivedAt is the server time of insertion, used for retention.
	ReceivedAt time.Time `json:"received_at"`
	// Seq orders insertions; larger means inserted later.
	Seq uint64 `json:"seq"`
}

// PartnerQuery describes a partner lookup in the recent-event window.
type PartnerQuery struct {
	ParticipantID ParticipantID
	Timestamp     time.Time
	// Window is the pairing tolerance applied on both sides of Timestamp.
	Window time.Duration
	// NotBefore excludes events received before this instant.
	NotBefore time.Time
}

// Matches reports whether ev is an eligible partner for q.
func (q PartnerQuery) Matches(ev ShakeEvent) bool {
	if ev.ParticipantID == q.ParticipantID {
		return false
	}
	if ev.ReceivedAt.Before(q.NotBefore) {
		return false
	}
	delta := ev.Timestamp.Sub(q.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta <= q.Window
}

// Profile holds the latest known public details of a participant.
type Profile struct {
	ParticipantID ParticipantID `json:"participant_id"`
	DisplayHandle string        `json:"display_handle,omitempty"`
	ContactTag    string        `json:"contact_tag,omitempty"`
}

// Merge returns p updated with the non-empty fields of update.
func (p Profile) Merge(update Profile) Profile {
	p.ParticipantID = update.ParticipantID
	if update.DisplayHandle != "" {
		p.DisplayHandle = update.DisplayHandle
	}
	if update.ContactTag != "" {
		p.ContactTag = update.ContactTag
	}
	return p
}

// PairKey identifies an unordered pair on one calendar day.
type PairKey struct {
	Low  ParticipantID
	High ParticipantID
	Day  string
}

// NewPairKey orders a and b so that (a, b) and (b, a) share a key.
func NewPairKey(a, b ParticipantID, day string) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b, Day: day}
}

func (k PairKey) String() string {
	return k.Day + ":" + k.Low.String() + ":" + k.High.String()
}

// Standing is a participant's position on the leaderboard.
type Standing struct {
	Rank          int           `json:"rank"`
	ParticipantID ParticipantID `json:"participant_id"`
	Total         int64         `json:"total"`
	DisplayHandle string        `json:"display_handle,omitempty"`
}

// AssignRanks sets competition ranks on standings sorted by total desc,
// starting from the top of the board. Equal totals share a rank and the
// next rank skips.
func AssignRanks(standings []Standing) {
	for i := range standings {
		if i > 0 && standings[i].Total == standings[i-1].Total {
			standings[i].Rank = standings[i-1].Rank
			continue
		}
		standings[i].Rank = i + 1
	}
}
