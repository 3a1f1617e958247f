package model

import "time"

// ShakeRequest is the input of a single clink.
type ShakeRequest struct {
	ParticipantID ParticipantID
	DisplayHandle string
	ContactTag    string
	// ClientTimestampMs is milliseconds since the epoch; non-positive means absent.
	ClientTimestampMs int64
	AuthToken         string
}

// Outcome classifies a successful RecordShake.
type Outcome string

const (
	OutcomeWaiting        Outcome = "waiting"
	OutcomeAwarded        Outcome = "awarded"
	OutcomeAlreadyMatched Outcome = "already_matched"
)

// PartnerView is the public view of a matched partner.
type PartnerView struct {
	ParticipantID ParticipantID `json:"participant_id"`
	DisplayHandle string        `json:"display_handle,omitempty"`
	ContactTag    string        `json:"contact_tag,omitempty"`
}

// ShakeResult is the outcome of RecordShake.
type ShakeResult struct {
	Outcome     Outcome
	Message     string
	Awarded     bool
	CalendarDay string
	Partner     *PartnerView
	Total       int64
}

// Progress is the read view of a participant.
type Progress struct {
	ParticipantID ParticipantID
	Total         int64
	// Rank is zero when the participant has no score entry yet.
	Rank    int
	Profile Profile
}

// MatchNotice announces an awarded pair to downstream notifiers.
type MatchNotice struct {
	ID             string
	Day            string
	AwardedAt      time.Time
	Initiator      PartnerView
	Partner        PartnerView
	InitiatorTotal int64
	// PartnerTotal is zero when the partner was not credited.
	PartnerTotal int64
}
