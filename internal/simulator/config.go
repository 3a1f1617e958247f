// Package simulator drives a running clink service over HTTP with pairs of
// participants and checks that the awarded totals match the crediting policy.
package simulator

import (
	"errors"
	"time"

	"github.com/okian/clink/internal/domain/matchmaking"
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	// pairGap separates consecutive pairs on the timestamp axis on top of
	// twice the pair window, so no clink can pair across pairs.
	pairGap = time.Second
)

// ErrVerification is returned by Run when the observed totals or outcomes
// disagree with the expected crediting.
var ErrVerification = errors.New("simulation verification failed")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string
	Pairs        int
	Repeat       int
	Workers      int
	TopN         int
	Timeout      time.Duration
	CreditPolicy matchmaking.CreditPolicy
	OutputFile   string
	LogFile      string
	Verbose      bool
}

// Member is one side of a simulated pair.
type Member struct {
	ParticipantID int64  `json:"participant_id"`
	DisplayHandle string `json:"display_handle"`
	ClientTS      int64  `json:"client_ts"`
}

// Pair is two participants that clink together.
type Pair struct {
	Index int    `json:"index"`
	A     Member `json:"a"`
	B     Member `json:"b"`
}

// Stats tracks simulation statistics.
type Stats struct {
	PairsGenerated     int
	ClinksSent         int
	ClinksFailed       int
	Waiting            int
	Awarded            int
	AlreadyMatched     int
	UnpairedPairs      int
	DoubleAwards       int
	RepeatAwards       int
	ProgressChecked    int
	TotalMismatches    int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}

func (s *Stats) violations() int {
	return s.ClinksFailed + s.UnpairedPairs + s.DoubleAwards + s.RepeatAwards + s.TotalMismatches
}
