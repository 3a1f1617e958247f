package repository

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrNotFound      = errors.New("participant not found")
	ErrInvalidLimit  = errors.New("invalid leaderboard limit")
	ErrInvalidAmount = errors.New("score increment must be positive")
)
