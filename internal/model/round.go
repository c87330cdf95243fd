package model

import "time"

// RoundStatus is the engine state machine's view of a round.
type RoundStatus string

const (
	StatusWaiting          RoundStatus = "waiting"
	StatusSpinning         RoundStatus = "spinning"
	StatusWinnerSelected   RoundStatus = "winner_selected"
	StatusProcessingPayout RoundStatus = "processing_payout"
	StatusCompleted        RoundStatus = "completed"
	StatusFailed           RoundStatus = "failed"
	StatusPaused           RoundStatus = "paused"
)

// Round is one full waiting→spin→payout cycle. Immutable once it reaches
// a terminal status, except for the settlement fields filled in during
// payout processing.
type Round struct {
	ID                  string      `json:"id"`
	StartTime           time.Time   `json:"start_time"`
	EndTime             time.Time   `json:"end_time"`
	PotAtStart          uint64      `json:"pot_at_start"`
	EligibleAtStart     int         `json:"eligible_at_start"`
	Winner              *Holder     `json:"winner,omitempty"`
	WinnerPayout        uint64      `json:"winner_payout"`
	CreatorPayout       uint64      `json:"creator_payout"`
	Entropy             uint64      `json:"entropy"`
	SettlementReference string      `json:"settlement_reference,omitempty"`
	Status              RoundStatus `json:"status"`
	Error               string      `json:"error,omitempty"`
}
