package model

import "time"

// PayoutStatus tracks a disbursement through the pipeline.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutCompleted PayoutStatus = "completed"
	PayoutFailed    PayoutStatus = "failed"
	PayoutSimulated PayoutStatus = "simulated"
)

// Payout is a single disbursement attempt lifecycle, owned exclusively by
// the payout pipeline. Invariant: TotalAmount == WinnerAmount + CreatorAmount.
type Payout struct {
	ID                  string       `json:"id"`
	WinnerAddress       string       `json:"winner_address"`
	WinnerAmount        uint64       `json:"winner_amount"`
	CreatorAmount       uint64       `json:"creator_amount"`
	TotalAmount         uint64       `json:"total_amount"`
	Status              PayoutStatus `json:"status"`
	Attempts            int          `json:"attempts"`
	SettlementReference string       `json:"settlement_reference,omitempty"`
	Error               string       `json:"error,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	CompletedAt         time.Time    `json:"completed_at,omitempty"`
	FailedAt            time.Time    `json:"failed_at,omitempty"`
}
