package model

import "time"

// Holder is one token account observed during a rescan. Holders are
// recreated wholesale on every successful scan; a snapshot is never
// mutated field by field.
type Holder struct {
	Address            string    `json:"address"`
	Balance            uint64    `json:"balance"` // smallest unit
	PercentageOfSupply float64   `json:"percentage_of_supply"`
	IsEligible         bool      `json:"is_eligible"`
	LastObservedAt     time.Time `json:"last_observed_at"`
}
