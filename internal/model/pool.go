package model

// PoolState is the prize pool between rounds. Mutated only by the game
// engine; the pot never decreases except through a successful payout.
type PoolState struct {
	CurrentAmount     uint64  `json:"current_amount"` // smallest unit
	GrowthRate        float64 `json:"growth_rate"`    // per cycle, 0~1
	BaseAmount        uint64  `json:"base_amount"`    // floor after payout
	MaxGrowthPerCycle uint64  `json:"max_growth_per_cycle"`
}

// Grow applies one cycle of pot growth and returns the new amount.
func (p *PoolState) Grow() uint64 {
	growth := uint64(float64(p.CurrentAmount) * p.GrowthRate)
	if growth > p.MaxGrowthPerCycle {
		growth = p.MaxGrowthPerCycle
	}
	p.CurrentAmount += growth
	if p.CurrentAmount < p.BaseAmount {
		p.CurrentAmount = p.BaseAmount
	}
	return p.CurrentAmount
}

// RaiseTo lifts the pot to match an external funding source. One-directional:
// a lower observed balance never shrinks the pot.
func (p *PoolState) RaiseTo(observed uint64) bool {
	if observed > p.CurrentAmount {
		p.CurrentAmount = observed
		return true
	}
	return false
}
