package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"PotLuck/internal/event"
	"PotLuck/internal/gateway"
	"PotLuck/internal/model"
	"PotLuck/internal/recorder"
)

// ErrNoEligibleHolders is returned when selection runs against a snapshot
// with no holder meeting the minimum-hold threshold.
var ErrNoEligibleHolders = errors.New("no eligible holders")

// ErrNoSnapshot is returned before the first successful rescan.
var ErrNoSnapshot = errors.New("no holder snapshot yet")

// Snapshot is one immutable view of the holder set. It is replaced wholesale
// on every successful rescan; readers keep whatever snapshot they loaded.
type Snapshot struct {
	Holders       []*model.Holder // stable order: balance descending, then address
	ByAddress     map[string]*model.Holder
	TotalSupply   uint64
	MinimumHold   uint64
	EligibleCount int
	TotalWeight   uint64 // sum of eligible balances
	ScannedAt     time.Time
}

// Tracker owns the in-memory eligibility snapshot and serves weighted
// random selection over eligible holders.
type Tracker struct {
	gw       *gateway.Gateway
	rec      recorder.Recorder
	bus      *event.Bus
	mint     string
	minPct   float64
	excluded map[string]bool

	snapshot atomic.Pointer[Snapshot]
}

// New creates a Tracker. excluded lists burn/program accounts that never
// participate.
func New(gw *gateway.Gateway, rec recorder.Recorder, bus *event.Bus, mint string, minHoldPct float64, excluded []string) *Tracker {
	ex := make(map[string]bool, len(excluded))
	for _, a := range excluded {
		ex[a] = true
	}
	return &Tracker{gw: gw, rec: rec, bus: bus, mint: mint, minPct: minHoldPct, excluded: ex}
}

// MinimumHold derives the eligibility threshold from the total supply.
func MinimumHold(totalSupply uint64, minHoldPct float64) uint64 {
	return uint64(float64(totalSupply) * minHoldPct / 100)
}

// Rescan fetches the current holder set and supply, rebuilds the snapshot
// and swaps it in atomically. Readers racing a rescan keep serving the
// previous snapshot until the swap completes.
func (t *Tracker) Rescan(ctx context.Context) error {
	supply, err := t.gw.TokenSupply(ctx, t.mint)
	if err != nil {
		return fmt.Errorf("fetch token supply: %w", err)
	}
	if supply == 0 {
		return fmt.Errorf("token %s reports zero supply", t.mint)
	}
	balances, err := t.gw.TokenHolders(ctx, t.mint)
	if err != nil {
		return fmt.Errorf("fetch token holders: %w", err)
	}

	minHold := MinimumHold(supply, t.minPct)
	now := time.Now()

	holders := make([]*model.Holder, 0, len(balances))
	for _, hb := range balances {
		if hb.Balance == 0 || t.excluded[hb.Address] {
			continue
		}
		holders = append(holders, &model.Holder{
			Address:            hb.Address,
			Balance:            hb.Balance,
			PercentageOfSupply: float64(hb.Balance) / float64(supply) * 100,
			IsEligible:         hb.Balance >= minHold,
			LastObservedAt:     now,
		})
	}

	// Stable order for reproducible winner selection.
	sort.Slice(holders, func(i, j int) bool {
		if holders[i].Balance != holders[j].Balance {
			return holders[i].Balance > holders[j].Balance
		}
		return holders[i].Address < holders[j].Address
	})

	snap := &Snapshot{
		Holders:     holders,
		ByAddress:   make(map[string]*model.Holder, len(holders)),
		TotalSupply: supply,
		MinimumHold: minHold,
		ScannedAt:   now,
	}
	for _, h := range holders {
		snap.ByAddress[h.Address] = h
		if h.IsEligible {
			snap.EligibleCount++
			snap.TotalWeight += h.Balance
		}
	}

	t.snapshot.Store(snap)
	log.Printf("[INFO] holder rescan: %d holders, %d eligible, min hold %d, supply %d",
		len(holders), snap.EligibleCount, minHold, supply)

	if t.bus != nil {
		t.bus.Publish(event.Event{
			Type:            event.HoldersUpdated,
			EligibleHolders: snap.EligibleCount,
			TotalHolders:    len(holders),
		})
	}

	// Persistence is best-effort; a failed upsert never aborts the scan.
	if err := t.rec.RecordHolders(holders); err != nil {
		log.Printf("[ERROR] record holders: %v", err)
	}
	return nil
}

// Current returns the latest snapshot, or nil before the first scan.
func (t *Tracker) Current() *Snapshot {
	return t.snapshot.Load()
}

// Interval returns the adaptive rescan cadence for the current population:
// small holder sets are scanned fast, stable ones slowly.
func (t *Tracker) Interval() time.Duration {
	snap := t.snapshot.Load()
	if snap == nil {
		return 5 * time.Second
	}
	switch {
	case snap.EligibleCount < 50:
		return 5 * time.Second
	case snap.EligibleCount < 200:
		return 15 * time.Second
	default:
		return 30 * time.Second
	}
}

// FoldEntropy folds the bytes of a blockhash into a single non-negative
// integer. Deterministic, so a draw is auditable from the recorded hash.
func FoldEntropy(blockhash string) uint64 {
	var entropy uint64
	for _, b := range []byte(blockhash) {
		entropy = entropy*257 + uint64(b)
	}
	return entropy
}

// SelectWinner picks a holder weighted by balance: r = entropy mod total
// eligible weight, then walk the stable order subtracting balances. The
// same snapshot and entropy always produce the same winner.
func (t *Tracker) SelectWinner(entropy uint64) (*model.Holder, error) {
	snap := t.snapshot.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return SelectFromSnapshot(snap, entropy)
}

// SelectFromSnapshot runs weighted selection against an explicit snapshot,
// reusable for diagnostic draws.
func SelectFromSnapshot(snap *Snapshot, entropy uint64) (*model.Holder, error) {
	if snap.EligibleCount == 0 || snap.TotalWeight == 0 {
		return nil, ErrNoEligibleHolders
	}
	r := entropy % snap.TotalWeight
	var first *model.Holder
	for _, h := range snap.Holders {
		if !h.IsEligible {
			continue
		}
		if first == nil {
			first = h
		}
		// Exclusive bound: each holder owns exactly Balance values of r out
		// of TotalWeight, so win odds equal Balance/TotalWeight.
		if r < h.Balance {
			return h, nil
		}
		r -= h.Balance
	}
	// Unreachable when weights sum correctly; kept as the documented fallback.
	return first, nil
}

// EligibleHolders returns the eligible set in stable order.
func (t *Tracker) EligibleHolders() []*model.Holder {
	snap := t.snapshot.Load()
	if snap == nil {
		return nil
	}
	out := make([]*model.Holder, 0, snap.EligibleCount)
	for _, h := range snap.Holders {
		if h.IsEligible {
			out = append(out, h)
		}
	}
	return out
}

// TopHolders returns the n largest holders (eligible or not).
func (t *Tracker) TopHolders(n int) []*model.Holder {
	snap := t.snapshot.Load()
	if snap == nil {
		return nil
	}
	if n > len(snap.Holders) {
		n = len(snap.Holders)
	}
	return snap.Holders[:n]
}

// IsEligible reports whether the address meets the minimum-hold threshold.
func (t *Tracker) IsEligible(address string) bool {
	snap := t.snapshot.Load()
	if snap == nil {
		return false
	}
	h, ok := snap.ByAddress[address]
	return ok && h.IsEligible
}

// Distribution returns each eligible holder's share of the total eligible
// weight, for presentation.
func (t *Tracker) Distribution() map[string]float64 {
	snap := t.snapshot.Load()
	if snap == nil || snap.TotalWeight == 0 {
		return nil
	}
	dist := make(map[string]float64, snap.EligibleCount)
	for _, h := range snap.Holders {
		if h.IsEligible {
			dist[h.Address] = float64(h.Balance) / float64(snap.TotalWeight) * 100
		}
	}
	return dist
}
