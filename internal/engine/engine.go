package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"PotLuck/internal/config"
	"PotLuck/internal/event"
	"PotLuck/internal/gateway"
	"PotLuck/internal/model"
	"PotLuck/internal/payout"
	"PotLuck/internal/recorder"
	"PotLuck/internal/tracker"
)

// ErrNotWaiting is returned by admin operations that require the engine to
// be idle between rounds.
var ErrNotWaiting = errors.New("engine is not in waiting state")

// ErrNotPaused is returned by Resume when the engine is not paused.
var ErrNotPaused = errors.New("engine is not paused")

const (
	historyCap = 50
	// spinGuard prevents immediate re-firing when wall-clock rounding lands
	// within tick skew of now.
	spinGuard = 10 * time.Second
)

// Engine drives the round state machine: waiting → spinning →
// winner_selected → processing_payout → completed, looping back to waiting.
// A single instance is active; every transition is a check-and-set under
// the engine mutex, so two ticks can never both leave waiting.
type Engine struct {
	mu sync.Mutex

	cfg      *config.Config
	gw       *gateway.Gateway
	tracker  *tracker.Tracker
	pipeline *payout.Pipeline
	rec      recorder.Recorder
	bus      *event.Bus
	ctx      context.Context

	state      model.RoundStatus
	pool       model.PoolState
	current    *model.Round
	history    []*model.Round // most-recent-first, cap historyCap
	nextSpinAt time.Time

	// spinDelay is the presentation pause between spinning and the winner
	// announcement; not correctness-relevant.
	spinDelay time.Duration
}

// New creates the Engine in waiting state with the first spin scheduled.
func New(ctx context.Context, cfg *config.Config, gw *gateway.Gateway, tr *tracker.Tracker, pl *payout.Pipeline, rec recorder.Recorder, bus *event.Bus) *Engine {
	e := &Engine{
		cfg:      cfg,
		gw:       gw,
		tracker:  tr,
		pipeline: pl,
		rec:      rec,
		bus:      bus,
		ctx:      ctx,
		state:    model.StatusWaiting,
		pool: model.PoolState{
			CurrentAmount:     cfg.Pot.BaseAmount,
			GrowthRate:        cfg.Pot.GrowthRate,
			BaseAmount:        cfg.Pot.BaseAmount,
			MaxGrowthPerCycle: cfg.Pot.MaxGrowthPerCycle,
		},
		spinDelay: time.Duration(cfg.Lottery.SpinDurationSeconds) * time.Second,
	}
	e.nextSpinAt = NextSpinTime(time.Now(), cfg.SpinInterval())
	log.Printf("[INFO] first spin scheduled at %s", e.nextSpinAt.Format(time.RFC3339))
	return e
}

// NextSpinTime rounds now up to the next multiple of interval, skipping one
// full interval when the result lands inside the guard window.
func NextSpinTime(now time.Time, interval time.Duration) time.Time {
	next := now.Truncate(interval).Add(interval)
	if next.Sub(now) < spinGuard {
		next = next.Add(interval)
	}
	return next
}

// Tick fires on the scheduler cadence. It spins when the engine is waiting
// and the scheduled time has arrived, and is a no-op otherwise.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.state != model.StatusWaiting || time.Now().Before(e.nextSpinAt) {
		e.mu.Unlock()
		return
	}
	e.state = model.StatusSpinning
	e.mu.Unlock()

	e.publishState(model.StatusSpinning)
	e.runRound()
}

// ForceSpin starts a round immediately. Allowed only from waiting.
func (e *Engine) ForceSpin() error {
	e.mu.Lock()
	if e.state != model.StatusWaiting {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotWaiting, e.state)
	}
	e.state = model.StatusSpinning
	e.mu.Unlock()

	e.publishState(model.StatusSpinning)
	go e.runRound()
	return nil
}

// Pause halts the cadence and pot updates. Allowed only from waiting.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.state != model.StatusWaiting {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotWaiting, e.state)
	}
	e.state = model.StatusPaused
	e.mu.Unlock()

	log.Println("[INFO] engine paused")
	e.publishState(model.StatusPaused)
	return nil
}

// Resume restores the cadence from paused.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.state != model.StatusPaused {
		e.mu.Unlock()
		return ErrNotPaused
	}
	e.state = model.StatusWaiting
	e.nextSpinAt = NextSpinTime(time.Now(), e.cfg.SpinInterval())
	next := e.nextSpinAt
	e.mu.Unlock()

	log.Printf("[INFO] engine resumed, next spin at %s", next.Format(time.RFC3339))
	e.publishState(model.StatusWaiting)
	return nil
}

// runRound executes one full cycle. Whatever happens, the engine ends back
// in waiting with the next spin scheduled — one bad round never stalls the
// cadence.
func (e *Engine) runRound() {
	e.mu.Lock()
	pot := e.pool.CurrentAmount
	e.mu.Unlock()

	snap := e.tracker.Current()
	eligible := 0
	if snap != nil {
		eligible = snap.EligibleCount
	}

	round := &model.Round{
		ID:              fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.NewString()[:8]),
		StartTime:       time.Now(),
		PotAtStart:      pot,
		EligibleAtStart: eligible,
		Status:          model.StatusSpinning,
	}
	log.Printf("[INFO] round %s: pot %d, %d eligible holders", round.ID, pot, eligible)
	e.bus.Publish(event.Event{
		Type:            event.RoundStarted,
		RoundID:         round.ID,
		Pot:             pot,
		EligibleHolders: eligible,
	})

	blockhash, err := e.gw.LatestBlockhash(e.ctx)
	if err != nil {
		e.finishRound(round, model.StatusFailed, fmt.Errorf("fetch entropy: %w", err))
		return
	}
	round.Entropy = tracker.FoldEntropy(blockhash)

	winner, err := e.tracker.SelectWinner(round.Entropy)
	if err != nil {
		// No eligible holders is a skipped cycle, not a failed round.
		if errors.Is(err, tracker.ErrNoEligibleHolders) || errors.Is(err, tracker.ErrNoSnapshot) {
			log.Printf("[INFO] round %s skipped: %v", round.ID, err)
			e.bus.Publish(event.Event{Type: event.RoundSkipped, RoundID: round.ID, Pot: pot})
			e.backToWaiting()
			return
		}
		e.finishRound(round, model.StatusFailed, err)
		return
	}
	round.Winner = winner

	// Presentation delay so the audience sees the wheel spin.
	if e.spinDelay > 0 {
		select {
		case <-e.ctx.Done():
		case <-time.After(e.spinDelay):
		}
	}

	e.setState(model.StatusWinnerSelected)
	round.Status = model.StatusWinnerSelected
	round.WinnerPayout = uint64(float64(pot) * e.cfg.Lottery.WinnerPercentage / 100)
	round.CreatorPayout = uint64(float64(pot) * e.cfg.Lottery.CreatorPercentage / 100)
	log.Printf("[INFO] round %s winner: %s (%.4f%% of supply), payout %d",
		round.ID, winner.Address, winner.PercentageOfSupply, round.WinnerPayout)
	e.bus.Publish(event.Event{
		Type:            event.WinnerSelected,
		RoundID:         round.ID,
		Winner:          winner.Address,
		WinnerPayout:    round.WinnerPayout,
		CreatorPayout:   round.CreatorPayout,
		Pot:             pot,
		EligibleHolders: eligible,
	})

	e.setState(model.StatusProcessingPayout)
	round.Status = model.StatusProcessingPayout

	result, err := e.pipeline.Execute(e.ctx, winner.Address, round.WinnerPayout, round.CreatorPayout)
	if err != nil {
		round.SettlementReference = result.SettlementReference
		e.bus.Publish(event.Event{
			Type:    event.PayoutFailed,
			RoundID: round.ID,
			Winner:  winner.Address,
			Message: err.Error(),
		})
		e.finishRound(round, model.StatusFailed, err)
		return
	}
	round.SettlementReference = result.SettlementReference

	e.mu.Lock()
	paid := round.WinnerPayout + round.CreatorPayout
	if paid > e.pool.CurrentAmount {
		paid = e.pool.CurrentAmount
	}
	e.pool.CurrentAmount -= paid
	newPot := e.pool.Grow()
	e.mu.Unlock()

	e.bus.Publish(event.Event{
		Type:       event.PayoutSettled,
		RoundID:    round.ID,
		Winner:     winner.Address,
		Settlement: result.SettlementReference,
		Pot:        newPot,
	})
	e.finishRound(round, model.StatusCompleted, nil)
}

// finishRound records the terminal round and returns the engine to waiting.
func (e *Engine) finishRound(round *model.Round, status model.RoundStatus, cause error) {
	round.Status = status
	round.EndTime = time.Now()
	if cause != nil {
		round.Error = cause.Error()
		log.Printf("[ERROR] round %s failed: %v", round.ID, cause)
	} else {
		log.Printf("[INFO] round %s completed", round.ID)
	}

	e.mu.Lock()
	e.current = round
	e.history = append([]*model.Round{round}, e.history...)
	if len(e.history) > historyCap {
		e.history = e.history[:historyCap]
	}
	e.mu.Unlock()

	if status == model.StatusCompleted {
		e.publishState(model.StatusCompleted)
	}
	if err := e.rec.RecordRound(round); err != nil {
		log.Printf("[ERROR] record round %s: %v", round.ID, err)
	}
	e.backToWaiting()
}

func (e *Engine) backToWaiting() {
	e.mu.Lock()
	e.state = model.StatusWaiting
	e.nextSpinAt = NextSpinTime(time.Now(), e.cfg.SpinInterval())
	next := e.nextSpinAt
	e.mu.Unlock()

	log.Printf("[INFO] next spin at %s", next.Format(time.RFC3339))
	e.publishState(model.StatusWaiting)
}

func (e *Engine) setState(s model.RoundStatus) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.publishState(s)
}

func (e *Engine) publishState(s model.RoundStatus) {
	e.mu.Lock()
	pot := e.pool.CurrentAmount
	roundID := ""
	if e.current != nil {
		roundID = e.current.ID
	}
	e.mu.Unlock()
	e.bus.Publish(event.Event{
		Type:    event.StateChanged,
		State:   string(s),
		RoundID: roundID,
		Pot:     pot,
	})
}

// UpdatePot reads the on-chain pot account and raises the pool to match
// when external funding exceeds it. The pot never decreases here.
func (e *Engine) UpdatePot() {
	e.mu.Lock()
	paused := e.state == model.StatusPaused
	e.mu.Unlock()
	if paused {
		return
	}

	balance, err := e.gw.AccountBalance(e.ctx, e.cfg.Ledger.PotAddress)
	if err != nil {
		log.Printf("[WARN] pot balance check: %v", err)
		return
	}

	e.mu.Lock()
	raised := e.pool.RaiseTo(balance)
	pot := e.pool.CurrentAmount
	e.mu.Unlock()

	if raised {
		log.Printf("[INFO] pot raised to %d from on-chain funding", pot)
		e.bus.Publish(event.Event{Type: event.PotUpdated, Pot: pot})
	}
}

// State returns the current state machine position.
func (e *Engine) State() model.RoundStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Pool returns a copy of the pool state.
func (e *Engine) Pool() model.PoolState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool
}

// NextSpinAt returns the scheduled next spin time.
func (e *Engine) NextSpinAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextSpinAt
}

// History returns recent rounds, most recent first.
func (e *Engine) History() []*model.Round {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*model.Round, len(e.history))
	copy(out, e.history)
	return out
}

// RetryPayout re-runs a failed payout by id via the pipeline.
func (e *Engine) RetryPayout(id string) (*model.Payout, error) {
	return e.pipeline.Retry(e.ctx, id)
}
