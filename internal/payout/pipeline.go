package payout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"PotLuck/internal/gateway"
	"PotLuck/internal/model"
	"PotLuck/internal/recorder"
)

// ErrInsufficientFunds is a synchronous, terminal failure: the disbursing
// account cannot cover the payout, so no submission is attempted.
var ErrInsufficientFunds = errors.New("insufficient funds in disbursing account")

// ErrPayoutNotFound is returned by Retry for an unknown or non-failed id.
var ErrPayoutNotFound = errors.New("payout not found")

const historyCap = 100

// Pipeline turns a (winner, amounts) tuple into a confirmed on-ledger
// settlement, or a definitive failure. One payout is in flight per round,
// but the pending map is keyed by id so concurrent payouts stay correct.
type Pipeline struct {
	mu sync.Mutex

	gw  *gateway.Gateway
	rec recorder.Recorder

	payerAddress   string
	signingKey     string // empty → simulated mode
	creatorAddress string

	maxAttempts int
	baseDelay   time.Duration

	pending map[string]*model.Payout
	history []*model.Payout // most-recent-first, cap historyCap
}

// New creates a Pipeline. An empty signingKey puts it in simulated mode:
// payouts are recorded with a deterministic pseudo-reference and no network
// call is made.
func New(gw *gateway.Gateway, rec recorder.Recorder, payerAddress, signingKey, creatorAddress string, maxAttempts int, baseDelay time.Duration) *Pipeline {
	if signingKey == "" {
		log.Println("[WARN] no signing key configured, payout pipeline running in simulated mode")
	}
	return &Pipeline{
		gw:             gw,
		rec:            rec,
		payerAddress:   payerAddress,
		signingKey:     signingKey,
		creatorAddress: creatorAddress,
		maxAttempts:    maxAttempts,
		baseDelay:      baseDelay,
		pending:        make(map[string]*model.Payout),
	}
}

// Simulated reports whether the pipeline fabricates settlements.
func (p *Pipeline) Simulated() bool { return p.signingKey == "" }

// Execute runs a full disbursement for the given winner and split. It
// returns the terminal payout record; a non-nil error always corresponds to
// a payout in failed status.
func (p *Pipeline) Execute(ctx context.Context, winnerAddress string, winnerAmount, creatorAmount uint64) (*model.Payout, error) {
	payout := &model.Payout{
		ID:            uuid.NewString(),
		WinnerAddress: winnerAddress,
		WinnerAmount:  winnerAmount,
		CreatorAmount: creatorAmount,
		TotalAmount:   winnerAmount + creatorAmount,
		Status:        model.PayoutPending,
		CreatedAt:     time.Now(),
	}

	p.mu.Lock()
	p.pending[payout.ID] = payout
	p.mu.Unlock()

	return p.run(ctx, payout)
}

// Retry re-queues a failed payout from history and re-attempts the full
// submission path with a fresh attempt counter.
func (p *Pipeline) Retry(ctx context.Context, id string) (*model.Payout, error) {
	p.mu.Lock()
	var found *model.Payout
	idx := -1
	for i, h := range p.history {
		if h.ID == id && h.Status == model.PayoutFailed {
			found = h
			idx = i
			break
		}
	}
	if found == nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPayoutNotFound, id)
	}
	p.history = append(p.history[:idx], p.history[idx+1:]...)
	found.Status = model.PayoutPending
	found.Attempts = 0
	found.Error = ""
	found.FailedAt = time.Time{}
	p.pending[found.ID] = found
	p.mu.Unlock()

	log.Printf("[INFO] retrying payout %s (%d to %s)", found.ID, found.TotalAmount, found.WinnerAddress)
	return p.run(ctx, found)
}

func (p *Pipeline) run(ctx context.Context, payout *model.Payout) (*model.Payout, error) {
	if p.Simulated() {
		p.settleSimulated(payout)
		return payout, nil
	}

	// Balance precheck: a short pot account is a synchronous failure, no
	// submission is attempted.
	balance, err := p.gw.AccountBalance(ctx, p.payerAddress)
	if err != nil {
		return p.fail(payout, fmt.Errorf("check payer balance: %w", err))
	}
	if balance < payout.TotalAmount {
		return p.fail(payout, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, balance, payout.TotalAmount))
	}

	transfers := buildTransfers(payout, p.creatorAddress)
	if len(transfers) == 0 {
		return p.fail(payout, errors.New("payout has no transfers to submit"))
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		// The payout is visible through Pending() while in flight, so even
		// the attempt counter is written under the mutex.
		p.mu.Lock()
		payout.Attempts = attempt
		p.mu.Unlock()

		// Stale blockhashes are rejected by the ledger, so every attempt
		// re-fetches the latest one.
		blockhash, err := p.gw.LatestBlockhash(ctx)
		if err != nil {
			lastErr = fmt.Errorf("fetch blockhash: %w", err)
		} else {
			signature, err := p.submitAndConfirm(ctx, transfers, blockhash, payout.ID)
			if err == nil {
				p.settle(payout, signature)
				return payout, nil
			}
			lastErr = err
		}

		log.Printf("[WARN] payout %s attempt %d/%d failed: %v", payout.ID, attempt, p.maxAttempts, lastErr)
		if attempt == p.maxAttempts {
			break
		}

		backoff := p.baseDelay * time.Duration(1<<uint(attempt-1))
		select {
		case <-ctx.Done():
			return p.fail(payout, ctx.Err())
		case <-time.After(backoff):
		}
	}
	return p.fail(payout, fmt.Errorf("all %d attempts exhausted: %w", p.maxAttempts, lastErr))
}

func (p *Pipeline) submitAndConfirm(ctx context.Context, transfers []gateway.Transfer, blockhash, payoutID string) (string, error) {
	signature, err := p.gw.SubmitTransfer(ctx, &gateway.TransferRequest{
		Payer:           p.payerAddress,
		SigningKey:      p.signingKey,
		RecentBlockhash: blockhash,
		Transfers:       transfers,
		Memo:            "potluck:" + payoutID,
	})
	if err != nil {
		return "", fmt.Errorf("submit transfer: %w", err)
	}
	// A submitted-but-unconfirmed transaction is retried as a brand new
	// submission with a fresh blockhash.
	if err := p.gw.ConfirmTransaction(ctx, signature); err != nil {
		return "", fmt.Errorf("confirm %s: %w", signature, err)
	}
	return signature, nil
}

// buildTransfers includes each leg only when its amount is positive. The
// winner leg flags account creation for recipients without one.
func buildTransfers(payout *model.Payout, creatorAddress string) []gateway.Transfer {
	var transfers []gateway.Transfer
	if payout.WinnerAmount > 0 {
		transfers = append(transfers, gateway.Transfer{
			To:            payout.WinnerAddress,
			Amount:        payout.WinnerAmount,
			CreateAccount: true,
		})
	}
	if payout.CreatorAmount > 0 && creatorAddress != "" {
		transfers = append(transfers, gateway.Transfer{
			To:     creatorAddress,
			Amount: payout.CreatorAmount,
		})
	}
	return transfers
}

func (p *Pipeline) settle(payout *model.Payout, signature string) {
	p.mu.Lock()
	payout.Status = model.PayoutCompleted
	payout.SettlementReference = signature
	payout.CompletedAt = time.Now()
	p.moveToHistory(payout)
	p.mu.Unlock()

	log.Printf("[INFO] payout %s settled: %s", payout.ID, signature)
	p.record(payout)
}

func (p *Pipeline) settleSimulated(payout *model.Payout) {
	sum := sha256.Sum256([]byte(payout.ID + payout.WinnerAddress))
	p.mu.Lock()
	payout.Status = model.PayoutSimulated
	payout.SettlementReference = "sim-" + hex.EncodeToString(sum[:16])
	payout.CompletedAt = time.Now()
	p.moveToHistory(payout)
	p.mu.Unlock()

	log.Printf("[INFO] payout %s simulated: %d to %s", payout.ID, payout.TotalAmount, payout.WinnerAddress)
	p.record(payout)
}

func (p *Pipeline) fail(payout *model.Payout, err error) (*model.Payout, error) {
	p.mu.Lock()
	payout.Status = model.PayoutFailed
	payout.Error = err.Error()
	payout.FailedAt = time.Now()
	p.moveToHistory(payout)
	p.mu.Unlock()

	log.Printf("[ERROR] payout %s failed after %d attempts: %v", payout.ID, payout.Attempts, err)
	p.record(payout)
	return payout, err
}

// moveToHistory transitions a payout from pending to the capped
// most-recent-first history. Callers hold p.mu.
func (p *Pipeline) moveToHistory(payout *model.Payout) {
	delete(p.pending, payout.ID)
	p.history = append([]*model.Payout{payout}, p.history...)
	if len(p.history) > historyCap {
		p.history = p.history[:historyCap]
	}
}

func (p *Pipeline) record(payout *model.Payout) {
	if err := p.rec.RecordPayout(payout); err != nil {
		log.Printf("[ERROR] record payout %s: %v", payout.ID, err)
	}
}

// Pending returns copies of the in-flight payouts; the pipeline keeps
// mutating its own records until they reach a terminal status.
func (p *Pipeline) Pending() []*model.Payout {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*model.Payout, 0, len(p.pending))
	for _, v := range p.pending {
		cp := *v
		out = append(out, &cp)
	}
	return out
}

// History returns copies of terminal payouts, most recent first.
func (p *Pipeline) History() []*model.Payout {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*model.Payout, 0, len(p.history))
	for _, v := range p.history {
		cp := *v
		out = append(out, &cp)
	}
	return out
}
