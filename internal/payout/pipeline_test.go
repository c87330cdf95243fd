package payout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"PotLuck/internal/gateway"
	"PotLuck/internal/model"
	"PotLuck/internal/recorder"
)

func newTestPipeline(mock *gateway.MockClient, signingKey string, maxAttempts int) *Pipeline {
	gw := gateway.New([]gateway.Client{mock}, 1, time.Millisecond)
	return New(gw, recorder.NewNoopRecorder(), "payer", signingKey, "creator", maxAttempts, time.Millisecond)
}

func TestExecute_InsufficientFunds(t *testing.T) {
	// winner 600 + creator 400 but only 500 available → synchronous failure,
	// no submission attempt.
	mock := &gateway.MockClient{Balances: map[string]uint64{"payer": 500}}
	p := newTestPipeline(mock, "key", 3)

	result, err := p.Execute(context.Background(), "winner", 600, 400)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if mock.SubmitCount() != 0 {
		t.Errorf("no transfer may be submitted on insufficient funds, got %d", mock.SubmitCount())
	}
	if result.Status != model.PayoutFailed {
		t.Errorf("expected failed status, got %s", result.Status)
	}
	if result.Attempts != 0 {
		t.Errorf("expected zero attempts, got %d", result.Attempts)
	}
}

func TestExecute_Success(t *testing.T) {
	mock := &gateway.MockClient{Balances: map[string]uint64{"payer": 10_000}}
	p := newTestPipeline(mock, "key", 3)

	result, err := p.Execute(context.Background(), "winner", 900, 100)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != model.PayoutCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if result.TotalAmount != 1_000 {
		t.Errorf("total must equal winner+creator, got %d", result.TotalAmount)
	}
	if result.Attempts > 3 {
		t.Errorf("attempts %d exceeds max 3", result.Attempts)
	}
	if result.SettlementReference == "" {
		t.Error("expected a settlement reference")
	}
	if mock.SubmitCount() != 1 {
		t.Errorf("expected exactly one submission, got %d", mock.SubmitCount())
	}
	if len(p.Pending()) != 0 {
		t.Error("terminal payout must leave the pending set")
	}
	if len(p.History()) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(p.History()))
	}
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	mock := &gateway.MockClient{
		Balances:    map[string]uint64{"payer": 10_000},
		FailSubmits: 2,
	}
	p := newTestPipeline(mock, "key", 3)

	result, err := p.Execute(context.Background(), "winner", 500, 500)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected success on attempt 3, got %d", result.Attempts)
	}
	if result.Status != model.PayoutCompleted {
		t.Errorf("expected completed, got %s", result.Status)
	}
}

func TestExecute_ExhaustsRetries(t *testing.T) {
	mock := &gateway.MockClient{
		Balances:    map[string]uint64{"payer": 10_000},
		FailSubmits: 100,
	}
	p := newTestPipeline(mock, "key", 3)

	result, err := p.Execute(context.Background(), "winner", 500, 500)
	if err == nil {
		t.Fatal("expected terminal failure")
	}
	if result.Status != model.PayoutFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.Attempts != 3 {
		t.Errorf("expected exactly maxAttempts=3 attempts, got %d", result.Attempts)
	}
	if result.Error == "" {
		t.Error("last error must be recorded on the payout")
	}
}

func TestExecute_SimulatedMode(t *testing.T) {
	// No signing key: everything is fabricated, nothing touches the ledger.
	mock := &gateway.MockClient{FailCalls: 100} // any network call would fail
	p := newTestPipeline(mock, "", 3)

	if !p.Simulated() {
		t.Fatal("pipeline without signing key must report simulated")
	}
	result, err := p.Execute(context.Background(), "winner", 900, 100)
	if err != nil {
		t.Fatalf("simulated execute: %v", err)
	}
	if result.Status != model.PayoutSimulated {
		t.Fatalf("expected simulated, got %s", result.Status)
	}
	if !strings.HasPrefix(result.SettlementReference, "sim-") {
		t.Errorf("expected sim- reference, got %q", result.SettlementReference)
	}
	if mock.SubmitCount() != 0 {
		t.Error("simulated mode must not submit anything")
	}
}

func TestRetry_RequeuesFailedPayout(t *testing.T) {
	mock := &gateway.MockClient{
		Balances:    map[string]uint64{"payer": 10_000},
		FailSubmits: 100,
	}
	p := newTestPipeline(mock, "key", 2)

	failed, err := p.Execute(context.Background(), "winner", 700, 300)
	if err == nil {
		t.Fatal("expected initial failure")
	}

	// Operator fixed the cause; retry runs the full path with a fresh counter.
	mock.FailSubmits = 0
	retried, err := p.Retry(context.Background(), failed.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != model.PayoutCompleted {
		t.Fatalf("expected completed after retry, got %s", retried.Status)
	}
	if retried.Attempts != 1 {
		t.Errorf("retry must restart the attempt counter, got %d", retried.Attempts)
	}
	if len(p.History()) != 1 {
		t.Errorf("retried payout must appear in history exactly once, got %d", len(p.History()))
	}
}

func TestPending_SnapshotDuringExecution(t *testing.T) {
	mock := &gateway.MockClient{
		Balances:    map[string]uint64{"payer": 10_000},
		FailSubmits: 2,
	}
	p := newTestPipeline(mock, "key", 3)

	done := make(chan *model.Payout, 1)
	go func() {
		result, _ := p.Execute(context.Background(), "winner", 500, 500)
		done <- result
	}()

	// Operator surfaces read payouts while a round is still retrying; the
	// copies they get must carry a consistent attempt counter throughout.
	var result *model.Payout
	for result == nil {
		for _, pd := range p.Pending() {
			if pd.Attempts < 0 || pd.Attempts > 3 {
				t.Errorf("pending attempt counter out of range: %d", pd.Attempts)
			}
		}
		select {
		case result = <-done:
		default:
			time.Sleep(100 * time.Microsecond)
		}
	}

	if result.Status != model.PayoutCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	hist := p.History()
	if len(hist) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(hist))
	}
	// Accessors hand out copies; mutating one must not reach the pipeline.
	hist[0].Status = model.PayoutFailed
	if p.History()[0].Status != model.PayoutCompleted {
		t.Error("history must return copies, not the pipeline's own records")
	}
}

func TestRetry_UnknownID(t *testing.T) {
	mock := &gateway.MockClient{Balances: map[string]uint64{"payer": 10_000}}
	p := newTestPipeline(mock, "key", 2)
	if _, err := p.Retry(context.Background(), "nope"); !errors.Is(err, ErrPayoutNotFound) {
		t.Errorf("expected ErrPayoutNotFound, got %v", err)
	}
}

func TestHistory_Bounded(t *testing.T) {
	mock := &gateway.MockClient{}
	p := newTestPipeline(mock, "", 1) // simulated, fast

	for i := 0; i < historyCap+20; i++ {
		if _, err := p.Execute(context.Background(), "winner", 1, 0); err != nil {
			t.Fatalf("execute %d: %v", i, err)
		}
	}
	if len(p.History()) != historyCap {
		t.Errorf("history must be capped at %d, got %d", historyCap, len(p.History()))
	}
}

func TestBuildTransfers_SkipsZeroLegs(t *testing.T) {
	payout := &model.Payout{WinnerAddress: "w", WinnerAmount: 100, CreatorAmount: 0}
	transfers := buildTransfers(payout, "creator")
	if len(transfers) != 1 {
		t.Fatalf("zero creator leg must be omitted, got %d transfers", len(transfers))
	}
	if transfers[0].To != "w" || !transfers[0].CreateAccount {
		t.Errorf("winner leg must target the winner with account creation, got %+v", transfers[0])
	}
}
