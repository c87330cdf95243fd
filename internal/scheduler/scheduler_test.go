package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"PotLuck/internal/config"
	"PotLuck/internal/engine"
	"PotLuck/internal/event"
	"PotLuck/internal/gateway"
	"PotLuck/internal/payout"
	"PotLuck/internal/recorder"
	"PotLuck/internal/tracker"
)

func newTestScheduler(t *testing.T, mock *gateway.MockClient) *Scheduler {
	t.Helper()
	cfg := &config.Config{}
	cfg.Ledger.RPCURL = "http://localhost:8899"
	cfg.Ledger.TokenMint = "MINT"
	cfg.Ledger.PotAddress = "pot"
	cfg.Lottery.SpinIntervalMinutes = 10
	cfg.Lottery.MinHoldPercentage = 0.1
	cfg.Lottery.WinnerPercentage = 90
	cfg.Lottery.CreatorPercentage = 10
	cfg.Pot.BaseAmount = 1_000_000
	cfg.Payout.MaxRetryAttempts = 3

	ctx := context.Background()
	gw := gateway.New([]gateway.Client{mock}, 1, time.Millisecond)
	rec := recorder.NewNoopRecorder()
	bus := event.NewBus()
	tr := tracker.New(gw, rec, bus, "MINT", cfg.Lottery.MinHoldPercentage, nil)
	pl := payout.New(gw, rec, "payer", "", "creator", 3, time.Millisecond)
	eng := engine.New(ctx, cfg, gw, tr, pl, rec, bus)
	return NewScheduler(ctx, eng, tr, gw)
}

func TestRegisterAll(t *testing.T) {
	s := newTestScheduler(t, &gateway.MockClient{Supply: 1_000_000})
	if err := s.RegisterAll(); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(s.Cron.Entries()) != 3 {
		t.Errorf("expected 3 cron entries, got %d", len(s.Cron.Entries()))
	}
}

func TestRescanTask_ReschedulesOnTierChange(t *testing.T) {
	mock := &gateway.MockClient{Supply: 1_000_000}
	for i := 0; i < 120; i++ {
		mock.Holders = append(mock.Holders, gateway.HolderBalance{
			Address: strings.Repeat("a", 10) + string(rune('0'+i%10)) + string(rune('A'+i/10)),
			Balance: 10_000,
		})
	}
	s := newTestScheduler(t, mock)
	if err := s.RegisterAll(); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Before any scan the tracker starts in the fastest tier.
	if s.rescanEvery != 5*time.Second {
		t.Fatalf("expected initial 5s rescan, got %v", s.rescanEvery)
	}

	s.RunRescanNow()

	// 120 eligible holders land in the 15s tier.
	if s.rescanEvery != 15*time.Second {
		t.Errorf("expected rescan rescheduled to 15s, got %v", s.rescanEvery)
	}
}

func TestRescanTask_ConcurrentInvocations(t *testing.T) {
	smallSet := []gateway.HolderBalance{{Address: "solo", Balance: 10_000}}
	var bigSet []gateway.HolderBalance
	for i := 0; i < 120; i++ {
		bigSet = append(bigSet, gateway.HolderBalance{
			Address: fmt.Sprintf("holder-%03d", i),
			Balance: 10_000,
		})
	}

	mock := &gateway.MockClient{Supply: 1_000_000, Holders: smallSet}
	s := newTestScheduler(t, mock)
	if err := s.RegisterAll(); err != nil {
		t.Fatalf("register: %v", err)
	}

	// A slow rescan can overlap the next cron firing; flipping the tier on
	// every scan forces the reschedule path from racing goroutines.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if (g+i)%2 == 0 {
					mock.SetHolders(bigSet)
				} else {
					mock.SetHolders(smallSet)
				}
				s.rescanTask()
			}
		}(g)
	}
	wg.Wait()

	// tick + pot + exactly one rescan entry: interleaved reschedules must
	// never leave a stale duplicate behind.
	if got := len(s.Cron.Entries()); got != 3 {
		t.Fatalf("expected 3 cron entries after concurrent reschedules, got %d", got)
	}

	s.mu.Lock()
	scheduled := s.rescanEvery
	s.mu.Unlock()
	if scheduled != 5*time.Second && scheduled != 15*time.Second {
		t.Errorf("rescan interval must land on a valid tier, got %v", scheduled)
	}
}

func TestHandleCommand(t *testing.T) {
	s := newTestScheduler(t, &gateway.MockClient{Supply: 1_000_000})

	if reply := s.HandleCommand("/pause"); !strings.Contains(reply, "Paused") {
		t.Errorf("unexpected pause reply: %s", reply)
	}
	if reply := s.HandleCommand("/pause"); !strings.Contains(reply, "Cannot pause") {
		t.Errorf("double pause must be rejected: %s", reply)
	}
	if reply := s.HandleCommand("/resume"); !strings.Contains(reply, "Resumed") {
		t.Errorf("unexpected resume reply: %s", reply)
	}
	if reply := s.HandleCommand("/retry"); !strings.Contains(reply, "Usage") {
		t.Errorf("retry without id must print usage: %s", reply)
	}
	if reply := s.HandleCommand("/retry unknown-id"); !strings.Contains(reply, "Retry failed") {
		t.Errorf("unknown payout id must fail: %s", reply)
	}
	if reply := s.HandleCommand("/status"); !strings.Contains(reply, "State") {
		t.Errorf("unexpected status reply: %s", reply)
	}
	if reply := s.HandleCommand("/pot"); !strings.Contains(reply, "Prize pool") {
		t.Errorf("unexpected pot reply: %s", reply)
	}
	if reply := s.HandleCommand("what"); !strings.Contains(reply, "Commands") {
		t.Errorf("unknown command must print help: %s", reply)
	}
}
