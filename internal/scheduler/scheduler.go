package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"PotLuck/internal/engine"
	"PotLuck/internal/notifier"
	"PotLuck/internal/tracker"
)

// Scheduler owns every timer in the process: the round-cadence tick, the
// pot-update tick and the adaptive holder rescan. Pause/resume is handled
// in the engine's state machine; the timers themselves keep firing.
type Scheduler struct {
	Cron    *cron.Cron
	Engine  *engine.Engine
	Tracker *tracker.Tracker
	Gateway interface{ ActiveEndpoint() string }
	Ctx     context.Context

	// mu guards the rescan entry bookkeeping: cron runs each invocation in
	// its own goroutine, and a slow rescan can overlap the next firing.
	mu          sync.Mutex
	rescanID    cron.EntryID
	rescanEvery time.Duration
}

// NewScheduler creates a Scheduler.
func NewScheduler(ctx context.Context, eng *engine.Engine, tr *tracker.Tracker, gw interface{ ActiveEndpoint() string }) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Engine:  eng,
		Tracker: tr,
		Gateway: gw,
		Ctx:     ctx,
	}
}

// RegisterAll registers the engine tick, pot update and holder rescan tasks.
func (s *Scheduler) RegisterAll() error {
	// Round cadence check once per wall-clock minute.
	if _, err := s.Cron.AddFunc("0 * * * * *", s.Engine.Tick); err != nil {
		return fmt.Errorf("register tick task: %w", err)
	}
	// Pot funding check twice per minute, independent of the round cadence.
	if _, err := s.Cron.AddFunc("*/30 * * * * *", s.Engine.UpdatePot); err != nil {
		return fmt.Errorf("register pot task: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rescanEvery = s.Tracker.Interval()
	id, err := s.Cron.AddFunc(everySpec(s.rescanEvery), s.rescanTask)
	if err != nil {
		return fmt.Errorf("register rescan task: %w", err)
	}
	s.rescanID = id
	return nil
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}

// rescanTask runs one holder rescan and reschedules itself when the
// adaptive interval tier changed.
func (s *Scheduler) rescanTask() {
	if err := s.Tracker.Rescan(s.Ctx); err != nil {
		log.Printf("[ERROR] holder rescan: %v", err)
	}

	// Overlapping invocations must not interleave the add/remove pair, or a
	// stale duplicate entry keeps firing.
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Tracker.Interval()
	if next == s.rescanEvery {
		return
	}
	id, err := s.Cron.AddFunc(everySpec(next), s.rescanTask)
	if err != nil {
		log.Printf("[ERROR] reschedule rescan: %v", err)
		return
	}
	s.Cron.Remove(s.rescanID)
	s.rescanID = id
	s.rescanEvery = next
	log.Printf("[INFO] rescan interval now %s", next)
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunRescanNow executes a holder rescan immediately (for startup).
func (s *Scheduler) RunRescanNow() {
	s.rescanTask()
}

// HandleCommand processes an operator command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	cmd, arg, _ := strings.Cut(command, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/spin":
		if err := s.Engine.ForceSpin(); err != nil {
			return fmt.Sprintf("Cannot spin: %v", err)
		}
		return "🎰 Spin started!"
	case "/pause":
		if err := s.Engine.Pause(); err != nil {
			return fmt.Sprintf("Cannot pause: %v", err)
		}
		return "⏸ Paused. Cadence and pot updates halted."
	case "/resume":
		if err := s.Engine.Resume(); err != nil {
			return fmt.Sprintf("Cannot resume: %v", err)
		}
		return fmt.Sprintf("▶️ Resumed. Next spin at %s.", s.Engine.NextSpinAt().Format("15:04:05"))
	case "/retry":
		if arg == "" {
			return "Usage: /retry <payout id>"
		}
		p, err := s.Engine.RetryPayout(arg)
		if err != nil {
			return fmt.Sprintf("Retry failed: %v", err)
		}
		return fmt.Sprintf("Payout %s now %s (ref %s)", p.ID, p.Status, p.SettlementReference)
	case "/status":
		eligible, total := 0, 0
		if snap := s.Tracker.Current(); snap != nil {
			eligible, total = snap.EligibleCount, len(snap.Holders)
		}
		return notifier.FormatStatus(s.Engine.State(), s.Engine.Pool(), s.Engine.NextSpinAt(),
			eligible, total, s.Gateway.ActiveEndpoint())
	case "/pot":
		return notifier.FormatPot(s.Engine.Pool())
	case "/holders":
		var minHold uint64
		if snap := s.Tracker.Current(); snap != nil {
			minHold = snap.MinimumHold
		}
		return notifier.FormatHolderBoard(s.Tracker.TopHolders(10), minHold)
	case "/history":
		return notifier.FormatRoundHistory(s.Engine.History(), 10)
	default:
		return "Commands:\n• /spin — start a round now\n• /pause • /resume\n• /retry <payout id>\n• /status • /pot • /holders • /history"
	}
}
