package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"PotLuck/internal/config"
	"PotLuck/internal/engine"
	"PotLuck/internal/event"
	"PotLuck/internal/gateway"
	"PotLuck/internal/notifier"
	"PotLuck/internal/payout"
	"PotLuck/internal/recorder"
	"PotLuck/internal/scheduler"
	"PotLuck/internal/tracker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] PotLuck starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init ledger gateway
	gw := gateway.FromEndpoints(cfg.Ledger.RPCURL, cfg.Ledger.BackupRPCURLs,
		cfg.Ledger.MaxRPCRetries, cfg.RetryBaseDelay())
	log.Printf("[INFO] ledger endpoint: %s (%d backups)", cfg.Ledger.RPCURL, len(cfg.Ledger.BackupRPCURLs))

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event bus for dashboard/notifier listeners
	bus := event.NewBus()

	// Init holder tracker
	tr := tracker.New(gw, rec, bus, cfg.Ledger.TokenMint,
		cfg.Lottery.MinHoldPercentage, cfg.Ledger.ExcludedAccounts)

	// Init payout pipeline
	pl := payout.New(gw, rec,
		cfg.Wallet.PayerAddress, cfg.Wallet.SigningKey, cfg.Wallet.CreatorAddress,
		cfg.Payout.MaxRetryAttempts, cfg.RetryBaseDelay())

	// Init game engine
	eng := engine.New(ctx, cfg, gw, tr, pl, rec, bus)

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, eng, tr, gw)
	if err := sched.RegisterAll(); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}

	// Scan holders once before the first tick
	sched.RunRescanNow()

	sched.Start()
	defer sched.Stop()

	// Telegram announcements and operator commands
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if tn.Enabled() {
		go tn.Listen(ctx, bus.Subscribe(32))
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	} else {
		log.Println("[WARN] Telegram not configured, running headless")
	}

	log.Println("[INFO] PotLuck is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] PotLuck stopped")
}
