package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Ledger.RPCURL = "http://localhost:8899"
	cfg.Ledger.TokenMint = "MINT"
	cfg.Ledger.PotAddress = "pot"
	cfg.Lottery.SpinIntervalMinutes = 60
	cfg.Lottery.MinHoldPercentage = 0.1
	cfg.Lottery.WinnerPercentage = 90
	cfg.Lottery.CreatorPercentage = 10
	cfg.Pot.GrowthRate = 0.05
	cfg.Payout.MaxRetryAttempts = 3
	return cfg
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidate_PercentagesMustSumTo100(t *testing.T) {
	cfg := validConfig()
	cfg.Lottery.WinnerPercentage = 80
	cfg.Lottery.CreatorPercentage = 10
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for percentages not summing to 100")
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	mutations := []func(*Config){
		func(c *Config) { c.Ledger.RPCURL = "" },
		func(c *Config) { c.Ledger.TokenMint = "" },
		func(c *Config) { c.Ledger.PotAddress = "" },
		func(c *Config) { c.Lottery.SpinIntervalMinutes = 0 },
		func(c *Config) { c.Lottery.MinHoldPercentage = 101 },
		func(c *Config) { c.Pot.GrowthRate = 1.5 },
		func(c *Config) { c.Payout.MaxRetryAttempts = 0 },
	}
	for i, mutate := range mutations {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("mutation %d: expected validation error", i)
		}
	}
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
ledger:
  rpc_url: http://node:8899
  token_mint: So11111111111111111111111111111111111111112
  pot_address: PotAccount111
lottery:
  spin_interval_minutes: 15
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Lottery.SpinIntervalMinutes != 15 {
		t.Errorf("file value lost: %d", cfg.Lottery.SpinIntervalMinutes)
	}
	if cfg.Lottery.WinnerPercentage != 90 || cfg.Lottery.CreatorPercentage != 10 {
		t.Errorf("expected default 90/10 split, got %.0f/%.0f",
			cfg.Lottery.WinnerPercentage, cfg.Lottery.CreatorPercentage)
	}
	if cfg.Payout.MaxRetryAttempts != 3 {
		t.Errorf("expected default 3 retry attempts, got %d", cfg.Payout.MaxRetryAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RPC_URL", "http://override:8899")
	t.Setenv("SPIN_INTERVAL_MINUTES", "5")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ledger.RPCURL != "http://override:8899" {
		t.Errorf("env override lost: %s", cfg.Ledger.RPCURL)
	}
	if cfg.Lottery.SpinIntervalMinutes != 5 {
		t.Errorf("env override lost: %d", cfg.Lottery.SpinIntervalMinutes)
	}
}
