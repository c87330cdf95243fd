package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Ledger struct {
		RPCURL           string   `yaml:"rpc_url"`
		BackupRPCURLs    []string `yaml:"backup_rpc_urls"`
		TokenMint        string   `yaml:"token_mint"`
		PotAddress       string   `yaml:"pot_address"`
		ExcludedAccounts []string `yaml:"excluded_accounts"`
		MaxRPCRetries    int      `yaml:"max_rpc_retries"`
	} `yaml:"ledger"`
	Wallet struct {
		PayerAddress   string `yaml:"payer_address"`
		SigningKey     string `yaml:"signing_key"`
		CreatorAddress string `yaml:"creator_address"`
	} `yaml:"wallet"`
	Lottery struct {
		SpinIntervalMinutes int     `yaml:"spin_interval_minutes"`
		MinHoldPercentage   float64 `yaml:"min_hold_percentage"`
		WinnerPercentage    float64 `yaml:"winner_percentage"`
		CreatorPercentage   float64 `yaml:"creator_percentage"`
		SpinDurationSeconds int     `yaml:"spin_duration_seconds"`
	} `yaml:"lottery"`
	Pot struct {
		GrowthRate        float64 `yaml:"growth_rate"`
		BaseAmount        uint64  `yaml:"base_amount"`
		MaxGrowthPerCycle uint64  `yaml:"max_growth_per_cycle"`
	} `yaml:"pot"`
	Payout struct {
		MaxRetryAttempts      int `yaml:"max_retry_attempts"`
		RetryBaseDelaySeconds int `yaml:"retry_base_delay_seconds"`
	} `yaml:"payout"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Ledger.RPCURL = v
	}
	if v := os.Getenv("BACKUP_RPC_URLS"); v != "" {
		cfg.Ledger.BackupRPCURLs = strings.Split(v, ",")
	}
	if v := os.Getenv("TOKEN_MINT"); v != "" {
		cfg.Ledger.TokenMint = v
	}
	if v := os.Getenv("POT_ADDRESS"); v != "" {
		cfg.Ledger.PotAddress = v
	}
	if v := os.Getenv("PAYER_ADDRESS"); v != "" {
		cfg.Wallet.PayerAddress = v
	}
	if v := os.Getenv("SIGNING_KEY"); v != "" {
		cfg.Wallet.SigningKey = v
	}
	if v := os.Getenv("CREATOR_ADDRESS"); v != "" {
		cfg.Wallet.CreatorAddress = v
	}
	if v := os.Getenv("SPIN_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Lottery.SpinIntervalMinutes = n
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}

	// Defaults
	if cfg.Ledger.MaxRPCRetries == 0 {
		cfg.Ledger.MaxRPCRetries = 3
	}
	if cfg.Lottery.SpinIntervalMinutes == 0 {
		cfg.Lottery.SpinIntervalMinutes = 60
	}
	if cfg.Lottery.MinHoldPercentage == 0 {
		cfg.Lottery.MinHoldPercentage = 0.1
	}
	if cfg.Lottery.WinnerPercentage == 0 && cfg.Lottery.CreatorPercentage == 0 {
		cfg.Lottery.WinnerPercentage = 90
		cfg.Lottery.CreatorPercentage = 10
	}
	if cfg.Lottery.SpinDurationSeconds == 0 {
		cfg.Lottery.SpinDurationSeconds = 5
	}
	if cfg.Pot.GrowthRate == 0 {
		cfg.Pot.GrowthRate = 0.05
	}
	if cfg.Payout.MaxRetryAttempts == 0 {
		cfg.Payout.MaxRetryAttempts = 3
	}
	if cfg.Payout.RetryBaseDelaySeconds == 0 {
		cfg.Payout.RetryBaseDelaySeconds = 2
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/potluck.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.Ledger.RPCURL == "" {
		return fmt.Errorf("ledger.rpc_url is required")
	}
	if c.Ledger.TokenMint == "" {
		return fmt.Errorf("ledger.token_mint is required")
	}
	if c.Ledger.PotAddress == "" {
		return fmt.Errorf("ledger.pot_address is required")
	}
	if c.Lottery.SpinIntervalMinutes <= 0 {
		return fmt.Errorf("lottery.spin_interval_minutes must be positive")
	}
	if c.Lottery.MinHoldPercentage <= 0 || c.Lottery.MinHoldPercentage > 100 {
		return fmt.Errorf("lottery.min_hold_percentage must be in (0, 100]")
	}
	if c.Lottery.WinnerPercentage+c.Lottery.CreatorPercentage != 100 {
		return fmt.Errorf("lottery.winner_percentage + lottery.creator_percentage must sum to 100, got %.1f",
			c.Lottery.WinnerPercentage+c.Lottery.CreatorPercentage)
	}
	if c.Pot.GrowthRate < 0 || c.Pot.GrowthRate > 1 {
		return fmt.Errorf("pot.growth_rate must be in [0, 1]")
	}
	if c.Payout.MaxRetryAttempts <= 0 {
		return fmt.Errorf("payout.max_retry_attempts must be positive")
	}
	return nil
}

// SpinInterval returns the round cadence as a duration.
func (c *Config) SpinInterval() time.Duration {
	return time.Duration(c.Lottery.SpinIntervalMinutes) * time.Minute
}

// RetryBaseDelay returns the payout retry base delay as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Payout.RetryBaseDelaySeconds) * time.Second
}
