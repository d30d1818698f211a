package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/ats/pkg/logger"
)

// Config is the complete process configuration.
type Config struct {
	AccountNo   string        `json:"acc_no" yaml:"acc_no"`
	Backtest    bool          `json:"backtest" yaml:"backtest"`
	HistoryDB   string        `json:"history_db" yaml:"history_db"`
	LedgerDB    string        `json:"ledger_db" yaml:"ledger_db"`
	ResumeDB    string        `json:"resume_db,omitempty" yaml:"resume_db,omitempty"`
	Poll        string        `json:"poll,omitempty" yaml:"poll,omitempty"` // e.g. "100ms"
	Stagger     string        `json:"stagger,omitempty" yaml:"stagger,omitempty"`
	Log         logger.Config `json:"log" yaml:"log"`
	Slack       Slack         `json:"slack,omitempty" yaml:"slack,omitempty"`
	Instruments []Instrument  `json:"instruments" yaml:"instruments"`
}

// Slack holds notification delivery settings. The webhook URL usually comes
// from the environment rather than the file.
type Slack struct {
	WebhookURL string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	Channel    string `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// Rule is a fixed entry or exit threshold: trigger at the configured price
// offset from the latest trade price, fill Qty units.
type Rule struct {
	Price float64 `json:"price" yaml:"price"`
	Qty   int     `json:"qty" yaml:"qty"`
}

// Instrument configures one runner. State, when present, is the runner state
// snapshotted at the end of a prior session and resumes it.
type Instrument struct {
	Code  string `json:"stock_code" yaml:"stock_code"`
	Name  string `json:"stock_name" yaml:"stock_name"`
	AccNo string `json:"acc_no,omitempty" yaml:"acc_no,omitempty"`
	B1    Rule   `json:"b1" yaml:"b1"`
	S1    Rule   `json:"s1" yaml:"s1"`
	State *int   `json:"state,omitempty" yaml:"state,omitempty"`
}

// PollInterval returns the runner poll cadence, defaulting to 100ms.
func (c *Config) PollInterval() time.Duration {
	return durationOr(c.Poll, 100*time.Millisecond)
}

// StaggerInterval returns the delay between runner starts, defaulting to 500ms.
func (c *Config) StaggerInterval() time.Duration {
	return durationOr(c.Stagger, 500*time.Millisecond)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration back out, choosing the format by
// extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.AccountNo == "" {
		return fmt.Errorf("acc_no is required")
	}
	if c.Backtest {
		if c.HistoryDB == "" {
			return fmt.Errorf("history_db is required in backtest mode")
		}
		if c.LedgerDB == "" {
			return fmt.Errorf("ledger_db is required in backtest mode")
		}
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	seen := map[string]bool{}
	for i := range c.Instruments {
		if err := c.Instruments[i].Validate(); err != nil {
			return err
		}
		if seen[c.Instruments[i].Code] {
			return fmt.Errorf("duplicate instrument code %q", c.Instruments[i].Code)
		}
		seen[c.Instruments[i].Code] = true
	}
	return nil
}

func (in *Instrument) Validate() error {
	if in.Code == "" {
		return fmt.Errorf("instrument stock_code is required")
	}
	if in.B1.Price <= 0 || in.B1.Qty <= 0 {
		return fmt.Errorf("instrument %s: b1 price and qty must be positive", in.Code)
	}
	if in.S1.Price <= 0 || in.S1.Qty <= 0 {
		return fmt.Errorf("instrument %s: s1 price and qty must be positive", in.Code)
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		AccountNo: "0000000000",
		Backtest:  true,
		HistoryDB: "./resources/backtest/stock_data.db",
		LedgerDB:  "./resources/backtest/backtest_ats.db",
		ResumeDB:  "./resources/database/ats.db",
		Log: logger.Config{
			File:  "./resources/log/trading.log",
			Level: "info",
		},
		Instruments: []Instrument{
			{
				Code: "233740",
				Name: "KODEX Leverage",
				B1:   Rule{Price: 100, Qty: 10},
				S1:   Rule{Price: 200, Qty: 10},
			},
		},
	}
}
