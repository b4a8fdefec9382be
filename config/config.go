// Package config holds the file-level simulation configuration and its
// conversions into the packages that consume it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/backsim/backtest"
	"github.com/rustyeddy/backsim/portfolio"
	"github.com/rustyeddy/backsim/risk"
	"github.com/rustyeddy/backsim/router"
	"github.com/rustyeddy/backsim/sim"
	"github.com/rustyeddy/backsim/synth"
)

// Config represents the complete simulation configuration.
type Config struct {
	Account    AccountConfig    `json:"account" yaml:"account"`
	Commission CommissionConfig `json:"commission" yaml:"commission"`
	Slippage   SlippageConfig   `json:"slippage" yaml:"slippage"`
	Latency    LatencyConfig    `json:"latency" yaml:"latency"`
	Execution  ExecutionConfig  `json:"execution" yaml:"execution"`
	Risk       RiskConfig       `json:"risk" yaml:"risk"`
	Synth      SynthConfig      `json:"synth" yaml:"synth"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`

	// Seed drives every random decision of a run.
	Seed int64 `json:"seed" yaml:"seed"`
}

// AccountConfig contains account initialization parameters.
type AccountConfig struct {
	ID       string  `json:"id" yaml:"id"`
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// CommissionConfig mirrors the portfolio commission schedule.
type CommissionConfig struct {
	PerContract float64 `json:"per_contract" yaml:"per_contract"`
	PerTrade    float64 `json:"per_trade" yaml:"per_trade"`
	Percentage  float64 `json:"percentage" yaml:"percentage"`
	Minimum     float64 `json:"minimum" yaml:"minimum"`
	Maximum     float64 `json:"maximum" yaml:"maximum"`
}

// SlippageConfig selects and sizes the slippage model.
type SlippageConfig struct {
	Enabled         bool    `json:"enabled" yaml:"enabled"`
	Kind            string  `json:"kind" yaml:"kind"` // fixed, percentage, volume-based
	Value           float64 `json:"value" yaml:"value"`
	JitterFrac      float64 `json:"jitter_frac" yaml:"jitter_frac"`
	AggressiveValue float64 `json:"aggressive_value" yaml:"aggressive_value"`
}

// LatencyConfig simulates order-to-fill delay on recorded timestamps.
type LatencyConfig struct {
	Mean   string `json:"mean,omitempty" yaml:"mean,omitempty"`     // e.g. "250ms"
	Jitter string `json:"jitter,omitempty" yaml:"jitter,omitempty"` // e.g. "50ms"
}

// ExecutionConfig contains the matching and routing knobs.
type ExecutionConfig struct {
	DefaultQuantity        float64 `json:"default_quantity" yaml:"default_quantity"`
	UseMarketOrders        bool    `json:"use_market_orders" yaml:"use_market_orders"`
	AllowPartialFills      bool    `json:"allow_partial_fills" yaml:"allow_partial_fills"`
	MaxFillFractionPerTick float64 `json:"max_fill_fraction_per_tick" yaml:"max_fill_fraction_per_tick"`
	VolumeImpactThreshold  float64 `json:"volume_impact_threshold" yaml:"volume_impact_threshold"`
	EnableBracketOrders    bool    `json:"enable_bracket_orders" yaml:"enable_bracket_orders"`
	TimeInForce            string  `json:"time_in_force,omitempty" yaml:"time_in_force,omitempty"` // e.g. "48h", empty = GTC
	Priority               string  `json:"priority" yaml:"priority"`                               // submission, aggressiveness, size
	ForceCloseEnd          bool    `json:"force_close_end" yaml:"force_close_end"`
}

// RiskConfig mirrors the pre-submission risk limits.
type RiskConfig struct {
	MaxPositionSize   float64 `json:"max_position_size" yaml:"max_position_size"`
	MaxOrderSize      float64 `json:"max_order_size" yaml:"max_order_size"`
	MaxOpenOrders     int     `json:"max_open_orders" yaml:"max_open_orders"`
	AllowShortSelling bool    `json:"allow_short_selling" yaml:"allow_short_selling"`
}

// SynthConfig sizes the tick synthesizer.
type SynthConfig struct {
	MinTicks             int     `json:"min_ticks" yaml:"min_ticks"`
	MaxTicks             int     `json:"max_ticks" yaml:"max_ticks"`
	VolumePerTick        float64 `json:"volume_per_tick" yaml:"volume_per_tick"`
	ConsolidationBodyMax float64 `json:"consolidation_body_max" yaml:"consolidation_body_max"`
	BarDuration          string  `json:"bar_duration" yaml:"bar_duration"` // e.g. "1h"
}

// JournalConfig contains journaling parameters.
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	base := synth.DefaultConfig()
	return &Config{
		Account: AccountConfig{
			ID:       "SIM-001",
			Currency: "USD",
			Balance:  10_000,
		},
		Slippage: SlippageConfig{
			Kind: string(sim.SlippagePercentage),
		},
		Execution: ExecutionConfig{
			DefaultQuantity: 1,
			UseMarketOrders: true,
			Priority:        "submission",
			ForceCloseEnd:   true,
		},
		Synth: SynthConfig{
			MinTicks:             base.MinTicks,
			MaxTicks:             base.MaxTicks,
			VolumePerTick:        base.VolumePerTick,
			ConsolidationBodyMax: base.ConsolidationBodyMax,
			BarDuration:          base.BarDuration.String(),
		},
		Journal: JournalConfig{Type: "none"},
		Seed:    1,
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON.
	if err = yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration as YAML or JSON based on the extension.
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

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration before a run is built from it.
func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	switch sim.SlippageKind(c.Slippage.Kind) {
	case sim.SlippageFixed, sim.SlippagePercentage, sim.SlippageVolumeBased:
	default:
		return fmt.Errorf("slippage.kind must be fixed, percentage or volume-based")
	}
	if c.Execution.DefaultQuantity <= 0 {
		return fmt.Errorf("execution.default_quantity must be positive")
	}
	switch c.Execution.Priority {
	case "submission", "aggressiveness", "size":
	default:
		return fmt.Errorf("execution.priority must be submission, aggressiveness or size")
	}
	if c.Synth.MinTicks < 4 {
		return fmt.Errorf("synth.min_ticks must be at least 4")
	}
	if c.Synth.MaxTicks < c.Synth.MinTicks {
		return fmt.Errorf("synth.max_ticks must be >= synth.min_ticks")
	}
	if c.Synth.VolumePerTick <= 0 {
		return fmt.Errorf("synth.volume_per_tick must be positive")
	}
	for _, d := range []string{c.Latency.Mean, c.Latency.Jitter, c.Execution.TimeInForce, c.Synth.BarDuration} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("bad duration %q: %w", d, err)
		}
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal.dir required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be none, csv or sqlite")
	}
	return nil
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// SimSettings converts the matching knobs. Call Validate first.
func (c *Config) SimSettings() sim.Settings {
	priority := sim.PrioritySubmission
	switch c.Execution.Priority {
	case "aggressiveness":
		priority = sim.PriorityAggressiveness
	case "size":
		priority = sim.PrioritySize
	}

	return sim.Settings{
		Slippage: sim.SlippageSettings{
			Enabled:         c.Slippage.Enabled,
			Kind:            sim.SlippageKind(c.Slippage.Kind),
			Value:           c.Slippage.Value,
			JitterFrac:      c.Slippage.JitterFrac,
			AggressiveValue: c.Slippage.AggressiveValue,
		},
		Latency: sim.LatencySettings{
			Mean:   duration(c.Latency.Mean),
			Jitter: duration(c.Latency.Jitter),
		},
		AllowPartialFills:      c.Execution.AllowPartialFills,
		MaxFillFractionPerTick: c.Execution.MaxFillFractionPerTick,
		VolumeImpactThreshold:  c.Execution.VolumeImpactThreshold,
		TimeInForce:            duration(c.Execution.TimeInForce),
		Priority:               priority,
	}
}

// SynthSettings converts the synthesizer knobs. Call Validate first.
func (c *Config) SynthSettings() synth.Config {
	out := synth.Config{
		MinTicks:             c.Synth.MinTicks,
		MaxTicks:             c.Synth.MaxTicks,
		VolumePerTick:        c.Synth.VolumePerTick,
		ConsolidationBodyMax: c.Synth.ConsolidationBodyMax,
		BarDuration:          duration(c.Synth.BarDuration),
	}
	if out.BarDuration == 0 {
		out.BarDuration = time.Hour
	}
	return out
}

// CommissionSchedule converts the commission knobs.
func (c *Config) CommissionSchedule() portfolio.CommissionSchedule {
	return portfolio.CommissionSchedule{
		PerContract: c.Commission.PerContract,
		PerTrade:    c.Commission.PerTrade,
		Percentage:  c.Commission.Percentage,
		Minimum:     c.Commission.Minimum,
		Maximum:     c.Commission.Maximum,
	}
}

// RiskLimits converts the risk knobs.
func (c *Config) RiskLimits() risk.Limits {
	return risk.Limits{
		MaxPositionSize:   c.Risk.MaxPositionSize,
		MaxOrderSize:      c.Risk.MaxOrderSize,
		MaxOpenOrders:     c.Risk.MaxOpenOrders,
		AllowShortSelling: c.Risk.AllowShortSelling,
	}
}

// BacktestConfig assembles the full runner config.
func (c *Config) BacktestConfig() backtest.Config {
	return backtest.Config{
		Seed:           c.Seed,
		InitialBalance: c.Account.Balance,
		Synth:          c.SynthSettings(),
		Sim:            c.SimSettings(),
		Commission:     c.CommissionSchedule(),
		Router: router.Config{
			Limits:          c.RiskLimits(),
			DefaultQuantity: c.Execution.DefaultQuantity,
			EnableBrackets:  c.Execution.EnableBracketOrders,
			UseMarketOrders: c.Execution.UseMarketOrders,
		},
		ForceCloseEnd: c.Execution.ForceCloseEnd,
	}
}
