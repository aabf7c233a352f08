// Package config loads and validates the run configuration for the
// simulator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/navsim/dates"
	"github.com/quantfold/navsim/instrument"
)

// Config represents one complete simulation run.
type Config struct {
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// BacktestConfig contains the run window, universe and strategy settings.
type BacktestConfig struct {
	Stems             []string `json:"stems" yaml:"stems"`
	Start             string   `json:"start" yaml:"start"`
	End               string   `json:"end" yaml:"end"`
	Cash              float64  `json:"cash" yaml:"cash"`
	Leverage          float64  `json:"leverage" yaml:"leverage"`
	NumberOfPositions int      `json:"number_of_positions" yaml:"number_of_positions"`
	Strategy          string   `json:"strategy" yaml:"strategy"`
	Live              bool     `json:"live,omitempty" yaml:"live,omitempty"`
	NoCheck           bool     `json:"no_check,omitempty" yaml:"no_check,omitempty"`
	MinLookaheadDays  int      `json:"min_lookahead_days,omitempty" yaml:"min_lookahead_days,omitempty"`
}

// DataConfig locates the reference and market data on disk.
type DataConfig struct {
	BarsDir           string `json:"bars_dir" yaml:"bars_dir"`
	ChainDir          string `json:"chain_dir,omitempty" yaml:"chain_dir,omitempty"`
	ChainZip          string `json:"chain_zip,omitempty" yaml:"chain_zip,omitempty"`
	InstrumentOverlay string `json:"instrument_overlay,omitempty" yaml:"instrument_overlay,omitempty"`
}

// JournalConfig selects the output sink.
type JournalConfig struct {
	Type           string `json:"type" yaml:"type"` // "none", "csv", "sqlite" or "parquet"
	ExecutionsFile string `json:"executions_file,omitempty" yaml:"executions_file,omitempty"`
	NAVFile        string `json:"nav_file,omitempty" yaml:"nav_file,omitempty"`
	DBPath         string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	Dir            string `json:"dir,omitempty" yaml:"dir,omitempty"`
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

// Window parses the configured start and end days.
func (c *Config) Window() (start, end time.Time, err error) {
	start, err = dates.Parse(c.Backtest.Start)
	if err != nil {
		return
	}
	end, err = dates.Parse(c.Backtest.End)
	return
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Backtest.Stems) == 0 {
		return fmt.Errorf("backtest.stems is required")
	}
	for _, stem := range c.Backtest.Stems {
		if _, ok := instrument.Get(stem); !ok {
			return fmt.Errorf("unknown stem: %s", stem)
		}
	}
	start, end, err := c.Window()
	if err != nil {
		return fmt.Errorf("backtest window: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("backtest.end must not precede backtest.start")
	}
	if c.Backtest.Cash <= 0 {
		return fmt.Errorf("backtest.cash must be positive")
	}
	if c.Backtest.Leverage <= 0 {
		return fmt.Errorf("backtest.leverage must be positive")
	}
	if c.Backtest.NumberOfPositions < 1 {
		return fmt.Errorf("backtest.number_of_positions must be at least 1")
	}
	if c.Backtest.Strategy == "" {
		return fmt.Errorf("backtest.strategy is required")
	}
	if c.Data.BarsDir == "" {
		return fmt.Errorf("data.bars_dir is required")
	}
	if c.Data.ChainDir == "" && c.Data.ChainZip == "" {
		return fmt.Errorf("one of data.chain_dir or data.chain_zip is required")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.ExecutionsFile == "" || c.Journal.NAVFile == "" {
			return fmt.Errorf("journal executions_file and nav_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "parquet":
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal dir required for Parquet type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv', 'sqlite' or 'parquet'")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Backtest: BacktestConfig{
			Stems:             []string{"ES"},
			Start:             "2020-01-02",
			End:               "2020-12-31",
			Cash:              1_000_000,
			Leverage:          0.1,
			NumberOfPositions: 1,
			Strategy:          "buy-and-hold",
		},
		Data: DataConfig{
			BarsDir:  "./data/bars",
			ChainDir: "./data/chains",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./navsim.sqlite",
		},
	}
}
