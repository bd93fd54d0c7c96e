// Package config holds the protocol parameters shared by takers and makers.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/L3ftBlank/joinmarket-ng/pkg/bitcoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/coinjoin"
	"github.com/L3ftBlank/joinmarket-ng/pkg/nums"
	"github.com/L3ftBlank/joinmarket-ng/pkg/podle"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/slog"
)

// DefaultIndexRange is the number of NUMS indices a commitment may use.
const DefaultIndexRange = 10

var ErrInvalid = errors.New("config: invalid")

// PoDLE configures commitment generation and verification. Both sides of a
// round must agree on IndexRange.
type PoDLE struct {
	IndexRange int `json:"index_range"`
}

// Indices returns the NUMS indices 0..IndexRange-1.
func (p PoDLE) Indices() []int {
	return podle.IndexRange(p.IndexRange)
}

type Config struct {
	Network       string         `json:"network"`
	DustThreshold btcutil.Amount `json:"dust_threshold"`
	// FeeRate is in sat/vB.
	FeeRate      float64 `json:"fee_rate"`
	PoDLE        PoDLE   `json:"podle"`
	CommitmentDB string  `json:"commitment_db"`
	LogLevel     string  `json:"log_level"`
	// Workers bounds the parallelism of start-up work. Zero uses every CPU.
	Workers int `json:"workers"`
}

// Default returns the mainnet configuration.
func Default() *Config {
	return &Config{
		Network:       "mainnet",
		DustThreshold: coinjoin.DefaultDustThreshold,
		FeeRate:       1,
		PoDLE:         PoDLE{IndexRange: DefaultIndexRange},
		CommitmentDB:  "commitments.db",
		LogLevel:      "info",
	}
}

// Load reads a JSON configuration from path. Fields absent from the file
// keep their defaults, and the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	cfg := Default()
	if err = json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %s: %w", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes c to path as indented JSON, creating the directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config.Save: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config.Save: %w", err)
	}
	if err = os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("config.Save: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.DustThreshold < 0 {
		return fmt.Errorf("%w: dust_threshold must not be negative", ErrInvalid)
	}
	if c.FeeRate < 0 {
		return fmt.Errorf("%w: fee_rate must not be negative", ErrInvalid)
	}
	if c.PoDLE.IndexRange < 1 || c.PoDLE.IndexRange > nums.MaxIndex+1 {
		return fmt.Errorf("%w: podle.index_range must be in [1, %d]", ErrInvalid, nums.MaxIndex+1)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalid)
	}
	return nil
}

// Params returns the chain parameters of c.Network.
func (c *Config) Params() (*chaincfg.Params, error) {
	return bitcoin.NetworkParams(c.Network)
}

// Level parses c.LogLevel.
func (c *Config) Level() (slog.Level, error) {
	level, ok := slog.LevelFromString(c.LogLevel)
	if !ok {
		return 0, fmt.Errorf("%w: unknown log_level %q", ErrInvalid, c.LogLevel)
	}
	return level, nil
}

// Builder returns a CoinJoin builder for c.
func (c *Config) Builder(log slog.Logger) (*coinjoin.Builder, error) {
	params, err := c.Params()
	if err != nil {
		return nil, err
	}
	return coinjoin.NewBuilder(coinjoin.Config{
		Net:           params,
		DustThreshold: c.DustThreshold,
		Log:           log,
	}), nil
}
