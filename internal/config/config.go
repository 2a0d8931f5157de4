// Package config loads sweep configuration.
//
// Configuration is read from an optional YAML file and then overridden by
// SWEEP_* environment variables. Missing values fall back to defaults.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/ir"
)

// Config holds the complete sweep configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Budgets  BudgetConfig   `koanf:"budgets"`
	Defaults DefaultsConfig `koanf:"defaults"`
	Journal  JournalConfig  `koanf:"journal"`
}

// LogConfig controls the CLI's slog handler.
type LogConfig struct {
	Level string `koanf:"level"` // debug | info | warn | error
}

// BudgetConfig holds the time slice of each priority tier.
type BudgetConfig struct {
	Low      time.Duration `koanf:"low"`
	Normal   time.Duration `koanf:"normal"`
	High     time.Duration `koanf:"high"`
	Critical time.Duration `koanf:"critical"`
}

// DefaultsConfig holds traversal options applied to every traversal before
// the per-call options.
type DefaultsConfig struct {
	Priority    string `koanf:"priority"`
	Cooperative bool   `koanf:"cooperative"`
	Live        bool   `koanf:"live"`
	Own         string `koanf:"own"`
}

// JournalConfig locates the SQLite run journal. An empty path disables it.
type JournalConfig struct {
	Path string `koanf:"path"`
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	stock := engine.DefaultBudgets()
	if cfg.Budgets.Low == 0 {
		cfg.Budgets.Low = stock[ir.PriorityLow]
	}
	if cfg.Budgets.Normal == 0 {
		cfg.Budgets.Normal = stock[ir.PriorityNormal]
	}
	if cfg.Budgets.High == 0 {
		cfg.Budgets.High = stock[ir.PriorityHigh]
	}
	if cfg.Budgets.Critical == 0 {
		cfg.Budgets.Critical = stock[ir.PriorityCritical]
	}

	if cfg.Defaults.Priority == "" {
		cfg.Defaults.Priority = string(ir.PriorityNormal)
	}
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := c.SlogLevel(); err != nil {
		result = multierror.Append(result, err)
	}
	for name, d := range map[string]time.Duration{
		"low": c.Budgets.Low, "normal": c.Budgets.Normal,
		"high": c.Budgets.High, "critical": c.Budgets.Critical,
	} {
		if d < 0 {
			result = multierror.Append(result, fmt.Errorf("budgets.%s: must not be negative, got %s", name, d))
		}
	}
	if err := c.EngineBudgets().Validate(); err != nil {
		result = multierror.Append(result, fmt.Errorf("budgets: %w", err))
	}
	if _, err := ir.ParsePriority(c.Defaults.Priority); err != nil {
		result = multierror.Append(result, fmt.Errorf("defaults.priority: %w", err))
	}
	if _, err := ir.ParseOwnMode(c.Defaults.Own); err != nil {
		result = multierror.Append(result, fmt.Errorf("defaults.own: %w", err))
	}

	return result.ErrorOrNil()
}

// SlogLevel converts Log.Level into a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
}

// EngineBudgets converts the budget section into engine.Budgets.
func (c *Config) EngineBudgets() engine.Budgets {
	return engine.Budgets{
		ir.PriorityLow:      c.Budgets.Low,
		ir.PriorityNormal:   c.Budgets.Normal,
		ir.PriorityHigh:     c.Budgets.High,
		ir.PriorityCritical: c.Budgets.Critical,
	}
}

// DefaultOptions converts the defaults section into traversal options.
// The configuration must have been validated.
func (c *Config) DefaultOptions() []engine.Option {
	prio, _ := ir.ParsePriority(c.Defaults.Priority)
	own, _ := ir.ParseOwnMode(c.Defaults.Own)

	opts := []engine.Option{engine.Priority(prio), engine.Own(own)}
	if c.Defaults.Cooperative {
		opts = append(opts, engine.Cooperative(prio))
	}
	if c.Defaults.Live {
		opts = append(opts, engine.Live())
	}
	return opts
}

// EngineOptions converts the configuration into engine options.
func (c *Config) EngineOptions() []engine.EngineOption {
	return []engine.EngineOption{
		engine.WithBudgets(c.EngineBudgets()),
		engine.WithDefaults(c.DefaultOptions()...),
	}
}
