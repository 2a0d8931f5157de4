package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/engine"
	"github.com/roach88/sweep/internal/ir"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, engine.DefaultBudgets(), cfg.EngineBudgets())
	assert.Equal(t, "normal", cfg.Defaults.Priority)
	assert.Empty(t, cfg.Journal.Path)
}

func TestLoadBytes_YAML(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
log:
  level: debug
budgets:
  low: 2ms
  normal: 4ms
defaults:
  priority: high
  live: true
journal:
  path: /tmp/sweep.db
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2*time.Millisecond, cfg.Budgets.Low)
	assert.Equal(t, 4*time.Millisecond, cfg.Budgets.Normal)
	assert.Equal(t, 25*time.Millisecond, cfg.Budgets.High, "unset tiers keep their default")
	assert.Equal(t, "high", cfg.Defaults.Priority)
	assert.True(t, cfg.Defaults.Live)
	assert.Equal(t, "/tmp/sweep.db", cfg.Journal.Path)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadBytes_EnvOverridesFile(t *testing.T) {
	t.Setenv("SWEEP_LOG_LEVEL", "error")
	t.Setenv("SWEEP_JOURNAL_PATH", "env.db")

	cfg, err := LoadBytes([]byte("log:\n  level: debug\njournal:\n  path: file.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "env.db", cfg.Journal.Path)
}

func TestLoadBytes_ReportsEveryProblem(t *testing.T) {
	_, err := LoadBytes([]byte(`
log:
  level: loud
defaults:
  priority: urgent
  own: sometimes
`))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "log.level")
	assert.Contains(t, msg, "defaults.priority")
	assert.Contains(t, msg, "defaults.own")
}

func TestValidate_BudgetOrder(t *testing.T) {
	cfg := Default()
	cfg.Budgets.Critical = time.Millisecond

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budgets")
}

func TestValidate_NegativeBudget(t *testing.T) {
	cfg := Default()
	cfg.Budgets.Low = -time.Millisecond

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budgets.low")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults:\n  cooperative: true\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Defaults.Cooperative)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Budgets, cfg.Budgets)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "log.level", envKey("SWEEP_LOG_LEVEL"))
	assert.Equal(t, "budgets.critical", envKey("SWEEP_BUDGETS_CRITICAL"))
	assert.Equal(t, "journal.path", envKey("SWEEP_JOURNAL_PATH"))
	assert.Equal(t, "verbose", envKey("SWEEP_VERBOSE"))
}

func TestEngineOptions_ApplyDefaults(t *testing.T) {
	cfg := Default()
	cfg.Defaults.Priority = "critical"
	cfg.Defaults.Cooperative = true
	require.NoError(t, cfg.Validate())

	resolved := engine.Resolve(cfg.DefaultOptions())
	assert.True(t, resolved.Shape.Cooperative())
	assert.Equal(t, ir.PriorityCritical, resolved.Shape.Priority)

	e := engine.New(cfg.EngineOptions()...)
	defer e.Close()
	v, err := e.Run(t.Context(), []any{1, 2, 3}, func(el engine.Element, c *engine.Context) (any, error) {
		assert.True(t, c.Cooperative())
		return el.Value, nil
	}, engine.Aggregate(engine.Counter()))
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}
