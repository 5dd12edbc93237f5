package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("MAX_TOKEN_LIMIT", "")
	t.Setenv("REPORTGEN_DB", "")
	t.Setenv("REPORTGEN_AI_PROVIDER", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 128000, cfg.Generation.TokenBudget)
	assert.Equal(t, 0.9, cfg.Generation.BudgetRatio)
	assert.Equal(t, "documents", cfg.Storage.Collection)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
ai:
  provider: gemini
  model: gemini-2.0-flash
report:
  current_year: 3
  total_years: 5
generation:
  token_budget: 5000
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	t.Setenv("MAX_TOKEN_LIMIT", "9000")
	t.Setenv("REPORTGEN_API_KEY", "secret")
	t.Setenv("REPORTGEN_AI_PROVIDER", "")
	t.Setenv("REPORTGEN_DB", "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, 3, cfg.Report.CurrentYear)
	assert.Equal(t, 9000, cfg.Generation.TokenBudget)
	assert.Equal(t, "secret", cfg.AI.APIKey)
	assert.Equal(t, 0.3, cfg.AI.Temperature)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report:\n  current_year: 6\n  total_years: 5\n"), 0644))
	t.Setenv("REPORTGEN_AI_PROVIDER", "")

	_, err := LoadConfig(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("generation:\n  failure_policy: ignore\n"), 0644))
	_, err = LoadConfig(path)
	require.Error(t, err)
}
