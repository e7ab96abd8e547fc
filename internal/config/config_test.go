package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Search.Limit)
	assert.Equal(t, 50, cfg.Search.MaxDisplayedResults)
	assert.Equal(t, 14.0, cfg.Suggestions.HalfLifeDays)
	assert.Equal(t, 5, cfg.Supervisor.MaxRestarts)
	assert.Equal(t, "127.0.0.1:7337", cfg.AdminAddr)
}

func TestLoad_PluginRankingBonusOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hamr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"search": {
			"max_displayed_results": 10,
			"plugin_ranking_bonus": {"calc": 50, "files": 10}
		}
	}`), 0o644))

	cfg, err := Load(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.MaxDisplayedResults)
	assert.Equal(t, 50.0, cfg.Search.PluginBonus["calc"])
	assert.Equal(t, 10.0, cfg.Search.PluginBonus["files"])
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hamr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"search": {"limit": 50, "threshold": 0.2},
		"supervisor": {"max_restarts": 3},
		"log_format": "json"
	}`), 0o644))

	cfg, err := Load(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Search.Limit)
	assert.Equal(t, 0.2, cfg.Search.Threshold)
	assert.Equal(t, 3, cfg.Supervisor.MaxRestarts)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 60, cfg.Supervisor.MaxDelaySeconds) // untouched default survives
}

func TestLoad_MalformedJSONIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	_, err := Load(path, testLogger())
	assert.Error(t, err)
}

func TestLoad_ActionBarHintsOverridePrefixPlugin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hamr.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"search": {
			"prefix": {"calc": "="},
			"action_bar_hints": ["open", "copy"]
		}
	}`), 0o644))

	cfg, err := Load(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "copy"}, cfg.Search.ActionBarHints)
	assert.Empty(t, cfg.Search.PrefixPlugin)
}
