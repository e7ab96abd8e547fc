// Package config loads hamrd's JSON configuration file via viper, applying
// defaults for the keys Config declares and warning (not failing) on
// unrecognized top-level keys. Keys are snake_case (e.g.
// search.max_displayed_results); camelCase spellings are not recognized, and
// keys Config does not declare are not read.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// SearchConfig holds the matcher/ranker tuning keys.
type SearchConfig struct {
	Threshold           float64           `mapstructure:"threshold"`
	Limit               int               `mapstructure:"limit"`
	NameWeight          float64           `mapstructure:"name_weight"`
	KeywordWeight       float64           `mapstructure:"keyword_weight"`
	DiversityDecay      float64           `mapstructure:"diversity_decay"`
	MaxPerSource        int               `mapstructure:"max_per_source"`
	MaxDisplayedResults int               `mapstructure:"max_displayed_results"`
	PrefixPlugin        map[string]string `mapstructure:"prefix"`
	ActionBarHints      []string          `mapstructure:"action_bar_hints"`
	PluginBonus         map[string]float64 `mapstructure:"plugin_ranking_bonus"`
}

// SuggestionConfig holds smart-suggestion tuning keys.
type SuggestionConfig struct {
	HalfLifeDays float64 `mapstructure:"half_life_days"`
	MaxAgeDays   float64 `mapstructure:"max_age_days"`
}

// SupervisorConfig holds plugin process supervision tuning keys.
type SupervisorConfig struct {
	BaseDelaySeconds int `mapstructure:"base_delay_seconds"`
	MaxDelaySeconds  int `mapstructure:"max_delay_seconds"`
	MaxRestarts      int `mapstructure:"max_restarts"`
}

// Config is the fully-decoded daemon configuration.
type Config struct {
	SocketPath  string           `mapstructure:"socket_path"`
	BuiltinDir  string           `mapstructure:"builtin_plugin_dir"`
	UserDir     string           `mapstructure:"user_plugin_dir"`
	Search      SearchConfig     `mapstructure:"search"`
	Suggestions SuggestionConfig `mapstructure:"suggestions"`
	Supervisor  SupervisorConfig `mapstructure:"supervisor"`
	AdminAddr   string           `mapstructure:"admin_addr"`
	LogFormat   string           `mapstructure:"log_format"`
	RequireChecksums bool        `mapstructure:"require_checksums"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("socket_path", defaultSocketPath())
	v.SetDefault("builtin_plugin_dir", "/usr/share/hamr/plugins")
	v.SetDefault("user_plugin_dir", defaultUserPluginDir())
	v.SetDefault("search.threshold", 0.0)
	v.SetDefault("search.limit", 100)
	v.SetDefault("search.name_weight", 1.0)
	v.SetDefault("search.keyword_weight", 0.3)
	v.SetDefault("search.diversity_decay", 0.7)
	v.SetDefault("search.max_per_source", 0)
	v.SetDefault("search.max_displayed_results", 50)
	v.SetDefault("suggestions.half_life_days", 14.0)
	v.SetDefault("suggestions.max_age_days", 90.0)
	v.SetDefault("supervisor.base_delay_seconds", 1)
	v.SetDefault("supervisor.max_delay_seconds", 60)
	v.SetDefault("supervisor.max_restarts", 5)
	v.SetDefault("admin_addr", "127.0.0.1:7337")
	v.SetDefault("log_format", "text")
	v.SetDefault("require_checksums", false)
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/hamr.sock"
	}
	return "/tmp/hamr.sock"
}

func defaultUserPluginDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.local/share/hamr/plugins"
}

// knownTopLevelKeys lists every key Config's mapstructure tags declare, used
// to warn about (not reject) unrecognized top-level config keys.
var knownTopLevelKeys = map[string]bool{
	"socket_path": true, "builtin_plugin_dir": true, "user_plugin_dir": true,
	"search": true, "suggestions": true, "supervisor": true,
	"admin_addr": true, "log_format": true, "require_checksums": true,
}

// Load reads path (JSON) into a Config, applying defaults for unset keys.
// A missing file behaves as all-defaults (Config/IO: log-and-skip, per
// spec.md §7); a file that exists but fails to parse is fatal, matching
// viper's own ReadInConfig error contract.
func Load(path string, logger *slog.Logger) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			if logger != nil {
				logger.Warn("config file not found, using defaults", "path", path)
			}
		} else {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	for _, key := range v.AllKeys() {
		top := strings.SplitN(key, ".", 2)[0]
		if !knownTopLevelKeys[top] {
			if logger != nil {
				logger.Warn("config: unknown key", "key", key)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	applyActionBarHintOverride(&cfg, logger)

	return &cfg, nil
}

// applyActionBarHintOverride implements spec.md §6's override rule:
// search.action_bar_hints, when present, supersedes search.prefix.* entirely.
func applyActionBarHintOverride(cfg *Config, logger *slog.Logger) {
	if len(cfg.Search.ActionBarHints) == 0 {
		return
	}
	if len(cfg.Search.PrefixPlugin) > 0 && logger != nil {
		logger.Debug("search.action_bar_hints overrides search.prefix.*")
	}
	cfg.Search.PrefixPlugin = nil
}
