// Package config handles configuration loading and management for the
// control plane. It supports XDG config paths, project-level overrides,
// and environment variables, following the teacher's precedence chain.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the global control-plane configuration.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
}

// AnthropicConfig holds Anthropic API settings used by the AI-assisted
// merge fallback and by agent-kind invocations that have no external
// executable configured.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Bedrock routes requests through AWS Bedrock instead of the direct
	// Anthropic API when true.
	Bedrock bool `mapstructure:"bedrock"`
}

// DefaultsConfig holds defaults applied to newly registered projects.
type DefaultsConfig struct {
	PreferredModel string `mapstructure:"preferred_model"`
	MaxWorkers     int    `mapstructure:"max_workers"`
}

// TimeoutsConfig holds timeout settings for supervised subprocesses and
// daemon round trips.
type TimeoutsConfig struct {
	AgentKind    time.Duration `mapstructure:"agent_kind"`
	DaemonDial   time.Duration `mapstructure:"daemon_dial"`
	GracefulKill time.Duration `mapstructure:"graceful_kill"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (ANTHROPIC_API_KEY)
//  2. Project config (.forgeman.yaml in the current directory or a parent)
//  3. User config (~/.config/forgeman/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.bedrock", "ANTHROPIC_BEDROCK")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path, for tests.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.bedrock", cfg.Anthropic.Bedrock)
	v.Set("defaults.preferred_model", cfg.Defaults.PreferredModel)
	v.Set("defaults.max_workers", cfg.Defaults.MaxWorkers)
	v.Set("timeouts.agent_kind", cfg.Timeouts.AgentKind.String())
	v.Set("timeouts.daemon_dial", cfg.Timeouts.DaemonDial.String())
	v.Set("timeouts.graceful_kill", cfg.Timeouts.GracefulKill.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file, if any.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.bedrock", false)

	v.SetDefault("defaults.preferred_model", "sonnet")
	v.SetDefault("defaults.max_workers", 1)

	v.SetDefault("timeouts.agent_kind", "15m")
	v.SetDefault("timeouts.daemon_dial", "2s")
	v.SetDefault("timeouts.graceful_kill", "5s")
}

// getUserConfigDir returns the XDG config directory for the control plane.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "forgeman")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "forgeman")
	}
	return filepath.Join(home, ".config", "forgeman")
}

// findProjectConfig searches for .forgeman.yaml in the current directory
// and its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".forgeman.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{},
		Defaults: DefaultsConfig{
			PreferredModel: "sonnet",
			MaxWorkers:     1,
		},
		Timeouts: TimeoutsConfig{
			AgentKind:    15 * time.Minute,
			DaemonDial:   2 * time.Second,
			GracefulKill: 5 * time.Second,
		},
	}
}
