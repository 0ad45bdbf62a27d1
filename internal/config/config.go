// SPDX-License-Identifier: MPL-2.0

// Package config loads toolbox configuration from the platform config
// directory with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"mvdan.cc/sh/v3/shell"

	"toolbox-cli/internal/workspace"
)

const (
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
	// ConfigFileExt is the config file format.
	ConfigFileExt = "toml"
	// envPrefix namespaces environment overrides (TOOLBOX_COMPILER, ...).
	envPrefix = "TOOLBOX"
)

// Config is the loaded toolbox configuration.
type Config struct {
	// Root overrides the workspace root directory.
	Root string `mapstructure:"root"`
	// Compiler overrides C compiler detection (name or path).
	Compiler string `mapstructure:"compiler"`
	// ExtraCFlags are appended to the default compile flags. The string is
	// split with shell word rules, so quoted flags with spaces survive.
	ExtraCFlags string `mapstructure:"extra_cflags"`
	// ExtraLDFlags are appended to the default link flags.
	ExtraLDFlags string `mapstructure:"extra_ldflags"`
	// Jobs bounds compile parallelism; 0 means number of CPUs.
	Jobs int `mapstructure:"jobs"`

	UI UIConfig `mapstructure:"ui"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	// Verbose enables debug logging without the --verbose flag.
	Verbose bool `mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// ConfigDir returns the toolbox configuration directory using
// platform-specific conventions: %APPDATA% on Windows, ~/Library/Application
// Support on macOS, $XDG_CONFIG_HOME (default ~/.config) elsewhere.
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, workspace.AppName), nil
}

// Load reads the configuration. An explicit path (from --config) is used
// exclusively; otherwise the platform config directory is searched. A missing
// config file is not an error.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(ConfigFileExt)

	defaults := DefaultConfig()
	v.SetDefault("root", defaults.Root)
	v.SetDefault("compiler", defaults.Compiler)
	v.SetDefault("extra_cflags", defaults.ExtraCFlags)
	v.SetDefault("extra_ldflags", defaults.ExtraLDFlags)
	v.SetDefault("jobs", defaults.Jobs)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", explicitPath, err)
		}
	} else {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// CFlagFields splits ExtraCFlags with shell word rules.
func (c *Config) CFlagFields() ([]string, error) {
	return splitFlags(c.ExtraCFlags)
}

// LDFlagFields splits ExtraLDFlags with shell word rules.
func (c *Config) LDFlagFields() ([]string, error) {
	return splitFlags(c.ExtraLDFlags)
}

func splitFlags(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields, err := shell.Fields(s, nil)
	if err != nil {
		return nil, fmt.Errorf("split flags %q: %w", s, err)
	}
	return fields, nil
}
