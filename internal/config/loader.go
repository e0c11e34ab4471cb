package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvTradingActive overrides copy.trading_active when set.
const EnvTradingActive = "COPY_TRADER_ACTIVE"

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment. A missing file is not an error. Existing variables win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadRaw reads a YAML config file without expanding environment variables,
// so that ${VAR} references survive a Save.
func LoadRaw(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config, applies default values and env overrides.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is LoadAndValidate, except that a missing file yields the
// defaults with env overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadAndValidate(path)
	if !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	cfg = Default()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Save writes the config as YAML. The file is replaced atomically.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Update applies mutate to the raw config at path and saves it. ${VAR}
// references are kept. A missing file starts from an empty config, so only
// the fields mutate sets are written explicitly.
func Update(path string, mutate func(*Config)) (*Config, error) {
	cfg, err := LoadRaw(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = &Config{}, nil
	}
	if err != nil {
		return nil, err
	}

	mutate(cfg)

	check := cfg.Clone()
	check.applyDefaults()
	if err := check.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := Save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvTradingActive))) {
	case "true", "1", "yes":
		if !c.Copy.TradingActive {
			slog.Info("trading activated via environment", "var", EnvTradingActive)
		}
		c.Copy.TradingActive = true
	case "false", "0", "no":
		if c.Copy.TradingActive {
			slog.Info("trading deactivated via environment", "var", EnvTradingActive)
		}
		c.Copy.TradingActive = false
	}
}
