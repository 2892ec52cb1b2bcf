// Package config loads the fin tool configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Ledger LedgerConfig
	Rates  RatesConfig
	Log    LogConfig
}

// LedgerConfig selects where the ledger is stored.
type LedgerConfig struct {
	// Backend is "jsonl" or "sqlite".
	Backend string
	Path    string
}

// RatesConfig configures the currency conversion service.
type RatesConfig struct {
	Base      string
	RedisAddr string `mapstructure:"redis_addr"`
	TTL       time.Duration
	URL       string
	Path      string
	Invert    bool
	// Static rates, currency code to base units per unit.
	Static map[string]string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// Load reads configuration from file and env. Env var overrides use prefix FIN_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("ledger.backend", "jsonl")
	v.SetDefault("ledger.path", "ledger.jsonl")
	v.SetDefault("rates.base", "KZT")
	v.SetDefault("rates.redis_addr", "")
	v.SetDefault("rates.ttl", 24*time.Hour)
	v.SetDefault("rates.url", "")
	v.SetDefault("rates.path", "")
	v.SetDefault("rates.invert", false)
	v.SetDefault("rates.static", map[string]string{})
	v.SetDefault("log.level", "warn")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("FIN_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "fin"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("FIN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// a missing default file is fine, an explicit or broken one is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	switch c.Ledger.Backend {
	case "jsonl", "sqlite":
	default:
		return Config{}, fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	return c, nil
}
