package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// RENAISSANCE_DATABASE_URL for database.url.
const EnvPrefix = "RENAISSANCE"

var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.log_format":       "json",
	"server.read_timeout":     15 * time.Second,
	"server.write_timeout":    15 * time.Second,
	"server.shutdown_timeout": 10 * time.Second,

	"database.max_open_conns":    25,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": 30 * time.Minute,

	"auth.token_lifetime_minutes": 60,

	"training.discovery_flash":  3 * time.Second,
	"training.level1_flash":     4 * time.Second,
	"training.level2_flash":     2500 * time.Millisecond,
	"training.level3_flash":     1500 * time.Millisecond,
	"training.countdown_ticks":  3,
	"training.tick_interval":    time.Second,
	"training.attempt_retries":  4,
	"training.retry_base_delay": 50 * time.Millisecond,
	"training.unlock_cache_ttl": 30 * time.Second,
	"training.unlock_cache_max": 4096,

	"stats.cache_ttl": time.Minute,
	"stats.cache_max": 4096,

	"task.worker_count": 2,
	"task.queue_size":   100,
}

// keys without defaults still need an env binding so Unmarshal sees them.
var required = []string{"database.url", "auth.jwt_secret"}

// Load configuration from environment variables and optionally a config file
// named config.{yaml,json,toml} in the working directory.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the working directory and tolerates a missing file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range required {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules of cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.Training.FlashPolicy().Validate(); err != nil {
		return fmt.Errorf("config validation failed: training: %w", err)
	}
	if cfg.Database.MaxIdleConns > cfg.Database.MaxOpenConns {
		return fmt.Errorf("config validation failed: database.max_idle_conns exceeds max_open_conns")
	}
	return nil
}
