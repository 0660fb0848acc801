package config

import (
	"time"

	"github.com/phrazzld/renaissance/internal/domain"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Training TrainingConfig `mapstructure:"training" validate:"required"`
	Stats    StatsConfig    `mapstructure:"stats" validate:"required"`
	Task     TaskConfig     `mapstructure:"task" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// TrainingConfig contains the timing and retry settings of training sessions.
type TrainingConfig struct {
	DiscoveryFlash time.Duration `mapstructure:"discovery_flash" validate:"gt=0"`
	Level1Flash    time.Duration `mapstructure:"level1_flash" validate:"gt=0"`
	Level2Flash    time.Duration `mapstructure:"level2_flash" validate:"gt=0"`
	Level3Flash    time.Duration `mapstructure:"level3_flash" validate:"gt=0"`
	CountdownTicks int           `mapstructure:"countdown_ticks" validate:"gte=0,lte=10"`
	TickInterval   time.Duration `mapstructure:"tick_interval" validate:"gt=0"`
	AttemptRetries uint64        `mapstructure:"attempt_retries" validate:"lte=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gt=0"`
	UnlockCacheTTL time.Duration `mapstructure:"unlock_cache_ttl" validate:"gt=0"`
	UnlockCacheMax int           `mapstructure:"unlock_cache_max" validate:"gt=0"`
}

// FlashPolicy returns the configured flash durations.
func (c TrainingConfig) FlashPolicy() domain.FlashPolicy {
	return domain.FlashPolicy{
		Discovery: c.DiscoveryFlash,
		Level1:    c.Level1Flash,
		Level2:    c.Level2Flash,
		Level3:    c.Level3Flash,
	}
}

// StatsConfig contains settings of the statistics cache.
type StatsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gt=0"`
	CacheMax int           `mapstructure:"cache_max" validate:"gt=0"`
}

// TaskConfig contains settings of the background repair workers.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"gt=0"`
	QueueSize   int `mapstructure:"queue_size" validate:"gt=0"`
}
