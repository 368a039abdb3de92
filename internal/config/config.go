// Package config загружает конфигурацию сервиса из YAML-файла
// и переменных окружения с префиксом SYNCD_.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yallaspeak/syncd/internal/models"
)

// Config содержит полную конфигурацию сервиса
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr возвращает адрес для ListenAndServe
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
	BoltPath   string `mapstructure:"bolt_path"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type SyncConfig struct {
	ConflictWindow  time.Duration `mapstructure:"conflict_window"`
	MaxSyncAgeDays  int           `mapstructure:"max_sync_age_days"`
	RetryLimit      int           `mapstructure:"retry_limit"`
	DefaultStrategy string        `mapstructure:"default_strategy"`
	Enabled         bool          `mapstructure:"enabled"`
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load читает конфигурацию из файла (опционально) и окружения.
// Пустой path означает только defaults + env.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("SYNCD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("storage.sqlite_path", "syncd.db")
	v.SetDefault("storage.bolt_path", "syncd-queue.db")

	// Пустой default регистрирует ключ, иначе AutomaticEnv
	// не увидит SYNCD_AUTH_JWT_SECRET при Unmarshal
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("sync.conflict_window", "60s")
	v.SetDefault("sync.max_sync_age_days", 30)
	v.SetDefault("sync.retry_limit", 5)
	v.SetDefault("sync.default_strategy", "server-wins")
	v.SetDefault("sync.enabled", true)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.schedule", "@every 5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if _, err := models.ParseStrategy(c.Sync.DefaultStrategy); err != nil {
		return fmt.Errorf("sync.default_strategy: %w", err)
	}
	if c.Sync.ConflictWindow <= 0 {
		return fmt.Errorf("sync.conflict_window must be positive")
	}
	if c.Sync.RetryLimit <= 0 {
		return fmt.Errorf("sync.retry_limit must be positive")
	}
	if c.Sync.MaxSyncAgeDays <= 0 {
		return fmt.Errorf("sync.max_sync_age_days must be positive")
	}
	return nil
}

// MaxSyncAge возвращает максимальный возраст изменений как Duration
func (c *Config) MaxSyncAge() time.Duration {
	return time.Duration(c.Sync.MaxSyncAgeDays) * 24 * time.Hour
}
