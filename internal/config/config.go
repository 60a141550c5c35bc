package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is where the daemon looks for its configuration file
const DefaultPath = "/etc/screencheck/config.yaml"

// Config holds the complete application configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Storage StorageConfig `mapstructure:"storage"`
	Usage   UsageConfig   `mapstructure:"usage"`
	Action  ActionConfig  `mapstructure:"action"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	History HistoryConfig `mapstructure:"history"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type   string       `mapstructure:"type"` // "sqlite" or "redis"
	SQLite SQLiteConfig `mapstructure:"sqlite"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

// SQLiteConfig defines the local database file
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// UsageConfig defines the accumulation and trigger settings. These values
// seed the settings store; the store is authoritative once populated.
type UsageConfig struct {
	AllowedMinutes int    `mapstructure:"allowed_minutes"`
	IdleResetHours int    `mapstructure:"idle_reset_hours"`
	CycleMinutes   int    `mapstructure:"cycle_minutes"`
	TriggerMode    string `mapstructure:"trigger_mode"`  // "interval" or "time"
	TriggerTime    string `mapstructure:"trigger_time"`  // "HH" or "HH:MM"
	TimeCompare    string `mapstructure:"time_compare"`  // "literal" or "combined"
	CycleTimeout   string `mapstructure:"cycle_timeout"` // bound on each store call
}

// ActionConfig defines what happens when the trigger fires
type ActionConfig struct {
	LockCommand      []string `mapstructure:"lock_command"`
	CommandPath      string   `mapstructure:"command_path"`
	LaunchTimeout    string   `mapstructure:"launch_timeout"`
	ExitAfterCommand bool     `mapstructure:"exit_after_command"`
}

// NotifyConfig defines the status notification channel
type NotifyConfig struct {
	Enabled      bool       `mapstructure:"enabled"`
	Backend      string     `mapstructure:"backend"` // "log", "smtp" or "redis"
	Address      string     `mapstructure:"address"`
	Subject      string     `mapstructure:"subject"`
	SMTP         SMTPConfig `mapstructure:"smtp"`
	RedisChannel string     `mapstructure:"redis_channel"`
}

// SMTPConfig defines the mail relay used by the smtp backend
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// MetricsConfig defines the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// HistoryConfig defines cycle history retention
type HistoryConfig struct {
	Retention int `mapstructure:"retention"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("SCREENCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns a configuration populated only with default values
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.sqlite.path", "/var/lib/screencheck/screencheck.db")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 4)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "screencheck")

	// Usage defaults
	v.SetDefault("usage.allowed_minutes", 120)
	v.SetDefault("usage.idle_reset_hours", 8)
	v.SetDefault("usage.cycle_minutes", 5)
	v.SetDefault("usage.trigger_mode", "interval")
	v.SetDefault("usage.trigger_time", "22:00")
	v.SetDefault("usage.time_compare", "literal")
	v.SetDefault("usage.cycle_timeout", "30s")

	// Action defaults
	v.SetDefault("action.lock_command", []string{"loginctl", "lock-session"})
	v.SetDefault("action.command_path", "")
	v.SetDefault("action.launch_timeout", "10s")
	v.SetDefault("action.exit_after_command", false)

	// Notify defaults
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.backend", "log")
	v.SetDefault("notify.address", "")
	v.SetDefault("notify.subject", "Screen check status")
	v.SetDefault("notify.smtp.host", "localhost")
	v.SetDefault("notify.smtp.port", 25)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.from", "screencheck@localhost")
	v.SetDefault("notify.redis_channel", "screencheck:status")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9477")

	// History defaults
	v.SetDefault("history.retention", 500)
}

// KnownKeys returns every configuration key that has a default
func KnownKeys() map[string]bool {
	v := viper.New()
	SetDefaults(v)

	keys := make(map[string]bool)
	for _, k := range v.AllKeys() {
		keys[k] = true
	}
	return keys
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Usage.AllowedMinutes <= 0 {
		return fmt.Errorf("usage.allowed_minutes must be positive: %d", cfg.Usage.AllowedMinutes)
	}
	if cfg.Usage.IdleResetHours <= 0 {
		return fmt.Errorf("usage.idle_reset_hours must be positive: %d", cfg.Usage.IdleResetHours)
	}
	if cfg.Usage.CycleMinutes <= 0 {
		return fmt.Errorf("usage.cycle_minutes must be positive: %d", cfg.Usage.CycleMinutes)
	}

	switch cfg.Usage.TriggerMode {
	case "interval", "time":
	default:
		return fmt.Errorf("usage.trigger_mode must be \"interval\" or \"time\": %q", cfg.Usage.TriggerMode)
	}

	switch cfg.Usage.TimeCompare {
	case "literal", "combined":
	default:
		return fmt.Errorf("usage.time_compare must be \"literal\" or \"combined\": %q", cfg.Usage.TimeCompare)
	}

	switch cfg.Notify.Backend {
	case "log", "smtp", "redis":
	default:
		return fmt.Errorf("unsupported notify backend: %s", cfg.Notify.Backend)
	}
	if cfg.Notify.Enabled && cfg.Notify.Backend == "smtp" && cfg.Notify.Address == "" {
		return fmt.Errorf("notify.address is required for the smtp backend")
	}

	if cfg.History.Retention < 0 {
		cfg.History.Retention = 0
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "sqlite"
	}

	switch cfg.Storage.Type {
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.SQLite.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	return nil
}
