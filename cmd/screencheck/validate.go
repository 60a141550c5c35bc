package main

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goodtune/screencheck/internal/config"
	"github.com/goodtune/screencheck/internal/usage"
)

var (
	validateDump  bool
	validateStore bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the ScreenCheck configuration file and, optionally, the values in the settings store.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	validateCmd.Flags().BoolVar(&validateStore, "store", false, "Also validate the values in the settings store")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}
	if _, err := usage.SettingsFromConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	red := color.New(color.FgRed, color.Bold)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateStore {
		if err := validateStoredSettings(cfg); err != nil {
			return err
		}
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Defaults(), unknownKeys)
	}

	return nil
}

// validateStoredSettings checks every value in the settings store
func validateStoredSettings(cfg *config.Config) error {
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	values, err := store.Settings().All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	red := color.New(color.FgRed, color.Bold)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	invalid := 0
	for _, key := range keys {
		if !usage.IsKnownKey(key) {
			continue
		}
		if err := usage.ValidateSetting(key, values[key]); err != nil {
			invalid++
			red.Fprintf(os.Stdout, "   - %v\n", err)
		}
	}

	unknown := usage.UnknownKeys(values)
	for _, key := range unknown {
		red.Fprintf(os.Stdout, "   - %s (unknown setting, ignored)\n", key)
	}

	if invalid > 0 {
		return fmt.Errorf("%d stored setting(s) are invalid and will fall back to configuration defaults", invalid)
	}
	fmt.Fprintf(os.Stdout, "✅ Settings store is valid (%d keys)\n", len(values))
	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := config.KnownKeys()

	// Find unknown keys
	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	// Usage
	cyan.Println("\n[usage]")
	dumpField("  allowed_minutes", cfg.Usage.AllowedMinutes, defaultCfg.Usage.AllowedMinutes, yellow, green)
	dumpField("  idle_reset_hours", cfg.Usage.IdleResetHours, defaultCfg.Usage.IdleResetHours, yellow, green)
	dumpField("  cycle_minutes", cfg.Usage.CycleMinutes, defaultCfg.Usage.CycleMinutes, yellow, green)
	dumpField("  trigger_mode", cfg.Usage.TriggerMode, defaultCfg.Usage.TriggerMode, yellow, green)
	dumpField("  trigger_time", cfg.Usage.TriggerTime, defaultCfg.Usage.TriggerTime, yellow, green)
	dumpField("  time_compare", cfg.Usage.TimeCompare, defaultCfg.Usage.TimeCompare, yellow, green)
	dumpField("  cycle_timeout", cfg.Usage.CycleTimeout, defaultCfg.Usage.CycleTimeout, yellow, green)

	// Action
	cyan.Println("\n[action]")
	dumpField("  lock_command", cfg.Action.LockCommand, defaultCfg.Action.LockCommand, yellow, green)
	dumpField("  command_path", cfg.Action.CommandPath, defaultCfg.Action.CommandPath, yellow, green)
	dumpField("  launch_timeout", cfg.Action.LaunchTimeout, defaultCfg.Action.LaunchTimeout, yellow, green)
	dumpField("  exit_after_command", cfg.Action.ExitAfterCommand, defaultCfg.Action.ExitAfterCommand, yellow, green)

	// Notify
	cyan.Println("\n[notify]")
	dumpField("  enabled", cfg.Notify.Enabled, defaultCfg.Notify.Enabled, yellow, green)
	dumpField("  backend", cfg.Notify.Backend, defaultCfg.Notify.Backend, yellow, green)
	dumpField("  address", cfg.Notify.Address, defaultCfg.Notify.Address, yellow, green)
	dumpField("  subject", cfg.Notify.Subject, defaultCfg.Notify.Subject, yellow, green)
	dumpField("  redis_channel", cfg.Notify.RedisChannel, defaultCfg.Notify.RedisChannel, yellow, green)
	cyan.Println("  [notify.smtp]")
	dumpField("    host", cfg.Notify.SMTP.Host, defaultCfg.Notify.SMTP.Host, yellow, green)
	dumpField("    port", cfg.Notify.SMTP.Port, defaultCfg.Notify.SMTP.Port, yellow, green)
	dumpField("    username", cfg.Notify.SMTP.Username, defaultCfg.Notify.SMTP.Username, yellow, green)
	dumpField("    password", redactPassword(cfg.Notify.SMTP.Password), redactPassword(defaultCfg.Notify.SMTP.Password), yellow, green)
	dumpField("    from", cfg.Notify.SMTP.From, defaultCfg.Notify.SMTP.From, yellow, green)

	// Storage
	cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	cyan.Println("  [storage.sqlite]")
	dumpField("    path", cfg.Storage.SQLite.Path, defaultCfg.Storage.SQLite.Path, yellow, green)
	cyan.Println("  [storage.redis]")
	dumpField("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, yellow, green)
	dumpField("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, yellow, green)
	dumpField("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password), yellow, green)
	dumpField("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, yellow, green)
	dumpField("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize, yellow, green)
	dumpField("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns, yellow, green)
	dumpField("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, yellow, green)
	dumpField("    key_prefix", cfg.Storage.Redis.KeyPrefix, defaultCfg.Storage.Redis.KeyPrefix, yellow, green)

	// Metrics
	cyan.Println("\n[metrics]")
	dumpField("  enabled", cfg.Metrics.Enabled, defaultCfg.Metrics.Enabled, yellow, green)
	dumpField("  address", cfg.Metrics.Address, defaultCfg.Metrics.Address, yellow, green)

	// History
	cyan.Println("\n[history]")
	dumpField("  retention", cfg.History.Retention, defaultCfg.History.Retention, yellow, green)

	// Logging
	cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	// Display unknown keys if any
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)

		cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
