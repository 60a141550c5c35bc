package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/screencheck/internal/action"
	"github.com/goodtune/screencheck/internal/config"
	"github.com/goodtune/screencheck/internal/metrics"
	"github.com/goodtune/screencheck/internal/notify"
	"github.com/goodtune/screencheck/internal/storage"
	"github.com/goodtune/screencheck/internal/storage/redis"
	"github.com/goodtune/screencheck/internal/storage/sqlite"
	"github.com/goodtune/screencheck/internal/systemd"
	"github.com/goodtune/screencheck/internal/usage"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the ScreenCheck daemon",
	Long:  `Run one monitoring cycle immediately and then one per configured cycle length until stopped.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting ScreenCheck")

	seed, err := usage.SettingsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid usage configuration: %w", err)
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Msg("Storage initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycleTimeout := config.ParseDuration(cfg.Usage.CycleTimeout, 30*time.Second)
	if err := seedSettings(ctx, store, seed, cycleTimeout, logger); err != nil {
		// The engine falls back to the seed values while the store is down
		logger.Warn().Err(err).Msg("Failed to seed settings store")
	}

	// Initialize notifier
	notifyClient, closeNotifyClient, err := notifyRedisClient(cfg, store)
	if err != nil {
		return fmt.Errorf("failed to connect notify backend: %w", err)
	}
	defer closeNotifyClient()

	notifier, err := notify.New(cfg.Notify, notifyClient, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	// Initialize action sinks
	launchTimeout := config.ParseDuration(cfg.Action.LaunchTimeout, 10*time.Second)
	dispatcher := usage.NewDispatcher(
		action.NewDisplayLocker(cfg.Action.LockCommand, launchTimeout, logger),
		action.NewCommandRunner(logger),
		logger,
	)

	engine := usage.NewEngine(store, usage.RealClock{}, dispatcher, notifier, usage.Options{
		Defaults:        seed,
		CycleTimeout:    cycleTimeout,
		Retention:       cfg.History.Retention,
		Subject:         cfg.Notify.Subject,
		ExitAfterAction: cfg.Action.ExitAfterCommand,
	}, logger)

	logger.Info().
		Str("backend", cfg.Notify.Backend).
		Bool("exit_after_command", cfg.Action.ExitAfterCommand).
		Msg("Usage engine initialized")

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Address, logger)

		// Use systemd socket-activated listener if available
		ln, err := systemd.MetricsListener()
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to get systemd metrics listener")
		} else if ln != nil {
			logger.Info().Msg("Running with systemd socket activation")
			metricsServer.SetListener(ln)
		}

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
		logger.Info().Msgf("Metrics: http://%s/metrics", metricsServer.Addr())
	}

	// Start the scheduler; the first cycle runs before we report ready
	scheduler := usage.NewScheduler(engine, time.Minute, logger)
	scheduler.OnCycle(func(res *usage.CycleResult) {
		status := fmt.Sprintf("%d of %d minutes used", res.State.AccumulatedMinutes, res.Settings.AllowedMinutes)
		if res.StateUnknown {
			status = "Settings store unavailable, session state unknown"
		}
		if err := systemd.NotifyStatus(status); err != nil {
			logger.Debug().Err(err).Msg("Failed to send systemd status")
		}
	})
	scheduler.Start(ctx)

	stopWatchdog := startWatchdog(logger)
	defer stopWatchdog()

	logger.Info().Msg("ScreenCheck startup complete")

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals (shutdown or reload)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	// Signal handling loop
	for {
		sig := <-sigChan

		if sig == syscall.SIGHUP {
			logger.Info().Msg("SIGHUP received, re-seeding settings from configuration...")
			_ = systemd.NotifyReloading()
			reseed(ctx, store, engine, cycleTimeout, logger)
			_ = systemd.NotifyReady()
			continue
		}

		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	scheduler.Stop()

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("ScreenCheck stopped")

	return nil
}

// reseed reloads the configuration file, makes it the engine's fallback for
// unparseable settings and writes any newly added keys. Keys already in the
// store are left alone; use `screencheck set` for those.
func reseed(ctx context.Context, store storage.Store, engine *usage.Engine, timeout time.Duration, logger zerolog.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to reload configuration")
		return
	}
	seed, err := usage.SettingsFromConfig(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid usage configuration")
		return
	}
	engine.SetDefaults(seed)
	if err := seedSettings(ctx, store, seed, timeout, logger); err != nil {
		logger.Error().Err(err).Msg("Failed to seed settings store")
	}
}

// seedSettings writes seed values for keys absent from the store
func seedSettings(ctx context.Context, store storage.Store, seed usage.Settings, timeout time.Duration, logger zerolog.Logger) error {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	added, err := store.Settings().SetDefaults(sctx, seed.Values())
	if err != nil {
		return err
	}
	logger.Info().Int("added", added).Msg("Settings store seeded")
	return nil
}

// startWatchdog pings the systemd watchdog at half its timeout
func startWatchdog(logger zerolog.Logger) func() {
	interval := systemd.WatchdogInterval()
	if interval <= 0 {
		return func() {}
	}

	logger.Info().Dur("timeout", interval).Msg("Systemd watchdog enabled")
	ticker := time.NewTicker(interval / 2)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := systemd.NotifyWatchdog(); err != nil {
					logger.Warn().Err(err).Msg("Failed to send systemd watchdog notification")
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "sqlite"
	}

	switch storageType {
	case "sqlite":
		return sqlite.Open(cfg.SQLite.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// notifyRedisClient returns the client for the redis notify backend. The
// store's own connection is shared when storage is also redis.
func notifyRedisClient(cfg *config.Config, store storage.Store) (*goredis.Client, func(), error) {
	noop := func() {}
	if cfg.Notify.Backend != "redis" {
		return nil, noop, nil
	}

	if rs, ok := store.(*redis.Store); ok {
		return rs.Client(), noop, nil
	}

	rs, err := redis.Open(cfg.Storage.Redis)
	if err != nil {
		return nil, noop, err
	}
	return rs.Client(), func() { _ = rs.Close() }, nil
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// cliContext loads configuration and storage for the one-shot commands
func cliContext() (*config.Config, storage.Store, usage.Settings, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, usage.Settings{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	seed, err := usage.SettingsFromConfig(cfg)
	if err != nil {
		return nil, nil, usage.Settings{}, fmt.Errorf("invalid usage configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, nil, usage.Settings{}, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return cfg, store, seed, nil
}
