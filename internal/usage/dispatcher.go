package usage

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNoCommand is returned by Act when no command path is configured.
var ErrNoCommand = errors.New("no command configured")

// DisplayLocker locks the interactive session. Locking an already locked
// display must be harmless.
type DisplayLocker interface {
	LockDisplay(ctx context.Context) error
}

// CommandRunner launches the enforcement command without waiting for it.
type CommandRunner interface {
	RunCommand(ctx context.Context, path string) error
}

// Notifier delivers a status message.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// Dispatcher performs the enforcement action: lock first, then launch.
type Dispatcher struct {
	locker DisplayLocker
	runner CommandRunner
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(locker DisplayLocker, runner CommandRunner, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		locker: locker,
		runner: runner,
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Act locks the display and then launches commandPath. A lock failure is
// logged and does not prevent the launch. The returned error is the launch
// result only.
func (d *Dispatcher) Act(ctx context.Context, commandPath string) error {
	if err := d.locker.LockDisplay(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to lock display")
	} else {
		d.logger.Info().Msg("Display locked")
	}

	if commandPath == "" {
		d.logger.Warn().Msg("Trigger fired but no command is configured")
		return ErrNoCommand
	}

	if err := d.runner.RunCommand(ctx, commandPath); err != nil {
		d.logger.Error().Err(err).Str("command", commandPath).Msg("Failed to launch command")
		return err
	}

	d.logger.Info().Str("command", commandPath).Msg("Command launched")
	return nil
}
