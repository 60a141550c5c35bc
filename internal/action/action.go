// Package action runs the side effects of a fired trigger: locking the
// interactive display and launching the enforcement command.
package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrLaunch is returned when a command could not be started.
var ErrLaunch = errors.New("launch failed")

// DisplayLocker locks the session by running an external locker such as
// "loginctl lock-session" and waiting for it to exit.
type DisplayLocker struct {
	argv    []string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewDisplayLocker creates a locker. An empty argv makes LockDisplay a no-op.
func NewDisplayLocker(argv []string, timeout time.Duration, logger zerolog.Logger) *DisplayLocker {
	return &DisplayLocker{
		argv:    argv,
		timeout: timeout,
		logger:  logger.With().Str("component", "display-locker").Logger(),
	}
}

// LockDisplay runs the lock command.
func (l *DisplayLocker) LockDisplay(ctx context.Context) error {
	if len(l.argv) == 0 {
		l.logger.Debug().Msg("No lock command configured")
		return nil
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, l.argv[0], l.argv[1:]...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%w: %s: %v: %s", ErrLaunch, l.argv[0], err, msg)
		}
		return fmt.Errorf("%w: %s: %v", ErrLaunch, l.argv[0], err)
	}
	return nil
}

// CommandRunner starts a command and returns once it has launched. The child
// is reaped in the background and its exit status logged.
type CommandRunner struct {
	logger zerolog.Logger
}

// NewCommandRunner creates a runner.
func NewCommandRunner(logger zerolog.Logger) *CommandRunner {
	return &CommandRunner{
		logger: logger.With().Str("component", "command-runner").Logger(),
	}
}

// RunCommand starts path with no arguments. Start returns as soon as the
// child has been executed, so the outcome is known before RunCommand returns
// and a failed call never leaves a process behind. The child outlives ctx.
func (r *CommandRunner) RunCommand(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty command path", ErrLaunch)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLaunch, path, err)
	}

	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLaunch, path, err)
	}

	pid := cmd.Process.Pid
	go func() {
		if err := cmd.Wait(); err != nil {
			r.logger.Warn().Err(err).Str("command", path).Int("pid", pid).Msg("Command exited with error")
			return
		}
		r.logger.Debug().Str("command", path).Int("pid", pid).Msg("Command exited")
	}()

	return nil
}
