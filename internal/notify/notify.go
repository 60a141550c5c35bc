// Package notify delivers per-cycle status messages.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/goodtune/screencheck/internal/config"
)

// ErrDelivery is returned when a message could not be handed off.
var ErrDelivery = errors.New("notification delivery failed")

// Notifier delivers a status message to a recipient.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// New builds the notifier selected by cfg.Backend. client is only used by
// the redis backend and may be nil otherwise.
func New(cfg config.NotifyConfig, client *redis.Client, logger zerolog.Logger) (Notifier, error) {
	switch cfg.Backend {
	case "", "log":
		return NewLogNotifier(logger), nil
	case "smtp":
		return NewSMTPNotifier(cfg.SMTP), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis notify backend requires redis storage")
		}
		return NewRedisNotifier(client, cfg.RedisChannel), nil
	default:
		return nil, fmt.Errorf("unsupported notify backend: %s", cfg.Backend)
	}
}

// LogNotifier writes status messages to the log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, recipient, subject, body string) error {
	n.logger.Info().
		Str("recipient", recipient).
		Str("subject", subject).
		Str("body", body).
		Msg("Status notification")
	return nil
}
