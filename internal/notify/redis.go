package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is the JSON payload published by RedisNotifier.
type Message struct {
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// RedisNotifier publishes status messages on a Redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	now     func() time.Time
}

// NewRedisNotifier creates a notifier publishing to channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "screencheck:status"
	}
	return &RedisNotifier{client: client, channel: channel, now: time.Now}
}

// Notify implements Notifier. Having no subscribers is not an error.
func (n *RedisNotifier) Notify(ctx context.Context, recipient, subject, body string) error {
	payload, err := json.Marshal(Message{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		SentAt:    n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrDelivery, err)
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrDelivery, n.channel, err)
	}
	return nil
}
