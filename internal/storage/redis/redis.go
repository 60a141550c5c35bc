package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screencheck/internal/config"
	"github.com/goodtune/screencheck/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client        *redis.Client
	settingsStore *settingsStore
	cycleStore    *cycleStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Host may already carry the port (e.g. miniredis "127.0.0.1:40000")
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(client, cfg.KeyPrefix), nil
}

// New wraps an existing client. Used by Open and by callers that share one
// connection between the store and the redis notifier.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "screencheck"
	}
	k := keys{prefix: prefix}
	return &Store{
		client:        client,
		settingsStore: &settingsStore{client: client, keys: k},
		cycleStore:    &cycleStore{client: client, keys: k},
	}
}

// Client exposes the underlying connection
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Settings returns the SettingsStore implementation
func (s *Store) Settings() storage.SettingsStore {
	return s.settingsStore
}

// Cycles returns the CycleStore implementation
func (s *Store) Cycles() storage.CycleStore {
	return s.cycleStore
}

var _ storage.Store = (*Store)(nil)

type keys struct {
	prefix string
}

// settings is the hash holding every string-typed setting
func (k keys) settings() string { return k.prefix + ":settings" }

// cycles is the list of JSON cycle records, newest at the head
func (k keys) cycles() string { return k.prefix + ":cycles" }
