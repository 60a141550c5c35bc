package redis

import (
	"context"
	"errors"

	"github.com/goodtune/screencheck/internal/storage"
	"github.com/redis/go-redis/v9"
)

type settingsStore struct {
	client *redis.Client
	keys   keys
}

// Get retrieves a single setting
func (s *settingsStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.HGet(ctx, s.keys.settings(), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set writes a single setting
func (s *settingsStore) Set(ctx context.Context, key, value string) error {
	return s.client.HSet(ctx, s.keys.settings(), key, value).Err()
}

// SetDefaults writes the settings that are not yet present
func (s *settingsStore) SetDefaults(ctx context.Context, values map[string]string) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}

	script := redis.NewScript(setDefaultsScript)

	added, err := script.Run(ctx, s.client, []string{s.keys.settings()}, defaultsArgs(values)...).Int()
	if err != nil {
		return 0, err
	}
	return added, nil
}

// All returns every stored setting
func (s *settingsStore) All(ctx context.Context) (map[string]string, error) {
	return s.client.HGetAll(ctx, s.keys.settings()).Result()
}
