package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goodtune/screencheck/internal/storage"
	"github.com/redis/go-redis/v9"
)

type cycleStore struct {
	client *redis.Client
	keys   keys
}

// Append pushes a record and trims the list to retention entries
func (s *cycleStore) Append(ctx context.Context, record storage.CycleRecord, retention int) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode cycle record: %w", err)
	}

	script := redis.NewScript(appendCycleScript)

	return script.Run(ctx, s.client, []string{s.keys.cycles()}, string(data), retention).Err()
}

// Recent returns up to limit records, newest first
func (s *cycleStore) Recent(ctx context.Context, limit int) ([]storage.CycleRecord, error) {
	if limit <= 0 {
		return []storage.CycleRecord{}, nil
	}

	items, err := s.client.LRange(ctx, s.keys.cycles(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]storage.CycleRecord, 0, len(items))
	for _, item := range items {
		record, err := parseCycleRecord(item)
		if err != nil {
			continue
		}
		records = append(records, *record)
	}

	return records, nil
}
