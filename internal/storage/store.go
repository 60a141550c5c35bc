package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Settings() SettingsStore
	Cycles() CycleStore
}

// SettingsStore is a durable key to string map. All values are string-typed;
// callers parse them.
type SettingsStore interface {
	// Get returns ErrNotFound when the key has never been written.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetDefaults writes only the keys that are absent and reports how many
	// were added.
	SetDefaults(ctx context.Context, values map[string]string) (int, error)
	All(ctx context.Context) (map[string]string, error)
}

// CycleStore keeps a bounded history of completed cycles, newest first.
type CycleStore interface {
	Append(ctx context.Context, record CycleRecord, retention int) error
	Recent(ctx context.Context, limit int) ([]CycleRecord, error)
}
