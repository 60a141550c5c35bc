package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/screencheck/internal/storage"
)

type settingsStore struct {
	db *sql.DB
}

func (s *settingsStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (s *settingsStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("set setting: empty key")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO settings(key, value, updated_at)
			 VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now,
		)
		if err != nil {
			return fmt.Errorf("set setting %s: %w", key, err)
		}
		return nil
	})
}

// SetDefaults inserts absent keys in one transaction.
func (s *settingsStore) SetDefaults(ctx context.Context, values map[string]string) (int, error) {
	if len(values) == 0 {
		return 0, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var added int
	err := retryOnContention(ctx, func() error {
		added = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("set defaults: begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for key, value := range values {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO settings(key, value, updated_at) VALUES (?, ?, ?)
				 ON CONFLICT(key) DO NOTHING`,
				key, value, now,
			)
			if err != nil {
				return fmt.Errorf("set defaults %s: %w", key, err)
			}
			n, _ := res.RowsAffected()
			added += int(n)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func (s *settingsStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("list settings: scan: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
