package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goodtune/screencheck/internal/storage"
)

type cycleStore struct {
	db *sql.DB
}

// Append inserts a record and deletes everything older than the newest
// retention rows. A retention of zero keeps all rows.
func (s *cycleStore) Append(ctx context.Context, r storage.CycleRecord, retention int) error {
	return retryOnContention(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("append cycle: begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx,
			`INSERT INTO cycles (id, observed_at, mode, gap_minutes, gap_counted, accumulated_minutes, allowed_minutes, reset, should_act)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.ObservedAt.UTC().Format(time.RFC3339Nano), r.Mode, r.GapMinutes, boolToInt(r.GapCounted),
			r.AccumulatedMinutes, r.AllowedMinutes, boolToInt(r.Reset), boolToInt(r.ShouldAct),
		)
		if err != nil {
			return fmt.Errorf("append cycle: insert: %w", err)
		}

		if retention > 0 {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM cycles WHERE seq NOT IN (SELECT seq FROM cycles ORDER BY seq DESC LIMIT ?)`,
				retention,
			)
			if err != nil {
				return fmt.Errorf("append cycle: trim: %w", err)
			}
		}
		return tx.Commit()
	})
}

// Recent returns up to limit records, newest first.
func (s *cycleStore) Recent(ctx context.Context, limit int) ([]storage.CycleRecord, error) {
	if limit <= 0 {
		return []storage.CycleRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, observed_at, mode, gap_minutes, gap_counted, accumulated_minutes, allowed_minutes, reset, should_act
		 FROM cycles ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent cycles: %w", err)
	}
	defer rows.Close()

	records := make([]storage.CycleRecord, 0, limit)
	for rows.Next() {
		r, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanCycle(rows *sql.Rows) (storage.CycleRecord, error) {
	var (
		r                            storage.CycleRecord
		observedAt                   string
		gapCounted, reset, shouldAct int
	)
	if err := rows.Scan(&r.ID, &observedAt, &r.Mode, &r.GapMinutes, &gapCounted,
		&r.AccumulatedMinutes, &r.AllowedMinutes, &reset, &shouldAct); err != nil {
		return r, fmt.Errorf("recent cycles: scan: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, observedAt)
	if err != nil {
		return r, fmt.Errorf("recent cycles: parse observed_at: %w", err)
	}
	r.ObservedAt = t
	r.GapCounted = gapCounted != 0
	r.Reset = reset != 0
	r.ShouldAct = shouldAct != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
