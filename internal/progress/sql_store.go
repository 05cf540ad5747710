// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/streamgate/internal/persistence"
)

// SQLStore implements Store on SQLite or Postgres.
//
// Merge runs in one transaction: an upsert that max-merges the ratchets on
// the (user_id, movie_id) key, a guarded update that flips finished at most
// once, and the view increment when that update hit a row. SQLite opens
// write transactions immediately; Postgres serializes on the row lock.
type SQLStore struct {
	db *persistence.DB
}

// NewSQLStore wraps an opened database.
func NewSQLStore(db *persistence.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Merge(ctx context.Context, key Key, sample Sample, p Policy) (Snapshot, Outcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, Outcome{}, err
	}
	defer func() { _ = tx.Rollback() }()

	greatest := s.db.Greatest()
	upsert := s.db.Rebind(fmt.Sprintf(`
	INSERT INTO watch_records (user_id, movie_id, last_position_seconds, duration_seconds, progress_percent, finished, updated_at)
	VALUES (?, ?, ?, ?, ?, FALSE, ?)
	ON CONFLICT (user_id, movie_id) DO UPDATE SET
		last_position_seconds = %[1]s(watch_records.last_position_seconds, excluded.last_position_seconds),
		duration_seconds = %[1]s(watch_records.duration_seconds, excluded.duration_seconds),
		progress_percent = %[1]s(watch_records.progress_percent, excluded.progress_percent),
		updated_at = excluded.updated_at
	`, greatest))
	if _, err := tx.ExecContext(ctx, upsert,
		key.UserID, key.MovieID, sample.PositionSeconds, sample.DurationSeconds, sample.Percent, sample.At.UTC().Unix(),
	); err != nil {
		return Snapshot{}, Outcome{}, fmt.Errorf("upsert watch record: %w", err)
	}

	res, err := tx.ExecContext(ctx, s.db.Rebind(`
	UPDATE watch_records SET finished = TRUE
	WHERE user_id = ? AND movie_id = ? AND finished = FALSE AND progress_percent >= ?
	`), key.UserID, key.MovieID, p.FinishThreshold)
	if err != nil {
		return Snapshot{}, Outcome{}, fmt.Errorf("finish watch record: %w", err)
	}
	flipped, err := res.RowsAffected()
	if err != nil {
		return Snapshot{}, Outcome{}, err
	}

	snap, err := scanRecord(tx.QueryRowContext(ctx, s.db.Rebind(selectRecord+` WHERE user_id = ? AND movie_id = ?`), key.UserID, key.MovieID))
	if err != nil {
		return Snapshot{}, Outcome{}, err
	}

	var out Outcome
	if flipped == 1 {
		out.JustFinished = true
		if snap.LastPositionSeconds >= p.MinWatchSeconds {
			res, err := tx.ExecContext(ctx, s.db.Rebind(`UPDATE movies SET view_count = view_count + 1 WHERE id = ?`), key.MovieID)
			if err != nil {
				return Snapshot{}, Outcome{}, fmt.Errorf("increment views: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				out.ViewCounted = true
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, Outcome{}, err
	}
	return snap, out, nil
}

func (s *SQLStore) Get(ctx context.Context, key Key) (Snapshot, bool, error) {
	snap, err := scanRecord(s.db.QueryRowContext(ctx, s.db.Rebind(selectRecord+` WHERE user_id = ? AND movie_id = ?`), key.UserID, key.MovieID))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *SQLStore) Watched(ctx context.Context, userID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(selectRecord+` WHERE user_id = ? ORDER BY updated_at DESC, movie_id ASC`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Snapshot, 0)
	for rows.Next() {
		snap, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

const selectRecord = `SELECT user_id, movie_id, last_position_seconds, duration_seconds, progress_percent, finished, updated_at FROM watch_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Snapshot, error) {
	var (
		snap    Snapshot
		updated int64
	)
	if err := row.Scan(&snap.UserID, &snap.MovieID, &snap.LastPositionSeconds, &snap.DurationSeconds,
		&snap.ProgressPercent, &snap.Finished, &updated); err != nil {
		return Snapshot{}, err
	}
	snap.UpdatedAt = time.Unix(updated, 0).UTC()
	return snap, nil
}
