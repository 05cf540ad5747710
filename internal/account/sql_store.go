// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ManuGH/streamgate/internal/persistence"
)

// SQLStore implements Store on SQLite or Postgres.
type SQLStore struct {
	db *persistence.DB
}

// NewSQLStore wraps an opened database.
func NewSQLStore(db *persistence.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) User(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT id, email, is_active FROM users WHERE id = ?`), id).
		Scan(&u.ID, &u.Email, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (s *SQLStore) Snapshot(ctx context.Context, userID string, now time.Time) (Snapshot, error) {
	var snap Snapshot

	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
	SELECT id, status, start_date, end_date, auto_renew
	FROM subscriptions
	WHERE user_id = ? AND is_current
	`), userID)
	var (
		sub        Subscription
		status     string
		start, end int64
	)
	err := row.Scan(&sub.ID, &status, &start, &end, &sub.AutoRenew)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Snapshot{}, err
	default:
		sub.UserID = userID
		sub.Status = Status(status)
		sub.StartDate = time.Unix(start, 0).UTC()
		sub.EndDate = time.Unix(end, 0).UTC()
		sub.Current = true
		snap.Current = &sub
	}

	var n int
	err = s.db.QueryRowContext(ctx, s.db.Rebind(`
	SELECT COUNT(*) FROM subscriptions
	WHERE user_id = ? AND NOT is_current AND status = ? AND end_date > ?
	`), userID, string(StatusActive), now.UTC().Unix()).Scan(&n)
	if err != nil {
		return Snapshot{}, err
	}
	snap.HasActiveHistorical = n > 0
	return snap, nil
}

// PutUser inserts or updates a user row.
func (s *SQLStore) PutUser(ctx context.Context, u User, now time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
	INSERT INTO users (id, email, is_active, created_at) VALUES (?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET email = excluded.email, is_active = excluded.is_active
	`), u.ID, u.Email, u.IsActive, now.UTC().Unix())
	return err
}

// PutSubscription inserts or updates sub. Making it current demotes any other
// current row of the same user within one transaction.
func (s *SQLStore) PutSubscription(ctx context.Context, sub Subscription) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if sub.Current {
		if _, err := tx.ExecContext(ctx, s.db.Rebind(`UPDATE subscriptions SET is_current = FALSE WHERE user_id = ? AND id <> ?`), sub.UserID, sub.ID); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, s.db.Rebind(`
	INSERT INTO subscriptions (id, user_id, status, start_date, end_date, auto_renew, is_current)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		status = excluded.status,
		start_date = excluded.start_date,
		end_date = excluded.end_date,
		auto_renew = excluded.auto_renew,
		is_current = excluded.is_current
	`), sub.ID, sub.UserID, string(sub.Status), sub.StartDate.UTC().Unix(), sub.EndDate.UTC().Unix(), sub.AutoRenew, sub.Current)
	if err != nil {
		return err
	}
	return tx.Commit()
}
