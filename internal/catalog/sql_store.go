// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ManuGH/streamgate/internal/persistence"
)

// SQLStore implements Store on SQLite or Postgres.
type SQLStore struct {
	db  *persistence.DB
	now func() time.Time
}

// NewSQLStore wraps an opened database.
func NewSQLStore(db *persistence.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Insert creates a movie row and returns it with its assigned ID.
func (s *SQLStore) Insert(ctx context.Context, m Movie) (Movie, error) {
	query := s.db.Rebind(`INSERT INTO movies (slug, title, video_storage_key, view_count) VALUES (?, ?, ?, ?) RETURNING id`)
	var key sql.NullString
	if m.VideoStorageKey != nil {
		key = sql.NullString{String: *m.VideoStorageKey, Valid: true}
	}
	if err := s.db.QueryRowContext(ctx, query, m.Slug, m.Title, key, m.ViewCount).Scan(&m.ID); err != nil {
		return Movie{}, err
	}
	return m, nil
}

func (s *SQLStore) MovieBySlug(ctx context.Context, slug string) (Movie, error) {
	return s.queryMovie(ctx, `WHERE slug = ?`, slug)
}

func (s *SQLStore) MovieByID(ctx context.Context, id int64) (Movie, error) {
	return s.queryMovie(ctx, `WHERE id = ?`, id)
}

func (s *SQLStore) queryMovie(ctx context.Context, where string, arg any) (Movie, error) {
	query := s.db.Rebind(`SELECT id, slug, title, video_storage_key, view_count FROM movies ` + where)
	var (
		m   Movie
		key sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&m.ID, &m.Slug, &m.Title, &key, &m.ViewCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Movie{}, ErrNotFound
	}
	if err != nil {
		return Movie{}, err
	}
	if key.Valid {
		m.VideoStorageKey = &key.String
	}
	return m, nil
}

func (s *SQLStore) IncrementViews(ctx context.Context, movieID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE movies SET view_count = view_count + 1 WHERE id = ?`), movieID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Like(ctx context.Context, userID string, movieID int64) error {
	query := s.db.Rebind(`
	INSERT INTO movie_likes (user_id, movie_id, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT (user_id, movie_id) DO NOTHING
	`)
	_, err := s.db.ExecContext(ctx, query, userID, movieID, s.now().UTC().Unix())
	return err
}

func (s *SQLStore) Unlike(ctx context.Context, userID string, movieID int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM movie_likes WHERE user_id = ? AND movie_id = ?`), userID, movieID)
	return err
}

func (s *SQLStore) Liked(ctx context.Context, userID string, movieID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM movie_likes WHERE user_id = ? AND movie_id = ?`), userID, movieID).Scan(&n)
	return n > 0, err
}
