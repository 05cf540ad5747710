// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog exposes the slice of the movie catalog that playback needs:
// slug lookup, the video storage key, the view counter and likes.
package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no movie matches the lookup.
var ErrNotFound = errors.New("movie not found")

// Movie is a catalog entry as seen by the playback core.
type Movie struct {
	ID    int64
	Slug  string
	Title string
	// VideoStorageKey is nil when no video asset is attached. A non-nil empty
	// string is an attached asset whose key was never recorded.
	VideoStorageKey *string
	ViewCount       int64
}

// HasVideo reports whether a video asset is attached.
func (m Movie) HasVideo() bool {
	return m.VideoStorageKey != nil
}

// Store is the catalog persistence contract.
type Store interface {
	MovieBySlug(ctx context.Context, slug string) (Movie, error)
	MovieByID(ctx context.Context, id int64) (Movie, error)
	// IncrementViews adds exactly one view using an atomic increment.
	IncrementViews(ctx context.Context, movieID int64) error
	// Like and Unlike are idempotent.
	Like(ctx context.Context, userID string, movieID int64) error
	Unlike(ctx context.Context, userID string, movieID int64) error
	Liked(ctx context.Context, userID string, movieID int64) (bool, error)
}

// StringPtr is a convenience for building movies with a storage key.
func StringPtr(s string) *string { return &s }
