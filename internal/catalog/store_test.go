// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ManuGH/streamgate/internal/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seedingStore interface {
	Store
	Insert(ctx context.Context, m Movie) (Movie, error)
}

func storeFactories(t *testing.T) map[string]func() seedingStore {
	return map[string]func() seedingStore{
		"memory": func() seedingStore { return NewMemoryStore() },
		"sqlite": func() seedingStore {
			db, err := sqlite.Open(filepath.Join(t.TempDir(), "catalog.sqlite"), sqlite.DefaultConfig())
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			return NewSQLStore(db)
		},
	}
}

func TestStore_MovieBySlug(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory()

			dune, err := s.Insert(ctx, Movie{Slug: "dune", Title: "Dune", VideoStorageKey: StringPtr("movies/videos/dune.mp4")})
			require.NoError(t, err)
			_, err = s.Insert(ctx, Movie{Slug: "no-video", Title: "No Video"})
			require.NoError(t, err)

			got, err := s.MovieBySlug(ctx, "dune")
			require.NoError(t, err)
			assert.Equal(t, dune.ID, got.ID)
			assert.True(t, got.HasVideo())
			assert.Equal(t, "movies/videos/dune.mp4", *got.VideoStorageKey)

			got, err = s.MovieBySlug(ctx, "no-video")
			require.NoError(t, err)
			assert.False(t, got.HasVideo())

			_, err = s.MovieBySlug(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			byID, err := s.MovieByID(ctx, dune.ID)
			require.NoError(t, err)
			assert.Equal(t, "dune", byID.Slug)
			_, err = s.MovieByID(ctx, dune.ID+100)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_IncrementViewsIsAtomic(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory()
			m, err := s.Insert(ctx, Movie{Slug: "m", Title: "M"})
			require.NoError(t, err)

			const workers = 16
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, s.IncrementViews(ctx, m.ID))
				}()
			}
			wg.Wait()

			got, err := s.MovieBySlug(ctx, "m")
			require.NoError(t, err)
			assert.Equal(t, int64(workers), got.ViewCount)

			assert.ErrorIs(t, s.IncrementViews(ctx, 9999), ErrNotFound)
		})
	}
}

func TestStore_LikeUnlikeIdempotent(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory()
			m, err := s.Insert(ctx, Movie{Slug: "m", Title: "M"})
			require.NoError(t, err)

			// Unlike without a prior like is a no-op.
			require.NoError(t, s.Unlike(ctx, "u1", m.ID))

			require.NoError(t, s.Like(ctx, "u1", m.ID))
			require.NoError(t, s.Like(ctx, "u1", m.ID))
			liked, err := s.Liked(ctx, "u1", m.ID)
			require.NoError(t, err)
			assert.True(t, liked)

			require.NoError(t, s.Unlike(ctx, "u1", m.ID))
			require.NoError(t, s.Unlike(ctx, "u1", m.ID))
			liked, err = s.Liked(ctx, "u1", m.ID)
			require.NoError(t, err)
			assert.False(t, liked)
		})
	}
}

func TestMemoryStore_DoubleLikeLeavesOneRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	m, err := s.Insert(ctx, Movie{Slug: "m", Title: "M"})
	require.NoError(t, err)

	require.NoError(t, s.Like(ctx, "u1", m.ID))
	require.NoError(t, s.Like(ctx, "u1", m.ID))
	assert.Equal(t, 1, s.LikeCount(m.ID))
}
