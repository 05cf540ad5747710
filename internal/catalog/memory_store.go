// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"fmt"
	"sync"
)

type likeKey struct {
	userID  string
	movieID int64
}

// MemoryStore implements Store using maps (thread-safe).
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	bySlug map[string]*Movie
	byID   map[int64]*Movie
	likes  map[likeKey]struct{}
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySlug: make(map[string]*Movie),
		byID:   make(map[int64]*Movie),
		likes:  make(map[likeKey]struct{}),
	}
}

// Insert adds m, assigning an ID when m.ID is zero.
func (s *MemoryStore) Insert(_ context.Context, m Movie) (Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bySlug[m.Slug]; exists {
		return Movie{}, fmt.Errorf("catalog: slug %q already exists", m.Slug)
	}
	if m.ID == 0 {
		s.nextID++
		m.ID = s.nextID
	} else if m.ID > s.nextID {
		s.nextID = m.ID
	}
	clone := m
	s.bySlug[m.Slug] = &clone
	s.byID[m.ID] = &clone
	return m, nil
}

func (s *MemoryStore) MovieBySlug(_ context.Context, slug string) (Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.bySlug[slug]
	if !ok {
		return Movie{}, ErrNotFound
	}
	return *m, nil
}

func (s *MemoryStore) MovieByID(_ context.Context, id int64) (Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return Movie{}, ErrNotFound
	}
	return *m, nil
}

func (s *MemoryStore) IncrementViews(_ context.Context, movieID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[movieID]
	if !ok {
		return ErrNotFound
	}
	m.ViewCount++
	return nil
}

func (s *MemoryStore) Like(_ context.Context, userID string, movieID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[movieID]; !ok {
		return ErrNotFound
	}
	s.likes[likeKey{userID, movieID}] = struct{}{}
	return nil
}

func (s *MemoryStore) Unlike(_ context.Context, userID string, movieID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.likes, likeKey{userID, movieID})
	return nil
}

func (s *MemoryStore) Liked(_ context.Context, userID string, movieID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.likes[likeKey{userID, movieID}]
	return ok, nil
}

// LikeCount returns the number of like records for movieID.
func (s *MemoryStore) LikeCount(movieID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.likes {
		if k.movieID == movieID {
			n++
		}
	}
	return n
}
