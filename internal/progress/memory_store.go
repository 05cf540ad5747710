// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store using a map guarded by per-key locks.
type MemoryStore struct {
	mu      sync.Mutex
	locks   map[Key]*sync.Mutex
	records map[Key]Snapshot
	views   ViewCounter
}

// NewMemoryStore creates an in-memory store. views may be nil, in which case
// no view is credited.
func NewMemoryStore(views ViewCounter) *MemoryStore {
	return &MemoryStore{
		locks:   make(map[Key]*sync.Mutex),
		records: make(map[Key]Snapshot),
		views:   views,
	}
}

func (s *MemoryStore) lockFor(key Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *MemoryStore) Merge(ctx context.Context, key Key, sample Sample, p Policy) (Snapshot, Outcome, error) {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	prev, ok := s.records[key]
	s.mu.Unlock()
	if !ok {
		prev = Snapshot{UserID: key.UserID, MovieID: key.MovieID}
	}

	next, out := merge(prev, sample, p)
	if out.ViewCounted {
		if s.views == nil {
			out.ViewCounted = false
		} else if err := s.views.IncrementViews(ctx, key.MovieID); err != nil {
			// The record is only written once the view is credited.
			return Snapshot{}, Outcome{}, err
		}
	}

	s.mu.Lock()
	s.records[key] = next
	s.mu.Unlock()
	return next, out, nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	return r, ok, nil
}

func (s *MemoryStore) Watched(_ context.Context, userID string) ([]Snapshot, error) {
	s.mu.Lock()
	out := make([]Snapshot, 0)
	for k, r := range s.records {
		if k.UserID == userID {
			out = append(out, r)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].MovieID < out[j].MovieID
	})
	return out, nil
}
