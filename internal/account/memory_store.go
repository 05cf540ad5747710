// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package account

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using maps (thread-safe).
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
	subs  map[string][]Subscription
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]User),
		subs:  make(map[string][]Subscription),
	}
}

// PutUser inserts or replaces u.
func (s *MemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutSubscription stores sub. A Current subscription demotes the previous one.
func (s *MemoryStore) PutSubscription(sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.subs[sub.UserID]
	replaced := false
	for i := range list {
		if sub.Current {
			list[i].Current = false
		}
		if list[i].ID == sub.ID {
			list[i] = sub
			replaced = true
		}
	}
	if !replaced {
		list = append(list, sub)
	}
	s.subs[sub.UserID] = list
}

func (s *MemoryStore) User(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemoryStore) Snapshot(_ context.Context, userID string, now time.Time) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snap Snapshot
	for _, sub := range s.subs[userID] {
		if sub.Current {
			cur := sub
			snap.Current = &cur
			continue
		}
		if sub.Status == StatusActive && sub.EndDate.After(now) {
			snap.HasActiveHistorical = true
		}
	}
	return snap, nil
}
