// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package account models users and the read-only subscription snapshot the
// playback core consults. Subscription lifecycle writes belong to billing.
package account

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when the identity has no user row.
var ErrUserNotFound = errors.New("user not found")

// Status is the subscription lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// User is an account identity.
type User struct {
	ID       string
	Email    string
	IsActive bool
}

// Subscription is one subscription row. At most one per user is Current.
type Subscription struct {
	ID        string
	UserID    string
	Status    Status
	StartDate time.Time
	EndDate   time.Time
	AutoRenew bool
	Current   bool
}

// IsActive holds iff the status is active and now is before the end date.
func (s Subscription) IsActive(now time.Time) bool {
	return s.Status == StatusActive && now.Before(s.EndDate)
}

// DaysRemaining returns whole days until EndDate for an active subscription, else 0.
func (s Subscription) DaysRemaining(now time.Time) int {
	if !s.IsActive(now) {
		return 0
	}
	days := int(s.EndDate.Sub(now) / (24 * time.Hour))
	if days < 0 {
		return 0
	}
	return days
}

// Snapshot is everything the access decision needs about a user's subscriptions.
type Snapshot struct {
	// Current is nil when the user has no current subscription relationship.
	Current *Subscription
	// HasActiveHistorical is true when a non-current subscription row is
	// active with an end date in the future.
	HasActiveHistorical bool
}

// Store is the account persistence contract.
type Store interface {
	User(ctx context.Context, id string) (User, error)
	Snapshot(ctx context.Context, userID string, now time.Time) (Snapshot, error)
}
