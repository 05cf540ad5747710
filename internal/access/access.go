// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package access decides whether a user may stream right now.
//
// Decide is pure: it performs no I/O and its result must not be cached, since
// a subscription can lapse between two requests.
package access

import (
	"time"

	"github.com/ManuGH/streamgate/internal/account"
)

// Reason is the machine-readable denial code.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonAuthRequired         Reason = "auth_required"
	ReasonSubscriptionMissing  Reason = "subscription_missing"
	ReasonSubscriptionInactive Reason = "subscription_inactive"
)

var messages = map[Reason]string{
	ReasonAuthRequired:         "Sign in to watch this movie.",
	ReasonSubscriptionMissing:  "An active subscription is required to watch movies.",
	ReasonSubscriptionInactive: "Your subscription is not active. Renew it to keep watching.",
}

// Message returns the user-facing text for r.
func (r Reason) Message() string {
	if m, ok := messages[r]; ok {
		return m
	}
	return "Access denied."
}

// Input is the subscription state gathered for one decision.
type Input struct {
	Authenticated bool
	// Current is the user's current subscription, nil when none exists.
	Current *account.Subscription
	// HasActiveHistorical reports a non-current subscription with status
	// active and an end date after now.
	HasActiveHistorical bool
}

// Decision is the outcome of Decide. Meta is never nil.
type Decision struct {
	Allowed bool
	Reason  Reason
	Meta    map[string]any
}

// Decide applies the rules in order; the first match wins.
func Decide(in Input, now time.Time) Decision {
	if !in.Authenticated {
		return deny(ReasonAuthRequired)
	}
	if in.Current == nil {
		if in.HasActiveHistorical {
			return allow()
		}
		return deny(ReasonSubscriptionMissing)
	}
	if !in.Current.IsActive(now) {
		return deny(ReasonSubscriptionInactive)
	}
	return allow()
}

// FromSnapshot builds an Input for an authenticated user.
func FromSnapshot(snap account.Snapshot) Input {
	return Input{
		Authenticated:       true,
		Current:             snap.Current,
		HasActiveHistorical: snap.HasActiveHistorical,
	}
}

func allow() Decision {
	return Decision{Allowed: true, Meta: map[string]any{}}
}

func deny(r Reason) Decision {
	return Decision{Reason: r, Meta: map[string]any{}}
}
