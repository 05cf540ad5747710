// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package access

import (
	"math/rand"
	"testing"
	"time"

	"github.com/ManuGH/streamgate/internal/account"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sub(status account.Status, end time.Duration) *account.Subscription {
	return &account.Subscription{Status: status, StartDate: now.Add(-24 * time.Hour), EndDate: now.Add(end), Current: true}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		in     Input
		allow  bool
		reason Reason
	}{
		{"anonymous", Input{}, false, ReasonAuthRequired},
		{"anonymous with active subscription", Input{Current: sub(account.StatusActive, time.Hour)}, false, ReasonAuthRequired},
		{"no subscription", Input{Authenticated: true}, false, ReasonSubscriptionMissing},
		{"historical active only", Input{Authenticated: true, HasActiveHistorical: true}, true, ReasonNone},
		{"current active", Input{Authenticated: true, Current: sub(account.StatusActive, time.Hour)}, true, ReasonNone},
		{"current active but lapsed", Input{Authenticated: true, Current: sub(account.StatusActive, -time.Second)}, false, ReasonSubscriptionInactive},
		{"current canceled", Input{Authenticated: true, Current: sub(account.StatusCanceled, time.Hour)}, false, ReasonSubscriptionInactive},
		{"current pending", Input{Authenticated: true, Current: sub(account.StatusPending, time.Hour)}, false, ReasonSubscriptionInactive},
		// The current relationship takes precedence over history.
		{"current expired with historical active", Input{Authenticated: true, Current: sub(account.StatusExpired, -time.Hour), HasActiveHistorical: true}, false, ReasonSubscriptionInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.in, now)
			assert.Equal(t, tt.allow, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
			assert.NotNil(t, d.Meta)
			assert.Empty(t, d.Meta)
		})
	}
}

func TestDecide_NeverAllowsWithoutActiveSubscription(t *testing.T) {
	statuses := []account.Status{account.StatusPending, account.StatusActive, account.StatusCanceled, account.StatusExpired}
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		in := Input{Authenticated: r.Intn(2) == 0, HasActiveHistorical: r.Intn(2) == 0}
		if r.Intn(3) > 0 {
			in.Current = sub(statuses[r.Intn(len(statuses))], time.Duration(r.Intn(96)-48)*time.Hour)
		}
		d := Decide(in, now)
		if !d.Allowed {
			continue
		}
		assert.True(t, in.Authenticated)
		if in.Current != nil {
			assert.True(t, in.Current.IsActive(now), "allowed with inactive current subscription: %+v", in.Current)
		} else {
			assert.True(t, in.HasActiveHistorical)
		}
	}
}

func TestReason_Message(t *testing.T) {
	for _, r := range []Reason{ReasonAuthRequired, ReasonSubscriptionMissing, ReasonSubscriptionInactive} {
		assert.NotEmpty(t, r.Message())
		assert.NotEqual(t, "Access denied.", r.Message())
	}
	assert.Equal(t, "Access denied.", Reason("unknown").Message())
}
