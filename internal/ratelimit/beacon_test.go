// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestBeaconLimiter_PerKeyBurst(t *testing.T) {
	l := NewBeaconLimiter(BeaconConfig{
		GlobalRate: 1000, GlobalBurst: 1000,
		PerKeyRate: rate.Every(time.Hour), PerKeyBurst: 3,
		CleanupInterval: time.Hour,
	})
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("u1:dune"), "beacon %d", i)
	}
	assert.False(t, l.Allow("u1:dune"))
	assert.True(t, l.Allow("u1:alien"), "keys are independent")
}

func TestBeaconLimiter_GlobalCap(t *testing.T) {
	l := NewBeaconLimiter(BeaconConfig{
		GlobalRate: rate.Every(time.Hour), GlobalBurst: 2,
		PerKeyRate: 1000, PerKeyBurst: 1000,
		CleanupInterval: time.Hour,
	})
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("c"))
}

func TestBeaconLimiter_NoGlobalCapByDefault(t *testing.T) {
	l := NewBeaconLimiter(DefaultBeaconConfig())
	assert.Nil(t, l.global)
	for i := 0; i < 5000; i++ {
		assert.True(t, l.Allow(fmt.Sprintf("u%d:dune", i)))
	}
}

func TestBeaconLimiter_CleanupDropsIdleKeys(t *testing.T) {
	l := NewBeaconLimiter(DefaultBeaconConfig())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastCleanup = now

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Size())

	now = now.Add(10 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Size())
}

func TestBeaconLimiter_Middleware(t *testing.T) {
	l := NewBeaconLimiter(BeaconConfig{
		GlobalRate: 1000, GlobalBurst: 1000,
		PerKeyRate: rate.Every(time.Hour), PerKeyBurst: 1,
		CleanupInterval: time.Hour,
	})
	h := l.Middleware(func(*http.Request) string { return "k" })(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
