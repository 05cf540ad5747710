// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BeaconConfig bounds progress beacons with token buckets.
type BeaconConfig struct {
	// Global caps all beacons of this instance together. 0 disables it.
	GlobalRate  rate.Limit
	GlobalBurst int
	// PerKey caps one client key.
	PerKeyRate  rate.Limit
	PerKeyBurst int
	// CleanupInterval drops idle per-key buckets.
	CleanupInterval time.Duration
}

// DefaultBeaconConfig allows a beacon every two seconds per key with room for
// a burst from several open tabs. There is no global cap.
func DefaultBeaconConfig() BeaconConfig {
	return BeaconConfig{
		PerKeyRate:      0.5,
		PerKeyBurst:     10,
		CleanupInterval: 5 * time.Minute,
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// BeaconLimiter keeps a token bucket per key plus a global bucket.
type BeaconLimiter struct {
	cfg    BeaconConfig
	global *rate.Limiter

	mu          sync.Mutex
	perKey      map[string]*bucket
	lastCleanup time.Time
	now         func() time.Time
}

// NewBeaconLimiter creates a limiter for cfg.
func NewBeaconLimiter(cfg BeaconConfig) *BeaconLimiter {
	var global *rate.Limiter
	if cfg.GlobalRate > 0 {
		global = rate.NewLimiter(cfg.GlobalRate, max(cfg.GlobalBurst, 1))
	}
	return &BeaconLimiter{
		cfg:         cfg,
		global:      global,
		perKey:      make(map[string]*bucket),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow reports whether a beacon for key may proceed.
func (l *BeaconLimiter) Allow(key string) bool {
	if l.global != nil && !l.global.Allow() {
		rateLimitExceeded.WithLabelValues("beacon_global").Inc()
		return false
	}
	if !l.bucketFor(key).Allow() {
		rateLimitExceeded.WithLabelValues("beacon").Inc()
		return false
	}
	return true
}

// Size returns the number of tracked keys.
func (l *BeaconLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perKey)
}

func (l *BeaconLimiter) bucketFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) >= l.cfg.CleanupInterval {
		for k, b := range l.perKey {
			if now.Sub(b.lastSeen) >= l.cfg.CleanupInterval {
				delete(l.perKey, k)
			}
		}
		l.lastCleanup = now
	}

	b, ok := l.perKey[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.cfg.PerKeyRate, l.cfg.PerKeyBurst)}
		l.perKey[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Middleware rejects beacons over budget with 429. keyFunc usually combines
// the principal with the movie slug.
func (l *BeaconLimiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(keyFunc(r)) {
				writeTooMany(w, time.Second)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
