// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ratelimit throttles stream-link issuance per user and progress
// beacons per (user, movie).
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/streamgate/internal/auth"
	xglog "github.com/ManuGH/streamgate/internal/log"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total rate limit rejections",
	},
	[]string{"limit"},
)

// StreamConfig is the shared budget for stream-link and refresh.
type StreamConfig struct {
	RequestLimit int
	WindowSize   time.Duration
	// Counter stores window counts. Nil keeps them in process memory.
	Counter httprate.LimitCounter
}

// KeyByPrincipal keys authenticated requests by user ID and anonymous ones by
// client IP.
func KeyByPrincipal(r *http.Request) (string, error) {
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		return "user:" + p.UserID, nil
	}
	return "ip:" + ClientIP(r), nil
}

// Stream returns the middleware enforcing cfg. Mount it once on a route
// group so that every route in the group draws from the same budget.
func Stream(cfg StreamConfig) func(http.Handler) http.Handler {
	opts := []httprate.Option{
		httprate.WithKeyFuncs(KeyByPrincipal),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			rateLimitExceeded.WithLabelValues("stream").Inc()
			writeTooMany(w, cfg.WindowSize)
		}),
		httprate.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			// Counter errors fail closed.
			logger := xglog.WithComponentFromContext(r.Context(), "ratelimit")
			logger.Error().Err(err).Str(xglog.FieldEvent, "ratelimit.counter_failed").Msg("rate limit counter unavailable")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"rate limiter unavailable"}`))
		}),
	}
	if cfg.Counter != nil {
		opts = append(opts, httprate.WithLimitCounter(cfg.Counter))
	}
	return httprate.Limit(cfg.RequestLimit, cfg.WindowSize, opts...)
}

func writeTooMany(w http.ResponseWriter, window time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`))
}

// ClientIP extracts the client address, honoring the first X-Forwarded-For
// hop and then X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
