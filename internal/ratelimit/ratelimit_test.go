// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ManuGH/streamgate/internal/auth"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamRouter(counter httprate.LimitCounter, limit int) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-Test-User"); id != "" {
				req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: id}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(Stream(StreamConfig{RequestLimit: limit, WindowSize: time.Hour, Counter: counter}))
		ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
		r.Get("/movies/{slug}/stream-link", ok)
		r.Post("/movies/{slug}/stream-link/refresh", ok)
	})
	return r
}

func do(h http.Handler, method, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertSharedBudget(t *testing.T, h http.Handler) {
	t.Helper()
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/movies/a/stream-link", "u1").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/movies/a/stream-link/refresh", "u1").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/movies/b/stream-link", "u1").Code)

	rec := do(h, http.MethodPost, "/movies/a/stream-link/refresh", "u1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate_limit_exceeded","detail":"Too many requests. Please try again later."}`, rec.Body.String())

	// Another user has an independent budget.
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/movies/a/stream-link", "u2").Code)
	// Anonymous callers are keyed by IP.
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/movies/a/stream-link", "").Code)
}

func TestStream_SharedBudgetInMemory(t *testing.T) {
	assertSharedBudget(t, streamRouter(nil, 3))
}

func TestStream_SharedBudgetRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	counter := NewRedisCounterFromClient(client)
	t.Cleanup(func() { _ = counter.Close() })

	assertSharedBudget(t, streamRouter(counter, 3))

	keys := mr.Keys()
	require.NotEmpty(t, keys)
	for _, k := range keys {
		assert.Contains(t, k, "streamgate:ratelimit:")
		assert.Greater(t, mr.TTL(k), time.Duration(0))
	}
}

func TestStream_RedisOutageFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	counter := NewRedisCounterFromClient(client)
	t.Cleanup(func() { _ = counter.Close() })
	h := streamRouter(counter, 3)

	mr.Close()
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodGet, "/movies/a/stream-link", "u1").Code)
}

func TestRedisCounter_WindowCounts(t *testing.T) {
	mr := miniredis.RunT(t)
	counter := NewRedisCounterFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = counter.Close() })
	counter.Config(10, time.Minute)
	require.NoError(t, counter.Ping(context.Background()))

	prev := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cur := prev.Add(time.Minute)

	require.NoError(t, counter.IncrementBy("k", prev, 4))
	require.NoError(t, counter.Increment("k", cur))
	require.NoError(t, counter.Increment("k", cur))

	c, p, err := counter.Get("k", cur, prev)
	require.NoError(t, err)
	assert.Equal(t, 2, c)
	assert.Equal(t, 4, p)

	c, p, err = counter.Get("other", cur, prev)
	require.NoError(t, err)
	assert.Zero(t, c)
	assert.Zero(t, p)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:1234", "10.0.0.1"},
		{"remote without port", nil, "10.0.0.1", "10.0.0.1"},
		{"forwarded for first hop", map[string]string{"X-Forwarded-For": " 1.2.3.4 , 10.0.0.2"}, "10.0.0.1:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "10.0.0.1:1", "5.6.7.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
