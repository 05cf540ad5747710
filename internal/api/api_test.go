// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/streamgate/internal/account"
	"github.com/ManuGH/streamgate/internal/auth"
	"github.com/ManuGH/streamgate/internal/catalog"
	"github.com/ManuGH/streamgate/internal/health"
	"github.com/ManuGH/streamgate/internal/progress"
	"github.com/ManuGH/streamgate/internal/signing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "local-proxy-secret"
	proxyBase  = "https://media.example.test/stream"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type brokenSigner struct{}

func (brokenSigner) Sign(context.Context, string, time.Duration) (signing.Grant, error) {
	return signing.Grant{}, errors.New("dial tcp 10.0.0.7:443: connection refused (account key abc123)")
}

func (brokenSigner) Backend() signing.Backend { return signing.BackendAzure }

type fixture struct {
	t        *testing.T
	server   *Server
	catalog  *catalog.MemoryStore
	accounts *account.MemoryStore
	tokens   *auth.Tokens
	local    *signing.LocalSigner
}

type fixtureOpts struct {
	signer    signing.Signer
	rateLimit int
	origins   []string
	health    *health.Manager
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	ctx := context.Background()
	now := func() time.Time { return fixedNow }

	cat := catalog.NewMemoryStore()
	for _, m := range []catalog.Movie{
		{ID: 1, Slug: "night-train", Title: "Night Train", VideoStorageKey: catalog.StringPtr("films/night-train.mp4")},
		{ID: 2, Slug: "no-video", Title: "No Video"},
		{ID: 3, Slug: "blank-key", Title: "Blank Key", VideoStorageKey: catalog.StringPtr("  ")},
	} {
		_, err := cat.Insert(ctx, m)
		require.NoError(t, err)
	}

	accounts := account.NewMemoryStore()
	accounts.PutUser(account.User{ID: "u-active", Email: "active@example.test", IsActive: true})
	accounts.PutUser(account.User{ID: "u-none", Email: "none@example.test", IsActive: true})
	accounts.PutUser(account.User{ID: "u-expired", Email: "expired@example.test", IsActive: true})
	accounts.PutUser(account.User{ID: "u-disabled", Email: "disabled@example.test", IsActive: false})
	accounts.PutSubscription(account.Subscription{
		ID: "s-1", UserID: "u-active", Status: account.StatusActive, Current: true,
		StartDate: fixedNow.AddDate(0, -1, 0), EndDate: fixedNow.AddDate(0, 0, 10),
	})
	accounts.PutSubscription(account.Subscription{
		ID: "s-2", UserID: "u-expired", Status: account.StatusActive, Current: true,
		StartDate: fixedNow.AddDate(-1, 0, 0), EndDate: fixedNow.Add(-time.Hour),
	})

	local := signing.NewLocalSigner(testSecret, proxyBase).WithClock(now)
	signer := opts.signer
	if signer == nil {
		signer = local
	}
	tokens := auth.NewTokens("jwt-test-secret", "streamgate")

	srv := New(Deps{
		Catalog:         cat,
		Accounts:        accounts,
		Signing:         signing.NewService(signer, signing.Options{DefaultTTL: 15 * time.Minute, MaxTTL: 4 * time.Hour}),
		Progress:        progress.NewEngine(progress.NewMemoryStore(cat), progress.DefaultPolicy()).WithClock(now),
		Tokens:          tokens,
		StreamRateLimit: opts.rateLimit,
		AllowedOrigins:  opts.origins,
		Health:          opts.health,
		Now:             now,
	})
	return &fixture{t: t, server: srv, catalog: cat, accounts: accounts, tokens: tokens, local: local}
}

func (f *fixture) token(userID string) string {
	f.t.Helper()
	tok, err := f.tokens.Issue(userID, userID+"@example.test", time.Hour)
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) do(method, path, userID, body string) *httptest.ResponseRecorder {
	f.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(userID))
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestStreamLink_IssuesVerifiableLocalURL(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rec := f.do(http.MethodGet, "/movies/night-train/stream-link", "u-active", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)

	assert.EqualValues(t, fixedNow.Add(15*time.Minute).Unix(), body["expires_at"])
	assert.EqualValues(t, 900, body["expires_in"])
	require.Contains(t, body, "meta", "issue body always carries meta")
	assert.Equal(t, map[string]any{}, body["meta"])
	movie := body["movie"].(map[string]any)
	assert.Equal(t, "night-train", movie["slug"])
	assert.Equal(t, "Night Train", movie["title"])
	assert.EqualValues(t, 1, movie["id"])

	u, err := url.Parse(body["url"].(string))
	require.NoError(t, err)
	assert.Equal(t, "media.example.test", u.Host)
	path, err := f.local.VerifyQuery(u.Query(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "films/night-train.mp4", path)
}

func TestStreamLink_Denials(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	cases := []struct {
		name   string
		user   string
		reason string
		status int
	}{
		{"anonymous", "", "auth_required", http.StatusForbidden},
		{"unknown user is anonymous", "u-ghost", "auth_required", http.StatusForbidden},
		{"disabled user is anonymous", "u-disabled", "auth_required", http.StatusForbidden},
		{"no subscription", "u-none", "subscription_missing", http.StatusForbidden},
		{"expired subscription", "u-expired", "subscription_inactive", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/movies/night-train/stream-link", tc.user, "")
			require.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tc.reason, body["reason"])
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body, "url")

			rec = f.do(http.MethodPost, "/movies/night-train/stream-link/refresh", tc.user, "")
			require.Equal(t, tc.status, rec.Code)
			body = decode(t, rec)
			assert.Equal(t, tc.reason, body["reason"])
			assert.NotContains(t, body, "meta")
		})
	}
}

func TestStreamLink_NotFoundShapes(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rec := f.do(http.MethodGet, "/movies/does-not-exist/stream-link", "u-active", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "movie not found", decode(t, rec)["error"])

	noVideo := decode(t, f.do(http.MethodGet, "/movies/no-video/stream-link", "u-active", ""))
	blank := decode(t, f.do(http.MethodGet, "/movies/blank-key/stream-link", "u-active", ""))
	assert.NotEqual(t, noVideo["error"], blank["error"])
	assert.Equal(t, "no-video", noVideo["movie"].(map[string]any)["slug"])
	assert.Equal(t, "blank-key", blank["movie"].(map[string]any)["slug"])
	assert.NotContains(t, blank, "url")
}

func TestStreamLink_SigningFailureHidesCause(t *testing.T) {
	f := newFixture(t, fixtureOpts{signer: brokenSigner{}})

	rec := f.do(http.MethodGet, "/movies/night-train/stream-link", "u-active", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.NotContains(t, rec.Body.String(), "abc123")
	body := decode(t, rec)
	assert.NotEmpty(t, body["detail"])

	rec = f.do(http.MethodPost, "/movies/night-train/stream-link/refresh", "u-active", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body = decode(t, rec)
	assert.NotEmpty(t, body["error"])
	assert.NotContains(t, body, "detail")
}

func TestStreamLink_TTLOverrideIsClamped(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	cases := map[string]int64{
		"":                  900,
		"?ttl=120":          120,
		"?ttl=5":            60,
		"?ttl=abc":          900,
		"?ttl=-30":          900,
		"?ttl=999999999999": int64((4 * time.Hour).Seconds()),
	}
	for query, want := range cases {
		rec := f.do(http.MethodGet, "/movies/night-train/stream-link"+query, "u-active", "")
		require.Equal(t, http.StatusOK, rec.Code, query)
		assert.EqualValues(t, want, decode(t, rec)["expires_in"], query)
	}
}

func TestRefresh_ReturnsBareGrant(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rec := f.do(http.MethodPost, "/movies/night-train/stream-link/refresh", "u-active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body, "url")
	assert.Contains(t, body, "expires_at")
	assert.Contains(t, body, "expires_in")
	assert.NotContains(t, body, "movie")
	assert.NotContains(t, body, "meta")
}

func TestStreamLink_SharedRateLimit(t *testing.T) {
	f := newFixture(t, fixtureOpts{rateLimit: 3})

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/movies/night-train/stream-link", "u-active", "").Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/movies/night-train/stream-link/refresh", "u-active", "").Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/movies/night-train/stream-link", "u-active", "").Code)

	rec := f.do(http.MethodPost, "/movies/night-train/stream-link/refresh", "u-active", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another user has a separate budget.
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/movies/night-train/stream-link", "u-none", "").Code)
}

func TestProgress_FinishAndRewind(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	rec := f.do(http.MethodPost, "/movies/night-train/progress", "u-active", `{"position_sec": 270, "duration_sec": 300}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 270, body["position_sec"])
	assert.EqualValues(t, 300, body["duration_sec"])
	assert.EqualValues(t, 90, body["progress_percent"])
	assert.Equal(t, true, body["finished"])

	m, err := f.catalog.MovieByID(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, m.ViewCount)

	rec = f.do(http.MethodPost, "/movies/night-train/progress", "u-active", `{"position_sec": 10, "duration_sec": 300}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.EqualValues(t, 270, body["position_sec"])
	assert.EqualValues(t, 90, body["progress_percent"])
	assert.Equal(t, true, body["finished"])

	m, err = f.catalog.MovieByID(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, m.ViewCount)
}

func TestProgress_LenientBody(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantPos float64
		wantDur float64
	}{
		{"numeric strings", `{"position_sec": "30", "duration_sec": "120"}`, 30, 120},
		{"garbage fields", `{"position_sec": "abc", "duration_sec": true}`, 0, 0},
		{"negative", `{"position_sec": -5, "duration_sec": 100}`, 0, 100},
		{"not json", `position=12`, 0, 0},
		{"fractional", `{"position_sec": 12.9, "duration_sec": 100.2}`, 12, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, fixtureOpts{})
			rec := f.do(http.MethodPost, "/movies/night-train/progress", "u-active", tc.body)
			require.Equal(t, http.StatusOK, rec.Code)
			body := decode(t, rec)
			assert.EqualValues(t, tc.wantPos, body["position_sec"])
			assert.EqualValues(t, tc.wantDur, body["duration_sec"])
		})
	}
}

func TestProgress_ConcurrentFinishCountsOneView(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	bearer := "Bearer " + f.token("u-active")
	handler := f.server.Handler()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/movies/night-train/progress", strings.NewReader(`{"position_sec": 295, "duration_sec": 300}`))
			req.Header.Set("Authorization", bearer)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}()
	}
	wg.Wait()

	m, err := f.catalog.MovieByID(context.Background(), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, m.ViewCount)
}

func TestAuthenticatedRoutes_RequireToken(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/movies/night-train/progress"},
		{http.MethodPost, "/movies/night-train/like"},
		{http.MethodPost, "/movies/night-train/unlike"},
		{http.MethodGet, "/me/watched"},
		{http.MethodGet, "/subscription/status"},
	} {
		rec := f.do(tc.method, tc.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.NotEmpty(t, decode(t, rec)["error"], tc.path)
	}
}

func TestLikes_Idempotent(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	for i := 0; i < 2; i++ {
		rec := f.do(http.MethodPost, "/movies/night-train/like", "u-none", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "liked", decode(t, rec)["status"])
	}
	assert.Equal(t, 1, f.catalog.LikeCount(1))

	for i := 0; i < 2; i++ {
		rec := f.do(http.MethodPost, "/movies/night-train/unlike", "u-none", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "unliked", decode(t, rec)["status"])
	}
	assert.Equal(t, 0, f.catalog.LikeCount(1))

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/movies/missing/like", "u-none", "").Code)
}

func TestWatched_ListsRecordsWithMovies(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/movies/night-train/progress", "u-active", `{"position_sec": 100, "duration_sec": 300}`).Code)

	rec := f.do(http.MethodGet, "/me/watched", "u-active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	results := decode(t, rec)["results"].([]any)
	require.Len(t, results, 1)
	item := results[0].(map[string]any)
	assert.Equal(t, "night-train", item["movie"].(map[string]any)["slug"])
	assert.EqualValues(t, 33, item["progress_percent"])
	assert.Equal(t, false, item["finished"])
	assert.EqualValues(t, fixedNow.Unix(), item["updated_at"])

	rec = f.do(http.MethodGet, "/me/watched", "u-none", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["results"])
}

func TestSubscriptionStatus(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	body := decode(t, f.do(http.MethodGet, "/subscription/status", "u-active", ""))
	assert.Equal(t, true, body["has_subscription"])
	assert.Equal(t, true, body["is_active"])
	assert.Equal(t, "active", body["status"])
	assert.EqualValues(t, 10, body["days_remaining"])
	assert.Equal(t, true, body["can_watch_movies"])

	body = decode(t, f.do(http.MethodGet, "/subscription/status", "u-expired", ""))
	assert.Equal(t, true, body["has_subscription"])
	assert.Equal(t, false, body["is_active"])
	assert.EqualValues(t, 0, body["days_remaining"])
	assert.Equal(t, false, body["can_watch_movies"])

	body = decode(t, f.do(http.MethodGet, "/subscription/status", "u-none", ""))
	assert.Equal(t, false, body["has_subscription"])
	assert.Nil(t, body["end_date"])
	assert.Equal(t, false, body["can_watch_movies"])
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz", "", "").Code)

	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewPingChecker("database", func(context.Context) error { return errors.New("db gone") }))
	down := newFixture(t, fixtureOpts{health: hm})
	assert.Equal(t, http.StatusOK, down.do(http.MethodGet, "/healthz", "", "").Code)
	rec = down.do(http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db gone")
}

func TestMiddleware_RequestIDAndHeaders(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rec := f.do(http.MethodGet, "/healthz", "", "")
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "client-trace-1")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "client-trace-1", rec.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "bad id\twith spaces")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.NotEqual(t, "bad id\twith spaces", rec.Header().Get(HeaderRequestID))
}

func TestMiddleware_CORS(t *testing.T) {
	f := newFixture(t, fixtureOpts{origins: []string{"https://app.example.test"}})

	req := httptest.NewRequest(http.MethodOptions, "/movies/night-train/stream-link", nil)
	req.Header.Set("Origin", "https://app.example.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.test")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_WildcardNeverAllowsCredentials(t *testing.T) {
	h := CORS([]string{"*", "https://app.example.test"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/movies/night-train/stream-link", nil)
	req.Header.Set("Origin", "https://anywhere.example.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	req.Header.Set("Origin", "https://app.example.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRecoverer_ReturnsJSON500(t *testing.T) {
	h := RequestID(Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "internal server error", body["error"])
	assert.NotEmpty(t, body["requestId"])
}

func TestUnknownRoute_JSON404(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rec := f.do(http.MethodGet, "/nope", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode(t, rec)["error"])
}
