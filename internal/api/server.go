// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api is the HTTP surface of the playback core: stream links, progress
// beacons, likes and the caller's subscription state.
package api

import (
	"net/http"
	"time"

	"github.com/ManuGH/streamgate/internal/account"
	"github.com/ManuGH/streamgate/internal/auth"
	"github.com/ManuGH/streamgate/internal/catalog"
	"github.com/ManuGH/streamgate/internal/health"
	xglog "github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
	"github.com/ManuGH/streamgate/internal/progress"
	"github.com/ManuGH/streamgate/internal/ratelimit"
	"github.com/ManuGH/streamgate/internal/signing"
	"github.com/ManuGH/streamgate/internal/telemetry"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Catalog  catalog.Store
	Accounts account.Store
	Signing  *signing.Service
	Progress *progress.Engine
	Tokens   *auth.Tokens

	// StreamRateLimit requests per StreamRateWindow are shared by stream-link
	// and refresh.
	StreamRateLimit  int
	StreamRateWindow time.Duration
	// LimitCounter shares the stream budget across instances. Nil keeps it local.
	LimitCounter httprate.LimitCounter
	// Beacons throttles progress reports. Nil disables the throttle.
	Beacons *ratelimit.BeaconLimiter

	AllowedOrigins []string
	// Health serves /healthz and /readyz. Nil serves an empty manager.
	Health *health.Manager
	Now    func() time.Time
}

// Server serves the HTTP API.
type Server struct {
	deps   Deps
	router chi.Router
}

// New builds the router.
func New(deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}
	if deps.StreamRateLimit <= 0 {
		deps.StreamRateLimit = 200
	}
	if deps.StreamRateWindow <= 0 {
		deps.StreamRateWindow = time.Hour
	}
	s := &Server{deps: deps}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. RequestID (correlation early)
	r.Use(RequestID)
	// Server span; named after the chi route once routing completes
	r.Use(telemetry.Middleware())
	// 3. Logging and metrics see the final status of every request
	r.Use(xglog.Middleware())
	r.Use(metrics.Middleware())
	r.Use(SecurityHeaders)
	r.Use(CORS(s.deps.AllowedOrigins))
	r.Use(chimw.StripSlashes)
	// 4. Identity; anonymous requests continue without a principal
	r.Use(auth.Authenticate(s.deps.Tokens, s.deps.Accounts))

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/movies/{slug}", func(r chi.Router) {
		// One limiter instance for both routes: they draw from one budget.
		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Stream(ratelimit.StreamConfig{
				RequestLimit: s.deps.StreamRateLimit,
				WindowSize:   s.deps.StreamRateWindow,
				Counter:      s.deps.LimitCounter,
			}))
			r.Get("/stream-link", s.handleStreamLink)
			r.Post("/stream-link/refresh", s.handleRefreshStreamLink)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			if s.deps.Beacons != nil {
				r.With(s.deps.Beacons.Middleware(beaconKey)).Post("/progress", s.handleProgress)
			} else {
				r.Post("/progress", s.handleProgress)
			}
			r.Post("/like", s.handleLike)
			r.Post("/unlike", s.handleUnlike)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/me/watched", s.handleWatched)
		r.Get("/subscription/status", s.handleSubscriptionStatus)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func beaconKey(r *http.Request) string {
	key := chi.URLParam(r, "slug")
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		return p.UserID + ":" + key
	}
	return ratelimit.ClientIP(r) + ":" + key
}
