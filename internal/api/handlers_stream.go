// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/streamgate/internal/access"
	"github.com/ManuGH/streamgate/internal/auth"
	"github.com/ManuGH/streamgate/internal/catalog"
	xglog "github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
	"github.com/ManuGH/streamgate/internal/signing"
	"github.com/ManuGH/streamgate/internal/telemetry"
	"github.com/go-chi/chi/v5"
)

const (
	opIssue   = "issue"
	opRefresh = "refresh"

	// minLinkTTL is the shortest TTL a client may request.
	minLinkTTL = 60 * time.Second
)

type movieRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

func refOf(m catalog.Movie) movieRef {
	return movieRef{ID: m.ID, Title: m.Title, Slug: m.Slug}
}

// grantResponse is the refresh body.
type grantResponse struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
	ExpiresIn int64  `json:"expires_in"`
}

// streamLinkResponse is the issue body; meta is always present.
type streamLinkResponse struct {
	grantResponse
	Movie movieRef       `json:"movie"`
	Meta  map[string]any `json:"meta"`
}

// handleStreamLink: resolve movie, decide access, sign.
func (s *Server) handleStreamLink(w http.ResponseWriter, r *http.Request) {
	s.serveStreamLink(w, r, opIssue)
}

func (s *Server) handleRefreshStreamLink(w http.ResponseWriter, r *http.Request) {
	s.serveStreamLink(w, r, opRefresh)
}

func (s *Server) serveStreamLink(w http.ResponseWriter, r *http.Request, op string) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	logger := xglog.WithComponentFromContext(ctx, "api").With().
		Str(xglog.FieldSlug, slug).
		Str("op", op).
		Logger()

	movie, err := s.deps.Catalog.MovieBySlug(ctx, slug)
	if errors.Is(err, catalog.ErrNotFound) {
		metrics.RecordStreamLink(op, metrics.OutcomeNotFound)
		writeNotFound(w)
		return
	}
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "stream.lookup_failed").Msg("movie lookup failed")
		metrics.RecordStreamLink(op, metrics.OutcomeFailure)
		writeInternal(w)
		return
	}

	telemetry.Annotate(ctx, telemetry.MovieAttributes(movie.ID, movie.Slug)...)

	decision, err := s.decide(r)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "stream.subscription_lookup_failed").Msg("subscription lookup failed")
		metrics.RecordStreamLink(op, metrics.OutcomeFailure)
		writeInternal(w)
		return
	}
	telemetry.Annotate(ctx, telemetry.AccessAttributes(decision.Allowed, string(decision.Reason))...)
	if !decision.Allowed {
		logger.Info().
			Str(xglog.FieldEvent, "stream.denied").
			Str(xglog.FieldReason, string(decision.Reason)).
			Int64(xglog.FieldMovieID, movie.ID).
			Msg("playback denied")
		metrics.RecordDenial(string(decision.Reason))
		metrics.RecordStreamLink(op, metrics.OutcomeDenied)
		body := map[string]any{
			"error":  decision.Reason.Message(),
			"reason": decision.Reason,
		}
		if op == opIssue {
			body["meta"] = decision.Meta
		}
		writeJSON(w, http.StatusForbidden, body)
		return
	}

	started := time.Now()
	grant, err := s.deps.Signing.GenerateStreamingURL(ctx, movie, s.requestedTTL(r))
	switch {
	case errors.Is(err, signing.ErrNoVideoAsset):
		metrics.RecordStreamLink(op, metrics.OutcomeNotFound)
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no video available for this movie", "movie": refOf(movie)})
		return
	case errors.Is(err, signing.ErrNoStorageKey):
		logger.Warn().Int64(xglog.FieldMovieID, movie.ID).Str(xglog.FieldEvent, "stream.no_storage_key").Msg("video asset without storage key")
		metrics.RecordStreamLink(op, metrics.OutcomeNotFound)
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "video file is missing its storage key", "movie": refOf(movie)})
		return
	case err != nil:
		// The signing service already logged the backend cause.
		metrics.ObserveSigning(string(s.deps.Signing.Backend()), false, time.Since(started))
		metrics.RecordStreamLink(op, metrics.OutcomeFailure)
		body := map[string]string{"error": "could not issue a streaming link"}
		if op == opIssue {
			body["detail"] = "The video service is temporarily unavailable. Please try again later."
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	metrics.ObserveSigning(string(s.deps.Signing.Backend()), true, time.Since(started))
	metrics.RecordStreamLink(op, metrics.OutcomeIssued)

	logger.Info().
		Str(xglog.FieldEvent, "stream.issued").
		Int64(xglog.FieldMovieID, movie.ID).
		Int64(xglog.FieldExpiresAt, grant.ExpiresAt.Unix()).
		Str(xglog.FieldBackend, string(s.deps.Signing.Backend())).
		Msg("streaming link issued")

	bare := grantResponse{
		URL:       grant.URL,
		ExpiresAt: grant.ExpiresAt.Unix(),
		ExpiresIn: grant.ExpiresIn(),
	}
	if op == opRefresh {
		writeJSON(w, http.StatusOK, bare)
		return
	}
	meta := decision.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	writeJSON(w, http.StatusOK, streamLinkResponse{grantResponse: bare, Movie: refOf(movie), Meta: meta})
}

// decide gathers the caller's subscription state and runs the access decision.
func (s *Server) decide(r *http.Request) (access.Decision, error) {
	now := s.deps.Now()
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		return access.Decide(access.Input{}, now), nil
	}
	snap, err := s.deps.Accounts.Snapshot(r.Context(), p.UserID, now)
	if err != nil {
		return access.Decision{}, err
	}
	return access.Decide(access.FromSnapshot(snap), now), nil
}

// requestedTTL reads ?ttl= in seconds, clamped to [minLinkTTL, MaxTTL].
// Absent or malformed values select the default.
func (s *Server) requestedTTL(r *http.Request) time.Duration {
	raw := r.URL.Query().Get("ttl")
	if raw == "" {
		return 0
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	if secs > int64(s.deps.Signing.MaxTTL()/time.Second) {
		return s.deps.Signing.MaxTTL()
	}
	ttl := time.Duration(secs) * time.Second
	if ttl < minLinkTTL {
		return minLinkTTL
	}
	return ttl
}
