// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/streamgate/internal/access"
	"github.com/ManuGH/streamgate/internal/auth"
	"github.com/ManuGH/streamgate/internal/catalog"
	xglog "github.com/ManuGH/streamgate/internal/log"
)

type watchedMovie struct {
	ID    int64  `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

type watchedItem struct {
	Movie           watchedMovie `json:"movie"`
	PositionSec     int64        `json:"position_sec"`
	DurationSec     int64        `json:"duration_sec"`
	ProgressPercent int          `json:"progress_percent"`
	Finished        bool         `json:"finished"`
	UpdatedAt       int64        `json:"updated_at"`
}

type subscriptionStatus struct {
	HasSubscription bool   `json:"has_subscription"`
	IsActive        bool   `json:"is_active"`
	Status          string `json:"status,omitempty"`
	EndDate         *int64 `json:"end_date"`
	DaysRemaining   int    `json:"days_remaining"`
	CanWatchMovies  bool   `json:"can_watch_movies"`
}

// handleWatched lists the caller's watch records, most recent first.
func (s *Server) handleWatched(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.PrincipalFromContext(ctx)
	logger := xglog.WithComponentFromContext(ctx, "api")

	records, err := s.deps.Progress.Watched(ctx, p.UserID)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "watched.failed").Msg("listing watch records failed")
		writeInternal(w)
		return
	}

	results := make([]watchedItem, 0, len(records))
	for _, rec := range records {
		movie, err := s.deps.Catalog.MovieByID(ctx, rec.MovieID)
		if errors.Is(err, catalog.ErrNotFound) {
			// Movie removed from the catalog after it was watched.
			continue
		}
		if err != nil {
			logger.Error().Err(err).Int64(xglog.FieldMovieID, rec.MovieID).Msg("movie lookup failed")
			writeInternal(w)
			return
		}
		results = append(results, watchedItem{
			Movie:           watchedMovie{ID: movie.ID, Slug: movie.Slug, Title: movie.Title},
			PositionSec:     rec.LastPositionSeconds,
			DurationSec:     rec.DurationSeconds,
			ProgressPercent: rec.ProgressPercent,
			Finished:        rec.Finished,
			UpdatedAt:       rec.UpdatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.PrincipalFromContext(ctx)
	now := s.deps.Now()

	snap, err := s.deps.Accounts.Snapshot(ctx, p.UserID, now)
	if err != nil {
		logger := xglog.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Str(xglog.FieldEvent, "subscription.lookup_failed").Msg("subscription lookup failed")
		writeInternal(w)
		return
	}

	decision := access.Decide(access.FromSnapshot(snap), now)
	resp := subscriptionStatus{CanWatchMovies: decision.Allowed}
	if sub := snap.Current; sub != nil {
		end := sub.EndDate.Unix()
		resp.HasSubscription = true
		resp.IsActive = sub.IsActive(now)
		resp.Status = string(sub.Status)
		resp.EndDate = &end
		resp.DaysRemaining = sub.DaysRemaining(now)
	}
	writeJSON(w, http.StatusOK, resp)
}
