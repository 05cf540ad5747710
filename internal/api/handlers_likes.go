// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/streamgate/internal/auth"
	"github.com/ManuGH/streamgate/internal/catalog"
	xglog "github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.setLike(w, r, true)
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	s.setLike(w, r, false)
}

// setLike is idempotent in both directions.
func (s *Server) setLike(w http.ResponseWriter, r *http.Request, liked bool) {
	ctx := r.Context()
	p := auth.PrincipalFromContext(ctx)

	movie, err := s.deps.Catalog.MovieBySlug(ctx, chi.URLParam(r, "slug"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err == nil {
		if liked {
			err = s.deps.Catalog.Like(ctx, p.UserID, movie.ID)
		} else {
			err = s.deps.Catalog.Unlike(ctx, p.UserID, movie.ID)
		}
	}
	if err != nil {
		logger := xglog.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Str(xglog.FieldEvent, "like.failed").Msg("like update failed")
		writeInternal(w)
		return
	}

	status := "unliked"
	if liked {
		status = "liked"
	}
	metrics.RecordLike(status)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
