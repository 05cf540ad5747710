// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/streamgate/internal/auth"
	"github.com/ManuGH/streamgate/internal/catalog"
	xglog "github.com/ManuGH/streamgate/internal/log"
	"github.com/go-chi/chi/v5"
)

const maxBeaconBytes = 64 << 10

// progressBody accepts numbers or numeric strings. Anything else reads as 0.
type progressBody struct {
	Position json.RawMessage `json:"position_sec"`
	Duration json.RawMessage `json:"duration_sec"`
}

type progressResponse struct {
	PositionSec     int64 `json:"position_sec"`
	DurationSec     int64 `json:"duration_sec"`
	ProgressPercent int   `json:"progress_percent"`
	Finished        bool  `json:"finished"`
}

// lenientFloat decodes a JSON number or numeric string. Malformed input is 0.
func lenientFloat(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return n
}

func decodeProgress(r *http.Request) (position, duration float64) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBeaconBytes))
	if err != nil {
		return 0, 0
	}
	var body progressBody
	if err := json.Unmarshal(data, &body); err != nil {
		return 0, 0
	}
	return lenientFloat(body.Position), lenientFloat(body.Duration)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.PrincipalFromContext(ctx)
	logger := xglog.WithComponentFromContext(ctx, "api")

	movie, err := s.deps.Catalog.MovieBySlug(ctx, chi.URLParam(r, "slug"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "progress.lookup_failed").Msg("movie lookup failed")
		writeInternal(w)
		return
	}

	position, duration := decodeProgress(r)
	snap, _, err := s.deps.Progress.Report(ctx, p.UserID, movie.ID, position, duration)
	if err != nil {
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "progress.merge_failed").
			Int64(xglog.FieldMovieID, movie.ID).
			Msg("progress report failed")
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{
		PositionSec:     snap.LastPositionSeconds,
		DurationSec:     snap.DurationSeconds,
		ProgressPercent: snap.ProgressPercent,
		Finished:        snap.Finished,
	})
}
