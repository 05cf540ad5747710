// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"fmt"
	"time"

	xglog "github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Observer receives the outcome of every successful report.
type Observer func(Outcome)

// Engine coerces beacons and hands them to the store.
type Engine struct {
	store    Store
	policy   Policy
	now      func() time.Time
	observer Observer
}

// NewEngine creates an engine over store.
func NewEngine(store Store, policy Policy) *Engine {
	return &Engine{store: store, policy: policy, now: time.Now}
}

// WithClock replaces the clock, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithObserver registers fn for outcomes, used for metrics.
func (e *Engine) WithObserver(fn Observer) *Engine {
	e.observer = fn
	return e
}

// Policy returns the active completion rules.
func (e *Engine) Policy() Policy { return e.policy }

// Report merges one beacon into the (userID, movieID) record.
// Malformed inputs are coerced to 0 rather than rejected.
func (e *Engine) Report(ctx context.Context, userID string, movieID int64, position, duration float64) (Snapshot, Outcome, error) {
	pos := CoerceSeconds(position)
	dur := CoerceSeconds(duration)
	sample := Sample{
		PositionSeconds: pos,
		DurationSeconds: dur,
		Percent:         Percent(pos, dur),
		At:              e.now().UTC(),
	}

	ctx, span := telemetry.Tracer("streamgate/progress").Start(ctx, "progress.report")
	defer span.End()
	span.SetAttributes(attribute.Int64(telemetry.MovieIDKey, movieID))

	snap, out, err := e.store.Merge(ctx, Key{UserID: userID, MovieID: movieID}, sample, e.policy)
	if err != nil {
		telemetry.Fail(span, err, "merge_failed")
		return Snapshot{}, Outcome{}, fmt.Errorf("merge progress: %w", err)
	}
	span.SetAttributes(telemetry.ProgressAttributes(snap.ProgressPercent, out.JustFinished, out.ViewCounted)...)

	if out.JustFinished {
		logger := xglog.WithComponentFromContext(ctx, "progress")
		logger.Info().
			Str(xglog.FieldEvent, "progress.finished").
			Int64(xglog.FieldMovieID, movieID).
			Int64(xglog.FieldPosition, snap.LastPositionSeconds).
			Int(xglog.FieldPercent, snap.ProgressPercent).
			Bool("view_counted", out.ViewCounted).
			Msg("watch record finished")
	}
	if e.observer != nil {
		e.observer(out)
	}
	return snap, out, nil
}

// Watched lists the user's watch records, most recent first.
func (e *Engine) Watched(ctx context.Context, userID string) ([]Snapshot, error) {
	return e.store.Watched(ctx, userID)
}
