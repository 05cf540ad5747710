// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package progress reconciles playback progress beacons into watch records.
//
// Position, duration and percent are ratchets: they never decrease. The
// finished flag flips false to true at most once per (user, movie), and that
// flip is the only point where a view may be credited.
package progress

import (
	"context"
	"math"
	"time"
)

// Key identifies one watch record.
type Key struct {
	UserID  string
	MovieID int64
}

// Sample is one coerced progress beacon.
type Sample struct {
	PositionSeconds int64
	DurationSeconds int64
	Percent         int
	At              time.Time
}

// Policy holds the completion rules.
type Policy struct {
	// FinishThreshold is the percent at or above which a record is finished.
	FinishThreshold int
	// MinWatchSeconds is the minimum stored position for the finish to count a view.
	MinWatchSeconds int64
}

// DefaultPolicy returns 90% and 60 seconds.
func DefaultPolicy() Policy {
	return Policy{FinishThreshold: 90, MinWatchSeconds: 60}
}

// Snapshot is the persisted state of a watch record.
type Snapshot struct {
	UserID              string
	MovieID             int64
	LastPositionSeconds int64
	DurationSeconds     int64
	ProgressPercent     int
	Finished            bool
	UpdatedAt           time.Time
}

// Outcome reports what a merge changed beyond the ratchets.
type Outcome struct {
	// JustFinished is true only on the report that flipped finished.
	JustFinished bool
	// ViewCounted is true when that flip credited a view.
	ViewCounted bool
}

// Store persists watch records. Merge must serialize callers per Key.
type Store interface {
	Merge(ctx context.Context, key Key, s Sample, p Policy) (Snapshot, Outcome, error)
	Get(ctx context.Context, key Key) (Snapshot, bool, error)
	// Watched lists a user's records, most recently updated first.
	Watched(ctx context.Context, userID string) ([]Snapshot, error)
}

// ViewCounter credits a view to a movie with an atomic increment.
type ViewCounter interface {
	IncrementViews(ctx context.Context, movieID int64) error
}

// CoerceSeconds truncates v to whole seconds. Negative, NaN and infinite
// values become 0.
func CoerceSeconds(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// Percent is round-half-to-even of position*100/duration, capped at 100.
// A zero duration yields 0.
func Percent(position, duration int64) int {
	if duration <= 0 || position <= 0 {
		return 0
	}
	p := math.RoundToEven(float64(position) * 100 / float64(duration))
	if p >= 100 {
		return 100
	}
	return int(p)
}

// merge applies a sample to prev. It is the in-process rendition of the SQL
// upsert used by SQLStore.
func merge(prev Snapshot, s Sample, p Policy) (Snapshot, Outcome) {
	next := prev
	next.LastPositionSeconds = max(prev.LastPositionSeconds, s.PositionSeconds)
	next.DurationSeconds = max(prev.DurationSeconds, s.DurationSeconds)
	next.ProgressPercent = max(prev.ProgressPercent, s.Percent)
	next.UpdatedAt = s.At

	var out Outcome
	if !prev.Finished && next.ProgressPercent >= p.FinishThreshold {
		next.Finished = true
		out.JustFinished = true
		out.ViewCounted = next.LastPositionSeconds >= p.MinWatchSeconds
	}
	return next, out
}
