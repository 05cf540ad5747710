// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercent_RoundsHalfToEven(t *testing.T) {
	tests := []struct {
		pos, dur int64
		want     int
	}{
		{0, 0, 0},
		{120, 0, 0},
		{0, 300, 0},
		{270, 300, 90},
		{1, 8, 12},      // 12.5
		{3, 8, 38},      // 37.5
		{5, 8, 62},      // 62.5
		{1, 3, 33},      // 33.33
		{2, 3, 67},      // 66.67
		{199, 200, 100}, // 99.5 reaches 100 before the end
		{397, 400, 99},  // 99.25
		{400, 300, 100}, // capped
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.pos, tt.dur), "Percent(%d, %d)", tt.pos, tt.dur)
	}
}

func TestCoerceSeconds(t *testing.T) {
	assert.Equal(t, int64(0), CoerceSeconds(-5))
	assert.Equal(t, int64(0), CoerceSeconds(math.NaN()))
	assert.Equal(t, int64(0), CoerceSeconds(math.Inf(1)))
	assert.Equal(t, int64(0), CoerceSeconds(math.Inf(-1)))
	assert.Equal(t, int64(12), CoerceSeconds(12.9))
	assert.Equal(t, int64(300), CoerceSeconds(300))
}

func TestMerge_FinishOnMergedPercent(t *testing.T) {
	p := DefaultPolicy()
	prev := Snapshot{LastPositionSeconds: 100, DurationSeconds: 300, ProgressPercent: 33}

	next, out := merge(prev, Sample{PositionSeconds: 280, DurationSeconds: 300, Percent: 93}, p)
	assert.True(t, next.Finished)
	assert.True(t, out.JustFinished)
	assert.True(t, out.ViewCounted)

	again, out := merge(next, Sample{PositionSeconds: 300, DurationSeconds: 300, Percent: 100}, p)
	assert.True(t, again.Finished)
	assert.False(t, out.JustFinished)
	assert.False(t, out.ViewCounted)
}

func TestMerge_ShortWatchFinishesWithoutView(t *testing.T) {
	next, out := merge(Snapshot{}, Sample{PositionSeconds: 45, DurationSeconds: 50, Percent: 90}, DefaultPolicy())
	assert.True(t, next.Finished)
	assert.True(t, out.JustFinished)
	assert.False(t, out.ViewCounted)
}
