// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"testing"

	"github.com/ManuGH/streamgate/internal/catalog"
	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/progress"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// counterValue reads a registered counter from the default registry.
func counterValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range fam.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestNewProgressEngine_RecordsViewMetric(t *testing.T) {
	ctx := context.Background()
	cat := catalog.NewMemoryStore()
	m, err := cat.Insert(ctx, catalog.Movie{Slug: "m", Title: "M"})
	require.NoError(t, err)

	e := newProgressEngine(progress.NewMemoryStore(cat), progress.DefaultPolicy())
	before := counterValue(t, "streamgate_views_counted_total")

	_, out, err := e.Report(ctx, "u", m.ID, 270, 300)
	require.NoError(t, err)
	require.True(t, out.ViewCounted)

	assert.Equal(t, before+1, counterValue(t, "streamgate_views_counted_total"))
}

func TestBeaconConfig(t *testing.T) {
	p := config.Defaults().Progress
	bc := beaconConfig(p)
	assert.Equal(t, rate.Limit(0), bc.GlobalRate, "no fleet cap unless configured")
	assert.Equal(t, rate.Limit(0.5), bc.PerKeyRate)
	assert.Equal(t, 10, bc.PerKeyBurst)

	p.BeaconGlobalRate = 50
	bc = beaconConfig(p)
	assert.Equal(t, rate.Limit(50), bc.GlobalRate)
	assert.Equal(t, 100, bc.GlobalBurst)
}
