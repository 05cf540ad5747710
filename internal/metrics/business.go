// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of the playback core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stream link outcomes.
const (
	OutcomeIssued   = "issued"
	OutcomeDenied   = "denied"
	OutcomeNotFound = "not_found"
	OutcomeFailure  = "failure"
)

var (
	streamLinksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_stream_links_total",
		Help: "Stream link requests by operation and outcome",
	}, []string{"op", "outcome"}) // op=issue|refresh

	accessDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_access_denials_total",
		Help: "Access decisions that denied playback, by reason",
	}, []string{"reason"})

	signingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamgate_signing_duration_seconds",
		Help:    "Time spent in the signing backend",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
	}, []string{"backend", "outcome"})

	progressReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_progress_reports_total",
		Help: "Progress beacons merged, by result",
	}, []string{"result"}) // result=updated|finished

	viewsCountedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_views_counted_total",
		Help: "Views credited by a finished watch record",
	})

	likesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_likes_total",
		Help: "Like and unlike calls",
	}, []string{"action"})
)

// RecordStreamLink counts one stream link request.
func RecordStreamLink(op, outcome string) {
	streamLinksTotal.WithLabelValues(op, outcome).Inc()
}

// RecordDenial counts one access denial.
func RecordDenial(reason string) {
	accessDenialsTotal.WithLabelValues(reason).Inc()
}

// ObserveSigning records the time spent signing.
func ObserveSigning(backend string, ok bool, d time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	signingDuration.WithLabelValues(backend, outcome).Observe(d.Seconds())
}

// RecordProgress counts a merged beacon and the view it may have credited.
func RecordProgress(justFinished, viewCounted bool) {
	if justFinished {
		progressReportsTotal.WithLabelValues("finished").Inc()
	} else {
		progressReportsTotal.WithLabelValues("updated").Inc()
	}
	if viewCounted {
		viewsCountedTotal.Inc()
	}
}

// RecordLike counts a like or unlike call.
func RecordLike(action string) {
	likesTotal.WithLabelValues(action).Inc()
}
