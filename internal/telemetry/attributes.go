// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by spans across packages.
const (
	MovieIDKey   = "movie.id"
	MovieSlugKey = "movie.slug"

	SigningBackendKey = "signing.backend"
	SigningTTLKey     = "signing.ttl_seconds"

	AccessAllowedKey = "access.allowed"
	AccessReasonKey  = "access.reason"

	ProgressPercentKey  = "progress.percent"
	ProgressFinishedKey = "progress.just_finished"
	ProgressViewKey     = "progress.view_counted"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// MovieAttributes identifies the movie a span works on. An empty slug is omitted.
func MovieAttributes(id int64, slug string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int64(MovieIDKey, id)}
	if slug != "" {
		attrs = append(attrs, attribute.String(MovieSlugKey, slug))
	}
	return attrs
}

// SigningAttributes describes one signing call.
func SigningAttributes(backend string, ttlSeconds int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SigningBackendKey, backend),
		attribute.Int64(SigningTTLKey, ttlSeconds),
	}
}

// AccessAttributes records an access decision. Reason is omitted on allow.
func AccessAttributes(allowed bool, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Bool(AccessAllowedKey, allowed)}
	if reason != "" {
		attrs = append(attrs, attribute.String(AccessReasonKey, reason))
	}
	return attrs
}

// ProgressAttributes records the result of one merged beacon.
func ProgressAttributes(percent int, justFinished, viewCounted bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ProgressPercentKey, percent),
		attribute.Bool(ProgressFinishedKey, justFinished),
		attribute.Bool(ProgressViewKey, viewCounted),
	}
}

// ErrorAttributes tags a span as failed without recording the error text.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// Annotate adds attrs to the span carried by ctx. No-op without one.
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// Fail marks span as errored and records err on it.
func Fail(span trace.Span, err error, errorType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, errorType)
	span.SetAttributes(ErrorAttributes(errorType)...)
}
