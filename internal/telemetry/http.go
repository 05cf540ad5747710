// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

type routeKey struct{}

// routeHolder carries the matched chi pattern out of the routed handler.
type routeHolder struct {
	pattern string
}

// Middleware opens a server span per request and names it after the matched
// chi route, so slugs never end up in span names.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		named := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			rctx := chi.RouteContext(r.Context())
			if rctx == nil {
				return
			}
			pattern := rctx.RoutePattern()
			if pattern == "" {
				return
			}
			if h, ok := r.Context().Value(routeKey{}).(*routeHolder); ok {
				h.pattern = pattern
			}
			span := trace.SpanFromContext(r.Context())
			span.SetName(spanName("", r))
			span.SetAttributes(semconv.HTTPRoute(pattern))
		})
		traced := otelhttp.NewHandler(
			named,
			ServiceName,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithSpanOptions(trace.WithAttributes(semconv.ServiceName(ServiceName))),
			otelhttp.WithFilter(shouldTrace),
			otelhttp.WithSpanNameFormatter(spanName),
		)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), routeKey{}, &routeHolder{})
			traced.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// spanName is "METHOD /route/{pattern}" once routing has matched and
// "HTTP METHOD" before that. otelhttp may call it again when the span ends.
func spanName(_ string, r *http.Request) string {
	if h, ok := r.Context().Value(routeKey{}).(*routeHolder); ok && h.pattern != "" {
		return r.Method + " " + h.pattern
	}
	return "HTTP " + r.Method
}

// shouldTrace skips probe and scrape endpoints.
func shouldTrace(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return false
	}
	return true
}

// TraceIDs returns the active trace and span IDs, or empty strings.
func TraceIDs(r *http.Request) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(r.Context())
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
