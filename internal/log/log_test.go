// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test", Version: "v0"})
	t.Cleanup(func() { Configure(Config{}) })
	return &buf
}

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
	}{
		{name: "nil context", ctx: nil, id: "test-id-123"},
		{name: "background context", ctx: context.Background(), id: "req-456"},
		{name: "empty request ID", ctx: context.Background(), id: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.id)
			assert.Equal(t, tt.id, RequestIDFromContext(ctx))
		})
	}
}

func TestFromContextMissingValues(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(nil))
	assert.Empty(t, UserIDFromContext(context.Background()))
}

func TestWithComponentFromContext_AddsCorrelationFields(t *testing.T) {
	buf := captureLogs(t)

	ctx := ContextWithRequestID(context.Background(), "rid-1")
	ctx = ContextWithUserID(ctx, "user-7")
	logger := WithComponentFromContext(ctx, "signing")
	logger.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "signing", entry[FieldComponent])
	assert.Equal(t, "rid-1", entry[FieldRequestID])
	assert.Equal(t, "user-7", entry[FieldUserID])
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "v0", entry["version"])
}

func TestMiddleware_LogsStatusWithoutQuery(t *testing.T) {
	buf := captureLogs(t)

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	req := httptest.NewRequest(http.MethodGet, "/movies/dune/stream-link?token=secret", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/movies/dune/stream-link", entry[FieldPath])
	assert.EqualValues(t, http.StatusForbidden, entry[FieldStatus])
	assert.NotContains(t, buf.String(), "secret")
}
