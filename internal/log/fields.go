// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldMovieID   = "movie_id"
	FieldSlug      = "slug"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Signing fields
	FieldBackend   = "backend"
	FieldExpiresAt = "expires_at"
	FieldTTL       = "ttl"

	// Access fields
	FieldReason = "reason"

	// Progress fields
	FieldPosition = "position_sec"
	FieldDuration = "duration_sec"
	FieldPercent  = "progress_percent"

	// HTTP fields
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatencyMS = "duration_ms"
	FieldRemote    = "remote_addr"
)
