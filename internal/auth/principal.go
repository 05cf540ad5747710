// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package auth resolves the caller identity from a bearer token.
//
// Session issuance lives elsewhere; this package only verifies HS256 tokens
// and carries the resulting Principal through the request context.
package auth

import "context"

// Principal represents the authenticated identity of a caller.
type Principal struct {
	// UserID is the token subject and the users table primary key.
	UserID string
	Email  string
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller, or nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
