// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/streamgate/internal/account"
	xglog "github.com/ManuGH/streamgate/internal/log"
)

// UserLookup resolves a token subject to an account.
type UserLookup interface {
	User(ctx context.Context, id string) (account.User, error)
}

// Authenticate attaches a Principal when the request carries a valid token
// for an existing, active user. Anything else proceeds anonymously so that
// handlers can answer with their own denial shape.
func Authenticate(tokens *Tokens, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ExtractToken(r)
			if raw == "" || !tokens.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := xglog.WithComponentFromContext(ctx, "auth")

			p, err := tokens.Verify(raw)
			if err != nil {
				logger.Debug().Err(err).Str(xglog.FieldEvent, "auth.token_rejected").Msg("token rejected")
				next.ServeHTTP(w, r)
				return
			}

			u, err := users.User(ctx, p.UserID)
			switch {
			case errors.Is(err, account.ErrUserNotFound):
				logger.Debug().Str(xglog.FieldUserID, p.UserID).Str(xglog.FieldEvent, "auth.unknown_user").Msg("token subject has no account")
				next.ServeHTTP(w, r)
				return
			case err != nil:
				logger.Error().Err(err).Str(xglog.FieldEvent, "auth.lookup_failed").Msg("user lookup failed")
				next.ServeHTTP(w, r)
				return
			case !u.IsActive:
				logger.Debug().Str(xglog.FieldUserID, p.UserID).Str(xglog.FieldEvent, "auth.inactive_user").Msg("account disabled")
				next.ServeHTTP(w, r)
				return
			}

			p.Email = u.Email
			ctx = WithPrincipal(ctx, p)
			ctx = xglog.ContextWithUserID(ctx, p.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="streamgate"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
