// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package signing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/streamgate/internal/catalog"
	xglog "github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/resilience"
	"github.com/ManuGH/streamgate/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Options bound the lifetime of issued links and the time spent signing.
type Options struct {
	Prefix      string
	DefaultTTL  time.Duration
	MaxTTL      time.Duration
	SignTimeout time.Duration
	// Breaker, when set, short-circuits signing while the backend is failing.
	Breaker *resilience.CircuitBreaker
}

// Service resolves storage keys and signs them with the configured backend.
type Service struct {
	resolver Resolver
	signer   Signer
	opts     Options
}

// NewService wires signer behind the key resolver.
func NewService(signer Signer, opts Options) *Service {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 15 * time.Minute
	}
	if opts.MaxTTL < opts.DefaultTTL {
		opts.MaxTTL = opts.DefaultTTL
	}
	if opts.SignTimeout <= 0 {
		opts.SignTimeout = 5 * time.Second
	}
	return &Service{resolver: Resolver{Prefix: opts.Prefix}, signer: signer, opts: opts}
}

// Backend reports the active backend.
func (s *Service) Backend() Backend { return s.signer.Backend() }

// DefaultTTL is the TTL applied when callers pass ttl <= 0.
func (s *Service) DefaultTTL() time.Duration { return s.opts.DefaultTTL }

// MaxTTL is the upper bound on any requested TTL.
func (s *Service) MaxTTL() time.Duration { return s.opts.MaxTTL }

// GenerateStreamingURL resolves m's storage key and signs it. ttl <= 0 selects
// the default; larger values are capped at MaxTTL. There is no retry.
func (s *Service) GenerateStreamingURL(ctx context.Context, m catalog.Movie, ttl time.Duration) (Grant, error) {
	key, err := s.resolver.ResolveKey(m)
	if err != nil {
		return Grant{}, err
	}
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}
	if ttl > s.opts.MaxTTL {
		ttl = s.opts.MaxTTL
	}

	ctx, span := telemetry.Tracer("streamgate/signing").Start(ctx, "signing.generate",
		trace.WithAttributes(telemetry.SigningAttributes(string(s.signer.Backend()), int64(ttl/time.Second))...),
		trace.WithAttributes(telemetry.MovieAttributes(m.ID, m.Slug)...),
	)
	defer span.End()

	if s.opts.Breaker == nil {
		grant, err := s.sign(ctx, m.ID, key, ttl)
		if err != nil {
			telemetry.Fail(span, err, "signing_failure")
		}
		return grant, err
	}
	var grant Grant
	err = s.opts.Breaker.Execute(func() error {
		var signErr error
		grant, signErr = s.sign(ctx, m.ID, key, ttl)
		return signErr
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		telemetry.Fail(span, err, "circuit_open")
		logger := xglog.WithComponentFromContext(ctx, "signing")
		logger.Warn().
			Str(xglog.FieldEvent, "signing.circuit_open").
			Str(xglog.FieldBackend, string(s.signer.Backend())).
			Int64(xglog.FieldMovieID, m.ID).
			Msg("signing skipped while backend breaker is open")
		return Grant{}, fmt.Errorf("%w: %s backend unavailable", ErrSigningFailure, s.signer.Backend())
	}
	if err != nil {
		telemetry.Fail(span, err, "signing_failure")
	}
	return grant, err
}

// sign runs one bounded backend call. Every error it returns wraps
// ErrSigningFailure and carries no backend detail.
func (s *Service) sign(ctx context.Context, movieID int64, key string, ttl time.Duration) (Grant, error) {
	logger := xglog.WithComponentFromContext(ctx, "signing")

	signCtx, cancel := context.WithTimeout(ctx, s.opts.SignTimeout)
	defer cancel()

	type result struct {
		grant Grant
		err   error
	}
	done := make(chan result, 1)
	go func() {
		g, err := s.signer.Sign(signCtx, key, ttl)
		done <- result{g, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			logger.Error().Err(r.err).
				Str(xglog.FieldEvent, "signing.failed").
				Str(xglog.FieldBackend, string(s.signer.Backend())).
				Int64(xglog.FieldMovieID, movieID).
				Msg("backend signing failed")
			return Grant{}, fmt.Errorf("%w: %s backend error", ErrSigningFailure, s.signer.Backend())
		}
		logger.Debug().
			Str(xglog.FieldEvent, "signing.issued").
			Str(xglog.FieldBackend, string(s.signer.Backend())).
			Int64(xglog.FieldMovieID, movieID).
			Int64(xglog.FieldExpiresAt, r.grant.ExpiresAt.Unix()).
			Msg("streaming url issued")
		return r.grant, nil
	case <-signCtx.Done():
		logger.Error().Err(signCtx.Err()).
			Str(xglog.FieldEvent, "signing.timeout").
			Str(xglog.FieldBackend, string(s.signer.Backend())).
			Int64(xglog.FieldMovieID, movieID).
			Dur("timeout", s.opts.SignTimeout).
			Msg("backend signing timed out")
		return Grant{}, fmt.Errorf("%w: %s backend timeout", ErrSigningFailure, s.signer.Backend())
	}
}
