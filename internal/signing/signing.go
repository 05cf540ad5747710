// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package signing turns a movie's storage key into a short-lived playback URL.
//
// The backend is chosen once at startup. Every backend failure, including a
// timeout, surfaces as ErrSigningFailure; the cause is logged and never
// returned to clients.
package signing

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNoVideoAsset means the movie has no video attached.
	ErrNoVideoAsset = errors.New("movie has no video asset")
	// ErrNoStorageKey means the video reference carries no storage key.
	ErrNoStorageKey = errors.New("video asset has no storage key")
	// ErrSigningFailure wraps backend errors and timeouts.
	ErrSigningFailure = errors.New("signing failed")
	// ErrUnsupportedBackend is returned by New for an unknown backend name.
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
)

// Backend names a signing backend.
type Backend string

const (
	BackendAzure Backend = "AZURE"
	BackendS3    Backend = "S3"
	BackendLocal Backend = "LOCAL"
)

// ParseBackend normalizes name. The empty string selects AZURE.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToUpper(strings.TrimSpace(name))); b {
	case "":
		return BackendAzure, nil
	case BackendAzure, BackendS3, BackendLocal:
		return b, nil
	default:
		return "", ErrUnsupportedBackend
	}
}

// Grant is a signed URL and its absolute expiry. Grants are never persisted.
type Grant struct {
	URL       string
	ExpiresAt time.Time
	TTL       time.Duration
}

// ExpiresIn is the TTL in whole seconds.
func (g Grant) ExpiresIn() int64 {
	return int64(g.TTL / time.Second)
}

// Signer produces a read-only URL for key valid for ttl.
type Signer interface {
	Sign(ctx context.Context, key string, ttl time.Duration) (Grant, error)
	Backend() Backend
}

// Clock returns the current time. Signers read it once per call.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
