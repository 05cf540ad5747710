// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package signing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"time"
)

var (
	// ErrSignatureMismatch means the token does not match path and exp.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrLinkExpired means exp lies in the past.
	ErrLinkExpired = errors.New("link expired")
	// ErrMalformedLink means a required query parameter is missing or invalid.
	ErrMalformedLink = errors.New("malformed link")
)

// LocalSigner issues links to the internal streaming proxy. The token is
// base64url (unpadded) HMAC-SHA256 over "{path}:{exp}".
type LocalSigner struct {
	secret    []byte
	proxyBase string
	now       Clock
}

// NewLocalSigner builds a signer for proxyBase using secret.
func NewLocalSigner(secret, proxyBase string) *LocalSigner {
	return &LocalSigner{secret: []byte(secret), proxyBase: proxyBase, now: utcNow}
}

// WithClock replaces the clock, for tests.
func (s *LocalSigner) WithClock(c Clock) *LocalSigner {
	s.now = c
	return s
}

func (s *LocalSigner) Backend() Backend { return BackendLocal }

func (s *LocalSigner) Sign(_ context.Context, key string, ttl time.Duration) (Grant, error) {
	exp := s.now().Add(ttl).Unix()

	q := url.Values{}
	q.Set("path", key)
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("token", s.token(key, exp))

	return Grant{
		URL:       s.proxyBase + "?" + q.Encode(),
		ExpiresAt: time.Unix(exp, 0).UTC(),
		TTL:       ttl,
	}, nil
}

// Verify checks a token presented to the proxy. The link is expired iff now > exp.
func (s *LocalSigner) Verify(path string, exp int64, token string, now time.Time) error {
	want := s.token(path, exp)
	if !hmac.Equal([]byte(want), []byte(token)) {
		return ErrSignatureMismatch
	}
	if now.Unix() > exp {
		return ErrLinkExpired
	}
	return nil
}

// VerifyQuery runs Verify on the parameters of an issued URL and returns the path.
func (s *LocalSigner) VerifyQuery(q url.Values, now time.Time) (string, error) {
	path, token := q.Get("path"), q.Get("token")
	exp, err := strconv.ParseInt(q.Get("exp"), 10, 64)
	if path == "" || token == "" || err != nil {
		return "", ErrMalformedLink
	}
	if err := s.Verify(path, exp, token, now); err != nil {
		return "", err
	}
	return path, nil
}

func (s *LocalSigner) token(path string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(path + ":" + strconv.FormatInt(exp, 10)))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
