// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package signing

import (
	"strings"

	"github.com/ManuGH/streamgate/internal/catalog"
)

// Resolver maps a movie to the object key inside the storage backend.
type Resolver struct {
	// Prefix is the configured storage location, joined in front of every key.
	Prefix string
}

// ResolveKey returns the backend key for m.
func (r Resolver) ResolveKey(m catalog.Movie) (string, error) {
	if m.VideoStorageKey == nil {
		return "", ErrNoVideoAsset
	}
	key := strings.TrimSpace(*m.VideoStorageKey)
	if key == "" {
		return "", ErrNoStorageKey
	}
	prefix := strings.Trim(r.Prefix, "/")
	if prefix == "" || strings.HasPrefix(key, prefix+"/") {
		return key, nil
	}
	return prefix + "/" + strings.TrimLeft(key, "/"), nil
}
