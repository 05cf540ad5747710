// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/resilience"
)

const (
	breakerThreshold = 5
	breakerReset     = 30 * time.Second
)

// New builds the signer selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Signer, error) {
	backend, err := ParseBackend(cfg.Backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, cfg.Backend)
	}
	switch backend {
	case BackendS3:
		return NewS3Signer(ctx, S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
	case BackendLocal:
		return NewLocalSigner(cfg.Local.Secret, cfg.Local.ProxyBaseURL), nil
	default:
		return NewAzureSigner(AzureConfig{
			AccountName: cfg.Azure.AccountName,
			AccountKey:  cfg.Azure.AccountKey,
			Container:   cfg.Azure.Container,
			BaseURL:     cfg.Azure.BaseURL,
		})
	}
}

// NewFromConfig builds the Service described by cfg.
func NewFromConfig(ctx context.Context, cfg config.AppConfig) (*Service, error) {
	signer, err := New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return NewService(signer, Options{
		Prefix:      cfg.Storage.Location,
		DefaultTTL:  cfg.Stream.TTL,
		MaxTTL:      cfg.Stream.MaxTTL,
		SignTimeout: cfg.Stream.SignTimeout,
		Breaker:     resilience.NewCircuitBreaker("signing", breakerThreshold, breakerReset),
	}), nil
}
