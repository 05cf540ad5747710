// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the resolved configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(cfg.ListenAddr) == "" {
		add("listen: must not be empty")
	}

	switch cfg.DB.Driver {
	case DriverSqlite:
		if strings.TrimSpace(cfg.DB.Path) == "" {
			add("db.path: required for sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			add("db.dsn: required for postgres driver")
		}
	case DriverMemory:
	default:
		add("db.driver: unsupported %q (supported: sqlite, postgres, memory)", cfg.DB.Driver)
	}

	switch cfg.Storage.Backend {
	case BackendAzure:
		az := cfg.Storage.Azure
		if az.AccountName == "" || az.AccountKey == "" {
			add("storage.azure: accountName and accountKey are required")
		}
		if az.Container == "" {
			add("storage.azure.container: must not be empty")
		}
		if az.BaseURL != "" {
			if _, err := url.ParseRequestURI(az.BaseURL); err != nil {
				add("storage.azure.baseURL: %v", err)
			}
		}
	case BackendS3:
		s3 := cfg.Storage.S3
		if s3.Bucket == "" {
			add("storage.s3.bucket: must not be empty")
		}
		if s3.Region == "" {
			add("storage.s3.region: must not be empty")
		}
		if (s3.AccessKeyID == "") != (s3.SecretAccessKey == "") {
			add("storage.s3: accessKeyID and secretAccessKey must be set together")
		}
	case BackendLocal:
		if len(cfg.Storage.Local.Secret) < 16 {
			add("storage.local.secret: must be at least 16 bytes")
		}
		if cfg.Storage.Local.ProxyBaseURL == "" {
			add("storage.local.proxyBaseURL: must not be empty")
		}
	default:
		add("storage.backend: unsupported %q (supported: AZURE, S3, LOCAL)", cfg.Storage.Backend)
	}

	if cfg.Stream.TTL <= 0 {
		add("stream.ttl: must be positive")
	}
	if cfg.Stream.MaxTTL < cfg.Stream.TTL {
		add("stream.maxTTL: must be >= stream.ttl")
	}
	if cfg.Stream.SignTimeout <= 0 {
		add("stream.signTimeout: must be positive")
	}
	if cfg.Stream.RateLimit <= 0 || cfg.Stream.RateWindow <= 0 {
		add("stream.rateLimit/rateWindow: must be positive")
	}

	if cfg.Progress.FinishThreshold < 1 || cfg.Progress.FinishThreshold > 100 {
		add("progress.finishThreshold: must be within 1..100, got %d", cfg.Progress.FinishThreshold)
	}
	if cfg.Progress.MinWatchSeconds < 0 {
		add("progress.minWatchSeconds: must not be negative")
	}
	if cfg.Progress.BeaconRate <= 0 || cfg.Progress.BeaconBurst < 1 {
		add("progress.beaconRate and progress.beaconBurst: must be positive")
	}
	if cfg.Progress.BeaconGlobalRate < 0 {
		add("progress.beaconGlobalRate: must not be negative (0 disables)")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			add("telemetry.exporter: unsupported %q (supported: grpc, http)", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint: required when telemetry is enabled")
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.samplingRate: must be within 0..1")
		}
	}

	if len(cfg.Auth.JWTSecret) > 0 && len(cfg.Auth.JWTSecret) < 32 {
		add("auth.jwtSecret: must be at least 32 bytes")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
