// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment variable read by the loader.
const EnvPrefix = "STREAMGATE_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	raw := l.envString(key, "")
	if raw == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Storage.Backend = strings.ToUpper(strings.TrimSpace(cfg.Storage.Backend))
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file on top of cfg with STRICT parsing.
// Unknown fields cause an error to prevent silent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.ListenAddr = l.envString("LISTEN", cfg.ListenAddr)
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("LOG_SERVICE", cfg.LogService)
	cfg.AllowedOrigins = l.envList("ALLOWED_ORIGINS", cfg.AllowedOrigins)

	cfg.DB.Driver = l.envString("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.Path = l.envString("DB_PATH", cfg.DB.Path)
	cfg.DB.DSN = l.envString("DB_DSN", cfg.DB.DSN)

	cfg.Redis.Addr = l.envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = l.envInt("REDIS_DB", cfg.Redis.DB)

	cfg.Auth.JWTSecret = l.envString("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = l.envString("JWT_ISSUER", cfg.Auth.Issuer)

	cfg.Storage.Backend = l.envString("STREAM_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Location = l.envString("STORAGE_LOCATION", cfg.Storage.Location)
	cfg.Storage.Azure.AccountName = l.envString("AZURE_ACCOUNT_NAME", cfg.Storage.Azure.AccountName)
	cfg.Storage.Azure.AccountKey = l.envString("AZURE_ACCOUNT_KEY", cfg.Storage.Azure.AccountKey)
	cfg.Storage.Azure.Container = l.envString("AZURE_MEDIA_CONTAINER", cfg.Storage.Azure.Container)
	cfg.Storage.Azure.BaseURL = l.envString("AZURE_BLOB_BASE_URL", cfg.Storage.Azure.BaseURL)
	cfg.Storage.S3.Bucket = l.envString("S3_BUCKET", cfg.Storage.S3.Bucket)
	cfg.Storage.S3.Region = l.envString("S3_REGION", cfg.Storage.S3.Region)
	cfg.Storage.S3.Endpoint = l.envString("S3_ENDPOINT", cfg.Storage.S3.Endpoint)
	cfg.Storage.S3.AccessKeyID = l.envString("S3_ACCESS_KEY_ID", cfg.Storage.S3.AccessKeyID)
	cfg.Storage.S3.SecretAccessKey = l.envString("S3_SECRET_ACCESS_KEY", cfg.Storage.S3.SecretAccessKey)
	cfg.Storage.S3.UsePathStyle = l.envBool("S3_USE_PATH_STYLE", cfg.Storage.S3.UsePathStyle)
	cfg.Storage.Local.Secret = l.envString("LOCAL_SIGNING_SECRET", cfg.Storage.Local.Secret)
	cfg.Storage.Local.ProxyBaseURL = l.envString("LOCAL_PROXY_BASE_URL", cfg.Storage.Local.ProxyBaseURL)

	cfg.Stream.TTL = l.envDuration("STREAM_URL_TTL", cfg.Stream.TTL)
	cfg.Stream.MaxTTL = l.envDuration("STREAM_URL_MAX_TTL", cfg.Stream.MaxTTL)
	cfg.Stream.SignTimeout = l.envDuration("STREAM_SIGN_TIMEOUT", cfg.Stream.SignTimeout)
	cfg.Stream.RateLimit = l.envInt("STREAM_RATE_LIMIT", cfg.Stream.RateLimit)
	cfg.Stream.RateWindow = l.envDuration("STREAM_RATE_WINDOW", cfg.Stream.RateWindow)

	cfg.Progress.FinishThreshold = l.envInt("FINISH_THRESHOLD", cfg.Progress.FinishThreshold)
	cfg.Progress.MinWatchSeconds = l.envInt("MIN_WATCH_SECONDS", cfg.Progress.MinWatchSeconds)
	cfg.Progress.BeaconRate = l.envFloat("BEACON_RATE", cfg.Progress.BeaconRate)
	cfg.Progress.BeaconBurst = l.envInt("BEACON_BURST", cfg.Progress.BeaconBurst)
	cfg.Progress.BeaconGlobalRate = l.envFloat("BEACON_GLOBAL_RATE", cfg.Progress.BeaconGlobalRate)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = l.envString("ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = l.envFloat("TRACE_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}
