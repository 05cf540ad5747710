// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Storage backend selectors.
const (
	BackendAzure = "AZURE"
	BackendS3    = "S3"
	BackendLocal = "LOCAL"
)

// Database drivers.
const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// AppConfig is the fully resolved daemon configuration.
type AppConfig struct {
	Version    string `yaml:"-"`
	ListenAddr string `yaml:"listen"`
	LogLevel   string `yaml:"logLevel"`
	LogService string `yaml:"logService"`
	// AllowedOrigins lists browser origins granted CORS access. "*" allows any.
	AllowedOrigins []string `yaml:"allowedOrigins"`

	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Stream    StreamConfig    `yaml:"stream"`
	Progress  ProgressConfig  `yaml:"progress"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DBConfig selects the persistence driver.
type DBConfig struct {
	Driver string `yaml:"driver"` // sqlite|postgres|memory
	Path   string `yaml:"path"`   // sqlite file path
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// RedisConfig enables the shared rate-limit counter when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
}

// StorageConfig selects the signing backend and carries its credentials.
type StorageConfig struct {
	Backend  string      `yaml:"backend"`  // AZURE|S3|LOCAL
	Location string      `yaml:"location"` // optional key prefix inside the container/bucket
	Azure    AzureConfig `yaml:"azure"`
	S3       S3Config    `yaml:"s3"`
	Local    LocalConfig `yaml:"local"`
}

type AzureConfig struct {
	AccountName string `yaml:"accountName"`
	AccountKey  string `yaml:"accountKey"`
	Container   string `yaml:"container"`
	BaseURL     string `yaml:"baseURL"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UsePathStyle    bool   `yaml:"usePathStyle"`
}

type LocalConfig struct {
	Secret       string `yaml:"secret"`
	ProxyBaseURL string `yaml:"proxyBaseURL"`
}

// StreamConfig bounds link issuance.
type StreamConfig struct {
	TTL         time.Duration `yaml:"ttl"`
	MaxTTL      time.Duration `yaml:"maxTTL"`
	SignTimeout time.Duration `yaml:"signTimeout"`
	RateLimit   int           `yaml:"rateLimit"`
	RateWindow  time.Duration `yaml:"rateWindow"`
}

// ProgressConfig holds the view-crediting policy.
type ProgressConfig struct {
	FinishThreshold int `yaml:"finishThreshold"` // percent
	MinWatchSeconds int `yaml:"minWatchSeconds"`

	// BeaconRate and BeaconBurst bound beacons per (user, movie).
	BeaconRate  float64 `yaml:"beaconRate"`
	BeaconBurst int     `yaml:"beaconBurst"`
	// BeaconGlobalRate caps beacons per second across all clients of one
	// instance. 0 disables the cap.
	BeaconGlobalRate float64 `yaml:"beaconGlobalRate"`
}

// TelemetryConfig controls OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc|http
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the configuration used when neither file nor ENV set a value.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr: ":8080",
		LogLevel:   "info",
		LogService: "streamgate",
		DB: DBConfig{
			Driver: DriverSqlite,
			Path:   "streamgate.sqlite",
		},
		Auth: AuthConfig{
			Issuer: "streamgate",
		},
		Storage: StorageConfig{
			Backend: BackendAzure,
			Azure: AzureConfig{
				Container: "media",
			},
			S3: S3Config{
				Region: "us-east-1",
			},
			Local: LocalConfig{
				ProxyBaseURL: "/media/stream",
			},
		},
		Stream: StreamConfig{
			TTL:         900 * time.Second,
			MaxTTL:      4 * time.Hour,
			SignTimeout: 5 * time.Second,
			RateLimit:   200,
			RateWindow:  time.Hour,
		},
		Progress: ProgressConfig{
			FinishThreshold: 90,
			MinWatchSeconds: 60,
			BeaconRate:      0.5,
			BeaconBurst:     10,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
	}
}
