// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/streamgate/internal/api"
	"github.com/ManuGH/streamgate/internal/auth"
	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/health"
	xglog "github.com/ManuGH/streamgate/internal/log"
	"github.com/ManuGH/streamgate/internal/metrics"
	"github.com/ManuGH/streamgate/internal/progress"
	"github.com/ManuGH/streamgate/internal/ratelimit"
	"github.com/ManuGH/streamgate/internal/signing"
	"github.com/ManuGH/streamgate/internal/telemetry"
	"github.com/go-chi/httprate"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownTimeout = 15 * time.Second

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "storage":
			os.Exit(runStorageCLI(os.Args[2:]))
		case "token":
			os.Exit(runTokenCLI(os.Args[2:]))
		case "seed":
			os.Exit(runSeedCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	seedPath := flag.String("seed", "", "apply a seed file before serving")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until config is loaded
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "streamgate",
		Version: version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectiveConfigPath := strings.TrimSpace(*configPath)
	if effectiveConfigPath == "" {
		effectiveConfigPath = resolveDefaultConfigPath()
	}

	// Precedence: ENV > File > Defaults
	cfg, err := config.NewLoader(effectiveConfigPath, version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})

	if effectiveConfigPath != "" {
		logger.Info().
			Str(xglog.FieldEvent, "config.loaded").
			Str("source", "file").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str(xglog.FieldEvent, "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
	}

	if err := run(ctx, cfg, *seedPath); err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "daemon.failed").
			Msg("daemon failed")
	}
	logger.Info().Msg("server exiting")
}

// run wires the stores, signer and HTTP server, then blocks until ctx ends.
func run(ctx context.Context, cfg config.AppConfig, seedPath string) error {
	logger := xglog.WithComponent("daemon")

	st, err := openStores(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing stores failed")
		}
	}()

	if seedPath != "" {
		n, err := applySeedFile(ctx, seedPath, st, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.Info().Str(xglog.FieldEvent, "seed.applied").Str("path", seedPath).Int("records", n).Msg("seed file applied")
	}

	signer, err := signing.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("signing: %w", err)
	}

	// Tracing must be installed before the router captures the provider.
	tp, err := telemetry.NewProvider(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("flushing traces failed")
		}
	}()
	if cfg.Telemetry.Enabled {
		logger.Info().
			Str("exporter", cfg.Telemetry.Exporter).
			Str("endpoint", cfg.Telemetry.Endpoint).
			Float64("sampling_rate", cfg.Telemetry.SamplingRate).
			Msg("→ Tracing: OTLP")
	}

	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewPingChecker("database", st.Ping))

	var counter httprate.LimitCounter
	if cfg.Redis.Addr != "" {
		rc, err := ratelimit.NewRedisCounter(ctx, ratelimit.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("redis rate limit counter: %w", err)
		}
		defer func() { _ = rc.Close() }()
		counter = rc
		hm.RegisterChecker(health.NewPingChecker("redis", rc.Ping).Optional())
		logger.Info().Str("addr", maskURL("redis://"+cfg.Redis.Addr)).Msg("→ Rate limit counter: redis")
	} else {
		logger.Info().Msg("→ Rate limit counter: in-process")
	}

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if !tokens.Enabled() {
		logger.Warn().
			Str("security", "weak").
			Msg("→ JWT secret: NOT configured. Every request is anonymous.")
	}

	policy := progress.Policy{
		FinishThreshold: cfg.Progress.FinishThreshold,
		MinWatchSeconds: int64(cfg.Progress.MinWatchSeconds),
	}

	engine := newProgressEngine(st.Progress, policy)

	srv := api.New(api.Deps{
		Catalog:          st.Catalog,
		Accounts:         st.Accounts,
		Signing:          signer,
		Progress:         engine,
		Tokens:           tokens,
		StreamRateLimit:  cfg.Stream.RateLimit,
		StreamRateWindow: cfg.Stream.RateWindow,
		LimitCounter:     counter,
		Beacons:          ratelimit.NewBeaconLimiter(beaconConfig(cfg.Progress)),
		AllowedOrigins:   cfg.AllowedOrigins,
		Health:           hm,
	})

	logger.Info().
		Str(xglog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Str(xglog.FieldBackend, string(signer.Backend())).
		Str("db_driver", cfg.DB.Driver).
		Msg("starting streamgate")

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str(xglog.FieldEvent, "shutdown.start").Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newProgressEngine reports every merge outcome to the progress metrics.
func newProgressEngine(store progress.Store, policy progress.Policy) *progress.Engine {
	return progress.NewEngine(store, policy).WithObserver(func(o progress.Outcome) {
		metrics.RecordProgress(o.JustFinished, o.ViewCounted)
	})
}

// beaconConfig sizes the progress beacon buckets from config.
func beaconConfig(p config.ProgressConfig) ratelimit.BeaconConfig {
	bc := ratelimit.DefaultBeaconConfig()
	bc.PerKeyRate = rate.Limit(p.BeaconRate)
	bc.PerKeyBurst = p.BeaconBurst
	if p.BeaconGlobalRate > 0 {
		bc.GlobalRate = rate.Limit(p.BeaconGlobalRate)
		bc.GlobalBurst = int(2 * p.BeaconGlobalRate)
	}
	return bc
}
