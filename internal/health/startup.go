// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment before the server starts.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	if err := checkListenAddr(logger, cfg.ListenAddr); err != nil {
		return err
	}
	if cfg.DB.Driver == config.DriverSqlite {
		if err := checkDataDir(logger, filepath.Dir(cfg.DB.Path)); err != nil {
			return fmt.Errorf("database directory check failed: %w", err)
		}
	}
	checkRuntimeWarnings(logger, cfg)

	logger.Info().Msg("All startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("Listen address is valid")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("Database directory is writable")
	return nil
}

// checkRuntimeWarnings logs settings that are legal but rarely intended in production.
func checkRuntimeWarnings(logger zerolog.Logger, cfg config.AppConfig) {
	if cfg.DB.Driver == config.DriverMemory {
		logger.Warn().
			Str("db_driver", cfg.DB.Driver).
			Msg("in-memory store; watch records, likes and views are lost on restart")
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Warn().Msg("no JWT secret configured; every request is anonymous and playback is always denied")
	}
	if cfg.Storage.Backend == config.BackendLocal {
		if u, err := url.Parse(cfg.Storage.Local.ProxyBaseURL); err == nil && !u.IsAbs() {
			logger.Warn().
				Str("proxy_base_url", cfg.Storage.Local.ProxyBaseURL).
				Msg("local proxy base URL is relative; clients resolve it against the API origin")
		}
	}
	if cfg.Redis.Addr == "" {
		logger.Info().Msg("stream rate limits are per instance (no redis configured)")
	}
}
