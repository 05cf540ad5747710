// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/streamgate/internal/config"
	"gopkg.in/yaml.v3"
)

const redacted = "***"

func runConfigCLI(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage()
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:])
	case "dump":
		return runConfigDump(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage()
		return 2
	}
}

func printConfigUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  streamgate config validate [--file|-f config.yaml]")
	fmt.Fprintln(os.Stderr, "  streamgate config dump [--file|-f config.yaml] [--format=yaml|json]")
}

// resolveDefaultConfigPath returns ${STREAMGATE_DATA}/config.yaml when it exists.
func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(os.Getenv(config.EnvPrefix + "DATA"))
	if dataDir == "" {
		return ""
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func configFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	file := new(string)
	fs.StringVar(file, "file", "", "path to YAML configuration file")
	fs.StringVar(file, "f", "", "path to YAML configuration file (shorthand)")
	return fs, file
}

func runConfigValidate(args []string) int {
	fs, file := configFlags("streamgate config validate")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(*file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	if _, err := config.NewLoader(configPath, version).Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error in %s:\n  %v\n", describePath(configPath), err)
		return 1
	}
	fmt.Printf("%s is valid\n", describePath(configPath))
	return 0
}

func runConfigDump(args []string) int {
	fs, file := configFlags("streamgate config dump")
	var format string
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(*file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	cfg, err := config.NewLoader(configPath, version).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error in %s:\n  %v\n", describePath(configPath), err)
		return 1
	}
	if err := dumpConfig(os.Stdout, redactSecrets(cfg), format); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return 0
}

func dumpConfig(w io.Writer, cfg config.AppConfig, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (use yaml or json)", format)
	}
}

func describePath(p string) string {
	if p == "" {
		return "environment configuration"
	}
	return p
}

// redactSecrets masks every credential before the config leaves the process.
func redactSecrets(cfg config.AppConfig) config.AppConfig {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&cfg.Auth.JWTSecret)
	mask(&cfg.Redis.Password)
	mask(&cfg.Storage.Azure.AccountKey)
	mask(&cfg.Storage.S3.SecretAccessKey)
	mask(&cfg.Storage.Local.Secret)
	if cfg.DB.DSN != "" {
		cfg.DB.DSN = maskURL(cfg.DB.DSN)
	}
	return cfg
}
