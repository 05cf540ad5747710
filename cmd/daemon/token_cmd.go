// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ManuGH/streamgate/internal/auth"
	"github.com/ManuGH/streamgate/internal/config"
)

// runTokenCLI mints a bearer token for local testing. Session issuance in
// production belongs to the identity provider.
func runTokenCLI(args []string) int {
	fs := flag.NewFlagSet("streamgate token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var user, email, cfgFile string
	var ttl time.Duration
	fs.StringVar(&user, "user", "", "user ID (token subject)")
	fs.StringVar(&email, "email", "", "email claim")
	fs.StringVar(&cfgFile, "config", "", "path to YAML configuration file")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(user) == "" {
		fmt.Fprintln(os.Stderr, "Error: --user is required")
		return 2
	}

	cfg, err := config.NewLoader(strings.TrimSpace(cfgFile), version).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error:\n  %v\n", err)
		return 1
	}

	tok, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Issue(user, email, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Issue token: %v\n", err)
		return 1
	}
	fmt.Println(tok)
	return 0
}
