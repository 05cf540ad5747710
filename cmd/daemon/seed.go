// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/streamgate/internal/account"
	"github.com/ManuGH/streamgate/internal/catalog"
	"github.com/ManuGH/streamgate/internal/config"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML fixture format for users, subscriptions and movies.
type seedFile struct {
	Users []struct {
		ID     string `yaml:"id"`
		Email  string `yaml:"email"`
		Active *bool  `yaml:"active"`
	} `yaml:"users"`
	Subscriptions []struct {
		ID        string    `yaml:"id"`
		User      string    `yaml:"user"`
		Status    string    `yaml:"status"`
		Start     time.Time `yaml:"start"`
		End       time.Time `yaml:"end"`
		AutoRenew bool      `yaml:"autoRenew"`
		Current   bool      `yaml:"current"`
	} `yaml:"subscriptions"`
	Movies []struct {
		Slug  string `yaml:"slug"`
		Title string `yaml:"title"`
		// StorageKey absent means no video asset.
		StorageKey *string `yaml:"storageKey"`
	} `yaml:"movies"`
}

func parseSeed(data []byte) (seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return seedFile{}, fmt.Errorf("parse seed: %w", err)
	}
	return f, nil
}

// applySeed writes f into st. Movies whose slug already exists are skipped.
func applySeed(ctx context.Context, f seedFile, st *stores, now time.Time) (int, error) {
	n := 0
	for _, u := range f.Users {
		if u.ID == "" || u.Email == "" {
			return n, errors.New("user: id and email are required")
		}
		active := u.Active == nil || *u.Active
		if err := st.accounts.PutUser(ctx, account.User{ID: u.ID, Email: u.Email, IsActive: active}, now); err != nil {
			return n, fmt.Errorf("user %s: %w", u.ID, err)
		}
		n++
	}
	for _, s := range f.Subscriptions {
		status := account.Status(strings.ToLower(s.Status))
		if !status.Valid() {
			return n, fmt.Errorf("subscription %s: invalid status %q", s.ID, s.Status)
		}
		sub := account.Subscription{
			ID:        s.ID,
			UserID:    s.User,
			Status:    status,
			StartDate: s.Start.UTC(),
			EndDate:   s.End.UTC(),
			AutoRenew: s.AutoRenew,
			Current:   s.Current,
		}
		if err := st.accounts.PutSubscription(ctx, sub); err != nil {
			return n, fmt.Errorf("subscription %s: %w", s.ID, err)
		}
		n++
	}
	for _, m := range f.Movies {
		_, err := st.Catalog.MovieBySlug(ctx, m.Slug)
		if err == nil {
			continue
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return n, fmt.Errorf("movie %s: %w", m.Slug, err)
		}
		if _, err := st.movies.Insert(ctx, catalog.Movie{Slug: m.Slug, Title: m.Title, VideoStorageKey: m.StorageKey}); err != nil {
			return n, fmt.Errorf("movie %s: %w", m.Slug, err)
		}
		n++
	}
	return n, nil
}

func applySeedFile(ctx context.Context, path string, st *stores, now time.Time) (int, error) {
	// #nosec G304 -- seed file paths are provided by the operator via CLI
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, err
	}
	f, err := parseSeed(data)
	if err != nil {
		return 0, err
	}
	return applySeed(ctx, f, st, now)
}

func runSeedCLI(args []string) int {
	fs := flag.NewFlagSet("streamgate seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var file, cfgFile string
	fs.StringVar(&file, "file", "", "path to the YAML seed file")
	fs.StringVar(&cfgFile, "config", "", "path to YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if file == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		return 2
	}

	cfg, err := config.NewLoader(strings.TrimSpace(cfgFile), version).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error:\n  %v\n", err)
		return 1
	}
	if cfg.DB.Driver == config.DriverMemory {
		fmt.Fprintln(os.Stderr, "Error: seeding the memory driver has no lasting effect; use --seed when serving")
		return 2
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Open database: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	n, err := applySeedFile(ctx, file, st, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed failed after %d records: %v\n", n, err)
		return 1
	}
	fmt.Printf("Seeded %d records into %s\n", n, cfg.DB.Driver)
	return 0
}
