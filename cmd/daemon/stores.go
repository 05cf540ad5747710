// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/streamgate/internal/account"
	"github.com/ManuGH/streamgate/internal/catalog"
	"github.com/ManuGH/streamgate/internal/config"
	"github.com/ManuGH/streamgate/internal/persistence"
	"github.com/ManuGH/streamgate/internal/persistence/postgres"
	"github.com/ManuGH/streamgate/internal/persistence/sqlite"
	"github.com/ManuGH/streamgate/internal/progress"
)

// movieWriter and accountWriter are the write paths the seed file needs.
type movieWriter interface {
	Insert(ctx context.Context, m catalog.Movie) (catalog.Movie, error)
}

type accountWriter interface {
	PutUser(ctx context.Context, u account.User, now time.Time) error
	PutSubscription(ctx context.Context, sub account.Subscription) error
}

// stores bundles the persistence backends selected by db.driver.
type stores struct {
	Catalog  catalog.Store
	Accounts account.Store
	Progress progress.Store

	movies   movieWriter
	accounts accountWriter
	db       *persistence.DB
}

func openStores(ctx context.Context, cfg config.DBConfig) (*stores, error) {
	var db *persistence.DB
	var err error
	switch cfg.Driver {
	case config.DriverMemory:
		cat := catalog.NewMemoryStore()
		acc := account.NewMemoryStore()
		return &stores{
			Catalog:  cat,
			Accounts: acc,
			Progress: progress.NewMemoryStore(cat),
			movies:   cat,
			accounts: memoryAccounts{acc},
		}, nil
	case config.DriverSqlite:
		db, err = sqlite.Open(cfg.Path, sqlite.DefaultConfig())
	case config.DriverPostgres:
		db, err = postgres.Open(ctx, cfg.DSN, postgres.DefaultConfig())
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	cat := catalog.NewSQLStore(db)
	acc := account.NewSQLStore(db)
	return &stores{
		Catalog:  cat,
		Accounts: acc,
		Progress: progress.NewSQLStore(db),
		movies:   cat,
		accounts: acc,
		db:       db,
	}, nil
}

// Ping reports database reachability. The memory driver is always ready.
func (s *stores) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// memoryAccounts adapts the in-memory account store to accountWriter.
type memoryAccounts struct {
	store *account.MemoryStore
}

func (m memoryAccounts) PutUser(_ context.Context, u account.User, _ time.Time) error {
	m.store.PutUser(u)
	return nil
}

func (m memoryAccounts) PutSubscription(_ context.Context, sub account.Subscription) error {
	m.store.PutSubscription(sub)
	return nil
}
