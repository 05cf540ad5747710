// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package persistence holds the dialect-aware handle shared by the SQL stores.
package persistence

import (
	"database/sql"
	"strconv"
	"strings"
)

// Dialect names.
const (
	DialectSqlite   = "sqlite"
	DialectPostgres = "postgres"
)

// DB is a *sql.DB tagged with the SQL dialect it speaks.
// Stores write queries with '?' placeholders and call Rebind before executing.
type DB struct {
	*sql.DB
	Dialect string
}

// Wrap tags db with dialect.
func Wrap(db *sql.DB, dialect string) *DB {
	return &DB{DB: db, Dialect: dialect}
}

// Rebind rewrites '?' placeholders into '$n' for postgres. Queries must not
// contain literal question marks.
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Greatest returns the two-argument maximum function of the dialect.
func (d *DB) Greatest() string {
	if d.Dialect == DialectPostgres {
		return "GREATEST"
	}
	return "MAX"
}
