// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ?"

	assert.Equal(t, q, (&DB{Dialect: DialectSqlite}).Rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", (&DB{Dialect: DialectPostgres}).Rebind(q))
}

func TestGreatest(t *testing.T) {
	assert.Equal(t, "MAX", (&DB{Dialect: DialectSqlite}).Greatest())
	assert.Equal(t, "GREATEST", (&DB{Dialect: DialectPostgres}).Greatest())
}
