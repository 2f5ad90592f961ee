// Package db holds the query layer for evaluation history in the shape sqlc
// generates: a DBTX abstraction, a Queries type bound to it and a Querier
// interface over every query. Statements are written with Postgres $N
// placeholders and rebound for SQLite.
package db

import (
	"context"
	"database/sql"
	"regexp"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Dialect selects the SQL flavour a Queries speaks.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

func New(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

type Queries struct {
	db      DBTX
	dialect Dialect
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db:      tx,
		dialect: q.dialect,
	}
}

var pgPlaceholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders to SQLite's ?N form, which also binds by
// position and may repeat.
func (q *Queries) rebind(query string) string {
	if q.dialect != SQLite {
		return query
	}
	return pgPlaceholder.ReplaceAllString(query, "?$1")
}
