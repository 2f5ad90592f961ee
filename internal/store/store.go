// Package store wraps db.Querier with connection setup, migrations and
// transaction support, and groups the multi-step history writes that must
// execute atomically.
//
// Single-query reads (ListHistoryByUser, GetEvaluation) are also exposed here
// so handlers depend on one type, but they are thin proxies.
//
// Dependency rule: store imports db only. It never imports api, worker,
// pipeline or ai.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/nyashahama/cognitive-guardian-backend/internal/db"
)

// Store holds a *sql.DB for starting transactions and a db.Querier for
// executing queries outside of transactions. history.go attaches the
// operations to this type.
type Store struct {
	// pool is the raw connection pool, used only to begin transactions.
	pool *sql.DB

	// q is the Querier used for non-transactional calls.
	q *db.Queries

	dialect db.Dialect
}

// ErrUnsupportedDSN is returned by Open for a DSN it cannot route to a driver.
var ErrUnsupportedDSN = errors.New("store: unsupported database url (want postgres:// or sqlite://)")

// ParseDSN maps a database URL onto a driver name, the driver-specific data
// source and the dialect. postgres:// and postgresql:// go to lib/pq as-is;
// sqlite://path (or sqlite:path) goes to modernc.org/sqlite with the scheme
// stripped.
func ParseDSN(dsn string) (driver, source string, dialect db.Dialect, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, db.Postgres, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://"), db.SQLite, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite:"), db.SQLite, nil
	default:
		return "", "", 0, ErrUnsupportedDSN
	}
}

// Open connects to dsn, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, source, dialect, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if source == "" {
		return nil, fmt.Errorf("store: empty %s data source", driver)
	}

	pool, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}

	if dialect == db.SQLite {
		// One writer at a time; concurrent writers would see SQLITE_BUSY.
		pool.SetMaxOpenConns(1)
	} else {
		pool.SetMaxOpenConns(25)
		pool.SetMaxIdleConns(10)
		pool.SetConnMaxLifetime(5 * time.Minute)
		pool.SetConnMaxIdleTime(2 * time.Minute)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping %s: %w", driver, err)
	}

	s := New(pool, dialect)
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified (e.g. via db.PingContext) before calling New.
func New(pool *sql.DB, dialect db.Dialect) *Store {
	return &Store{pool: pool, q: db.New(pool, dialect), dialect: dialect}
}

// Q exposes the underlying Querier for single-query reads.
func (s *Store) Q() db.Querier {
	return s.q
}

// Dialect reports which database the store talks to.
func (s *Store) Dialect() db.Dialect {
	return s.dialect
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range db.Schema(s.dialect) {
		if _, err := s.pool.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// txQuerier is a function that receives a transactional Querier and returns an
// error. Returning a non-nil error causes withTx to roll back automatically.
type txQuerier func(ctx context.Context, q db.Querier) error

// withTx begins a transaction, passes a Querier scoped to that transaction to
// fn, and commits on success or rolls back on any error (including panics).
//
// Postgres runs serializable because the save path is insert-then-trim for
// one user and two concurrent saves must not both keep N+1 rows. SQLite
// transactions are already serialised by its single writer.
func (s *Store) withTx(ctx context.Context, fn txQuerier) error {
	var opts *sql.TxOptions
	if s.dialect == db.Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Roll back on panic so the connection is never left in a broken state.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // re-panic after rollback
		}
	}()

	if err := fn(ctx, s.q.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			// Wrap both errors so the caller sees both failure reasons.
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
