package store

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// dialect distinguishes the small set of behaviors that differ between Postgres
// and SQLite: row-locking strategy during action_claim/lock_acquire and whether
// the driver enforces true cross-process serializability (Postgres) or only
// single-process mutual exclusion via a write-transaction (SQLite).
type dialect string

const (
	dialectPostgres dialect = "postgres"
	dialectSQLite   dialect = "sqlite"
)

//go:embed schema.sql
var schemaSQL string

// sqlStore is the shared sqlx-based implementation of Store for both backends.
// Queries are written with "?" placeholders and passed through db.Rebind so the
// same query text serves both dialects; only the handful of operations that need
// real row-locking branch on dialect.
type sqlStore struct {
	db      *sqlx.DB
	dialect dialect

	identityOnce sync.Once
	identityLRU  *lru.Cache[identityCacheKey, string]
}

// NewPostgresStore opens a Postgres-backed Store.
func NewPostgresStore(dsn string) (Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &sqlStore{db: db, dialect: dialectPostgres}, nil
}

// NewSQLiteStore opens a modernc.org/sqlite-backed Store, suitable for a single
// engine process or tests. WAL mode gives readers concurrency with the one
// writer that the action-claim CAS requires.
func NewSQLiteStore(path string) (Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline; the one connection serializes every transaction
	return &sqlStore{db: db, dialect: dialectSQLite}, nil
}

func (s *sqlStore) Close() error { return s.db.Close() }

// Migrate applies the schema idempotently (CREATE TABLE IF NOT EXISTS); there is
// no migration-version ledger because the schema is additive-only pre-1.0.
func (s *sqlStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *sqlStore) rebind(query string) string { return s.db.Rebind(query) }

// beginWrite starts the transaction used for CAS operations. Postgres relies on
// SELECT ... FOR UPDATE SKIP LOCKED inside an ordinary transaction for real
// cross-process serializability; SQLite has no row-level locking, so
// NewSQLiteStore caps the pool at one connection and leans on busy_timeout to
// serialize writers instead, giving single-process mutual exclusion.
func (s *sqlStore) beginWrite(ctx context.Context) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, nil)
}

func (s *sqlStore) forUpdateClause() string {
	if s.dialect == dialectPostgres {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}
