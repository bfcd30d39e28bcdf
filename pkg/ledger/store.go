// Package ledger is the durable store of projects, usage records, API
// keys, rate windows, permission profiles, and audit events. It is the
// only shared mutable state that persists; every mutation goes through
// this package's transactional API, grounded in the teacher's
// pkg/database connection-and-migration pattern but rebuilt on pgx/sqlx
// directly since no generated ORM client ships with this module.
package ledger

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is the Ledger's handle on the relational backing store.
type Store struct {
	db *sqlx.DB
}

// Ledger is the name other packages (policy, api, agentic) import this
// type under; Store is the concrete implementation of that role.
type Ledger = Store

// Open connects to Postgres via the pgx stdlib driver, runs pending
// migrations, and returns a ready-to-use Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, storageErr(fmt.Errorf("connect: %w", err))
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, storageErr(fmt.Errorf("ping: %w", err))
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, storageErr(fmt.Errorf("migrate: %w", err))
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return fmt.Errorf("building migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Ping reports whether the store is reachable, for the /health endpoint's
// aggregate status.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr(err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
