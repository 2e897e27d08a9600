package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SessionIDGenerator produces session IDs.
type SessionIDGenerator interface {
	Generate() (string, error)
}

// uuidV7Generator yields time-ordered UUIDs so sessions list in creation order.
type uuidV7Generator struct{}

func (uuidV7Generator) Generate() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Journal is the SQLite-backed step log.
type Journal struct {
	db     *sql.DB
	ids    SessionIDGenerator
	logger *slog.Logger
}

// Option configures a Journal.
type Option func(*Journal)

// WithSessionIDGenerator overrides UUIDv7 session IDs. Used by tests for
// deterministic output.
func WithSessionIDGenerator(g SessionIDGenerator) Option {
	return func(j *Journal) {
		j.ids = g
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = l
	}
}

// Open creates or opens the journal at path and applies migrations.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout
//   - Foreign key enforcement
//   - A single connection, since SQLite allows one writer
//
// Opening an up-to-date journal again is a no-op.
func Open(path string, opts ...Option) (*Journal, error) {
	j := &Journal{
		ids:    uuidV7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	j.db = db
	j.logger.Debug("journal opened", "path", path)
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// DB returns the underlying database for direct queries.
func (j *Journal) DB() *sql.DB {
	return j.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// runMigrations applies every embedded up migration.
func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migration instance: %w", err)
	}
	// m.Close would also close db, which the journal keeps using.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (j *Journal) SchemaVersion(ctx context.Context) (uint, bool, error) {
	var version uint
	var dirty bool
	err := j.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}
