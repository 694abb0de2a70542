package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // Required by the library implementation.
)

var ErrNotFound = errors.New("not found")

type Database struct {
	db  *sql.DB
	log *slog.Logger
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// New opens the sqlite database at dbPath and applies the embedded
// migrations. The handle is closed when any step fails.
func New(ctx context.Context, dbPath string, log *slog.Logger) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open DB file: %w", err)
	}

	if err = applyMigrations(ctx, db, dbPath, log); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return &Database{db: db, log: log}, nil
}

func applyMigrations(ctx context.Context, db *sql.DB, dbPath string, log *slog.Logger) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migrations source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	attrs := []any{"dbPath", dbPath}

	version, dirty, err := m.Version()
	switch {
	case err == nil:
		attrs = append(attrs, "version", version, "dirty", dirty)
	case !errors.Is(err, migrate.ErrNilVersion):
		log.WarnContext(ctx, "Failed to read migration version",
			"error", err,
			"dbPath", dbPath)
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		log.InfoContext(ctx, "DB schema is up to date", attrs...)
	} else {
		log.InfoContext(ctx, "DB is migrated", attrs...)
	}

	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
