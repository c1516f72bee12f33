package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/chis/stackcheck/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
	log    *logging.Logger
}

// NewSQLiteStorage opens (or creates) the database at dbPath, enables WAL
// mode and runs migrations. Returns nil and an error if initialization
// fails; callers degrade to running without history.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	log := logging.Component("storage")

	if dir := filepath.Dir(dbPath); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
		log:    log,
	}

	if err := storage.enableWALMode(); err != nil {
		db.Close()
		return nil, err
	}

	if err := storage.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Debug("Database initialized at %s", dbPath)
	return storage, nil
}

// enableWALMode enables Write-Ahead Logging mode for better concurrency.
func (s *SQLiteStorage) enableWALMode() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to verify WAL mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("WAL mode not enabled, got: %s", mode)
	}
	return nil
}

// migration is one embedded NNNNNN_name.up.sql file.
type migration struct {
	version int
	name    string
}

// pendingMigrations lists embedded migrations in version order, skipping
// files whose name carries no version prefix.
func (s *SQLiteStorage) pendingMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			s.log.Warn("Skipping invalid migration filename: %s", name)
			continue
		}
		out = append(out, migration{version: version, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (s *SQLiteStorage) runMigrations() error {
	const ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := s.pendingMigrations()
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range migrations {
		var done bool
		row := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.version)
		if err := row.Scan(&done); err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if done {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return err
		}
		applied++
	}

	if applied > 0 {
		s.log.Info("Migrations complete: %d applied", applied)
	}
	return nil
}

// applyMigration runs one migration and records its version in a single
// transaction.
func (s *SQLiteStorage) applyMigration(m migration) error {
	body, err := migrationsFS.ReadFile("migrations/" + m.name)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", m.name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", m.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(body)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", m.name, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", m.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.name, err)
	}

	s.log.Debug("Applied migration: %s", m.name)
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		s.log.Debug("Closing database connection: %s", s.dbPath)
		return s.db.Close()
	}
	return nil
}

// isBusy reports whether err is a transient SQLite lock error.
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// retryWithBackoff executes operation with exponential backoff on SQLITE_BUSY.
func (s *SQLiteStorage) retryWithBackoff(ctx context.Context, operation func() error) error {
	const maxRetries = 5
	baseDelay := 10 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = operation()
		if err == nil || !isBusy(err) {
			return err
		}

		delay := baseDelay * time.Duration(1<<uint(attempt))
		if delay > time.Second {
			delay = time.Second
		}

		s.log.Debug("Database locked, retrying in %v (attempt %d/%d)", delay, attempt+1, maxRetries)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("database operation failed after %d retries: %w", maxRetries, err)
}
