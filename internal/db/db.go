// Package db opens the engine's SQLite ledger and applies its embedded
// schema migrations.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ledgerPragmas are applied to every connection. WAL lets `status` and
// `history` read while a sync pass is recording.
var ledgerPragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
}

// DB is an open ledger database
type DB struct {
	*sql.DB
	path string
}

type migration struct {
	version string
	sql     string
}

// Open opens the ledger at path, creating its directory if needed. It does
// not migrate.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	for _, pragma := range ledgerPragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return &DB{DB: conn, path: path}, nil
}

// OpenOrInit opens the ledger at path. A file that does not exist yet is
// created and fully migrated; an existing file with pending migrations is
// refused with RequiresMigrationError.
func OpenOrInit(path string) (*DB, error) {
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	database, err := Open(path)
	if err != nil {
		return nil, err
	}
	if fresh {
		err = database.Migrate()
	} else {
		err = database.RequiresMigrationError()
	}
	if err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Migrate applies every pending migration
func (db *DB) Migrate() error {
	_, err := db.MigrateWithInfo()
	return err
}

// MigrateWithInfo applies pending migrations in version order, each in its
// own transaction, and returns the versions it applied.
func (db *DB) MigrateWithInfo() ([]string, error) {
	all, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	done, err := db.appliedVersions()
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range all {
		if done[m.version] {
			continue
		}
		if err := db.apply(m); err != nil {
			return applied, err
		}
		applied = append(applied, m.version)
	}
	return applied, nil
}

func (db *DB) apply(m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", m.version, err)
	}
	if _, err := tx.Exec(m.sql); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %s failed: %w", m.version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.version, err)
	}
	return nil
}

// MigrationStatus lists applied and pending migration versions, both sorted
func (db *DB) MigrationStatus() (applied []string, pending []string, err error) {
	all, err := loadMigrations()
	if err != nil {
		return nil, nil, err
	}
	done, err := db.appliedVersions()
	if err != nil {
		return nil, nil, err
	}
	for v := range done {
		applied = append(applied, v)
	}
	sort.Strings(applied)
	for _, m := range all {
		if !done[m.version] {
			pending = append(pending, m.version)
		}
	}
	return applied, pending, nil
}

// appliedVersions reads schema_migrations. A ledger without the table has
// applied nothing.
func (db *DB) appliedVersions() (map[string]bool, error) {
	var exists int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up schema_migrations: %w", err)
	}
	done := make(map[string]bool)
	if exists == 0 {
		return done, nil
	}

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

// RequiresMigrationError returns an error naming the ledger path and its
// current schema version when migrations are pending, nil otherwise.
func (db *DB) RequiresMigrationError() error {
	applied, pending, err := db.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	current := "none"
	if len(applied) > 0 {
		current = applied[len(applied)-1]
	}
	return fmt.Errorf("ledger at %s (version: %s) requires migration: %d pending migration(s). Run 'incsyncadm migrate' to update",
		db.path, current, len(pending))
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		out = append(out, migration{version: e.Name(), sql: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}
