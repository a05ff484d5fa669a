// Package ledger records what the engine decided: applied resolutions,
// lifecycle transitions and sync passes. Increment files on disk remain the
// source of truth; nothing here is read back to make a decision.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lherron/incsync/internal/db"
	"github.com/lherron/incsync/internal/events"
)

// Store is the root store that provides access to the ledger tables.
type Store struct {
	db *db.DB

	Resolutions *ResolutionStore
	Transitions *TransitionStore
	Runs        *RunStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database}
	s.Resolutions = &ResolutionStore{store: s}
	s.Transitions = &TransitionStore{store: s}
	s.Runs = &RunStore{store: s}
	return s
}

// Open opens the ledger at path, applying pending migrations.
func Open(path string) (*Store, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}
	return New(database), nil
}

// DB returns the underlying database connection (for read-only queries).
func (s *Store) DB() *db.DB {
	return s.db
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) withTx(fn func(tx *sql.Tx, ew *events.Writer) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ew := events.NewWriter(s.db.DB)
	if err := fn(tx, ew); err != nil {
		return err
	}

	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
