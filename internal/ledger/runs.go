package ledger

import (
	"database/sql"
	"fmt"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/events"
)

// RunStore persists sync pass summaries.
type RunStore struct {
	store *Store
}

// Record stores a run and sets its ID.
func (rs *RunStore) Record(run *domain.SyncRun) error {
	return rs.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		res, err := tx.Exec(`
			INSERT INTO sync_runs (
				command, started_at, finished_at, total, synced, desynced, skipped, errors, findings, files_written
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.Command, formatTime(run.StartedAt), formatTime(run.FinishedAt),
			run.Total, run.Synced, run.Desynced, run.Skipped, run.Errors, run.Findings, run.FilesWritten)
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert ID: %w", err)
		}
		run.ID = id
		if err := ew.LogSyncCompleted(tx, run); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// Recent returns the latest runs, newest first.
func (rs *RunStore) Recent(limit int) ([]domain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := rs.store.db.Query(`
		SELECT id, command, started_at, finished_at, total, synced, desynced, skipped, errors, findings, files_written
		FROM sync_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []domain.SyncRun
	for rows.Next() {
		var run domain.SyncRun
		var started, finished string
		if err := rows.Scan(&run.ID, &run.Command, &started, &finished, &run.Total, &run.Synced,
			&run.Desynced, &run.Skipped, &run.Errors, &run.Findings, &run.FilesWritten); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		out = append(out, run)
	}
	return out, rows.Err()
}

// RecordRepair logs the files a repair rewrote
func (s *Store) RecordRepair(incrementID string, run *domain.SyncRun, files []string) error {
	return s.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		return ew.LogRepairApplied(tx, incrementID, run.FinishedAt, files)
	})
}
