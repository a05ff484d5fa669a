package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/events"
)

// TransitionStore persists lifecycle transitions.
type TransitionStore struct {
	store *Store
}

// Record stores a transition and logs it. It satisfies lifecycle.Recorder.
func (ts *TransitionStore) Record(tr *domain.Transition) error {
	return ts.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		var warnings interface{}
		if len(tr.Warnings) > 0 {
			data, err := json.Marshal(tr.Warnings)
			if err != nil {
				return err
			}
			warnings = string(data)
		}
		_, err := tx.Exec(`
			INSERT INTO transitions (id, increment_id, action, from_status, to_status, reason, warnings, transitioned_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, tr.ID, tr.IncrementID, tr.Action, string(tr.From), string(tr.To), tr.Reason, warnings, formatTime(tr.Timestamp))
		if err != nil {
			return fmt.Errorf("failed to record transition: %w", err)
		}
		if err := ew.LogTransition(tx, tr); err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

// RecordTransition implements lifecycle.Recorder
func (s *Store) RecordTransition(tr *domain.Transition) error {
	return s.Transitions.Record(tr)
}

// ListForIncrement returns an increment's transitions, oldest first. An
// empty id lists every increment.
func (ts *TransitionStore) ListForIncrement(incrementID string, limit int) ([]domain.Transition, error) {
	query := `
		SELECT id, increment_id, action, from_status, to_status, COALESCE(reason, ''), COALESCE(warnings, ''), transitioned_at
		FROM transitions
	`
	var args []interface{}
	if incrementID != "" {
		query += " WHERE increment_id = ?"
		args = append(args, incrementID)
	}
	query += " ORDER BY transitioned_at, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := ts.store.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transition
	for rows.Next() {
		var tr domain.Transition
		var from, to, warnings, at string
		if err := rows.Scan(&tr.ID, &tr.IncrementID, &tr.Action, &from, &to, &tr.Reason, &warnings, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.From = domain.Status(from)
		tr.To = domain.Status(to)
		tr.Timestamp = parseTime(at)
		if warnings != "" {
			if err := json.Unmarshal([]byte(warnings), &tr.Warnings); err != nil {
				return nil, fmt.Errorf("transition %s: invalid warnings: %w", tr.ID, err)
			}
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
