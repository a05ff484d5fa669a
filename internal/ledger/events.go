package ledger

import (
	"fmt"

	"github.com/lherron/incsync/internal/domain"
)

// Events returns the latest event_log entries, newest first. An empty
// incrementID returns events for every increment.
func (s *Store) Events(incrementID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, timestamp, COALESCE(increment_id, ''), resource_type, event_type, payload FROM event_log`
	var args []interface{}
	if incrementID != "" {
		query += " WHERE increment_id = ?"
		args = append(args, incrementID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.IncrementID, &e.ResourceType, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = parseTime(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
