package ledger

import (
	"database/sql"
	"fmt"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/events"
)

// ResolutionStore persists applied external resolutions.
type ResolutionStore struct {
	store *Store
}

// Record stores resolutions and logs a resolution.applied event for each,
// all in one transaction.
func (rs *ResolutionStore) Record(resolutions []domain.ExternalResolution) error {
	if len(resolutions) == 0 {
		return nil
	}
	return rs.store.withTx(func(tx *sql.Tx, ew *events.Writer) error {
		for i := range resolutions {
			r := &resolutions[i]
			_, err := tx.Exec(`
				INSERT INTO resolutions (
					id, increment_id, platform, field, local_value, external_value,
					winner, resolved_value, reason, resolved_at
				)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, r.ID, r.IncrementID, r.Platform, r.Field, r.LocalValue, r.ExternalValue,
				string(r.Winner), r.ResolvedValue, r.Reason, formatTime(r.Timestamp))
			if err != nil {
				return fmt.Errorf("failed to record %s resolution: %w", r.Field, err)
			}
			if err := ew.LogResolutionApplied(tx, r); err != nil {
				return fmt.Errorf("failed to log event: %w", err)
			}
		}
		return nil
	})
}

// ListForIncrement returns an increment's resolutions, oldest first.
func (rs *ResolutionStore) ListForIncrement(incrementID string) ([]domain.ExternalResolution, error) {
	rows, err := rs.store.db.Query(`
		SELECT id, increment_id, platform, field, COALESCE(local_value, ''), COALESCE(external_value, ''),
		       winner, resolved_value, reason, resolved_at
		FROM resolutions
		WHERE increment_id = ?
		ORDER BY resolved_at, id
	`, incrementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer rows.Close()

	var out []domain.ExternalResolution
	for rows.Next() {
		var r domain.ExternalResolution
		var winner, resolvedAt string
		if err := rows.Scan(&r.ID, &r.IncrementID, &r.Platform, &r.Field, &r.LocalValue, &r.ExternalValue,
			&winner, &r.ResolvedValue, &r.Reason, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		r.Winner = domain.Winner(winner)
		r.Timestamp = parseTime(resolvedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
