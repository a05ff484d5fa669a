package events

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lherron/incsync/internal/domain"
)

// Event types written to the ledger
const (
	TypeResolutionApplied = "resolution.applied"
	TypeTransition        = "increment.transitioned"
	TypeSyncCompleted     = "sync.completed"
	TypeRepairApplied     = "repair.applied"
)

// Writer handles writing events to the event log
type Writer struct {
	db *sql.DB
}

// NewWriter creates a new event writer
func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// LogEvent writes an event to the event log
func (w *Writer) LogEvent(tx *sql.Tx, event *domain.Event) error {
	query := `
		INSERT INTO event_log (timestamp, increment_id, resource_type, event_type, payload)
		VALUES (?, ?, ?, ?, ?)
	`

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var incrementID interface{}
	if event.IncrementID != "" {
		incrementID = event.IncrementID
	}

	executor := w.getExecutor(tx)
	_, err := executor.Exec(query, ts.UTC().Format(time.RFC3339Nano), incrementID, event.ResourceType, event.EventType, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

func (w *Writer) logPayload(tx *sql.Tx, incrementID, resourceType, eventType string, ts time.Time, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	payloadStr := string(data)
	return w.LogEvent(tx, &domain.Event{
		Timestamp:    ts,
		IncrementID:  incrementID,
		ResourceType: resourceType,
		EventType:    eventType,
		Payload:      &payloadStr,
	})
}

// LogResolutionApplied logs an external-wins resolution written to spec.md
func (w *Writer) LogResolutionApplied(tx *sql.Tx, res *domain.ExternalResolution) error {
	return w.logPayload(tx, res.IncrementID, "resolution", TypeResolutionApplied, res.Timestamp, map[string]interface{}{
		"platform": res.Platform,
		"field":    res.Field,
		"from":     res.LocalValue,
		"to":       res.ResolvedValue,
	})
}

// LogTransition logs a lifecycle transition
func (w *Writer) LogTransition(tx *sql.Tx, tr *domain.Transition) error {
	payload := map[string]interface{}{
		"action": tr.Action,
		"from":   tr.From,
		"to":     tr.To,
	}
	if len(tr.Warnings) > 0 {
		payload["warnings"] = tr.Warnings
	}
	return w.logPayload(tx, tr.IncrementID, "increment", TypeTransition, tr.Timestamp, payload)
}

// LogSyncCompleted logs the end of a validate, sync or repair pass
func (w *Writer) LogSyncCompleted(tx *sql.Tx, run *domain.SyncRun) error {
	return w.logPayload(tx, "", "run", TypeSyncCompleted, run.FinishedAt, map[string]interface{}{
		"command":  run.Command,
		"total":    run.Total,
		"desynced": run.Desynced,
		"errors":   run.Errors,
		"written":  run.FilesWritten,
	})
}

// LogRepairApplied logs the files a repair rewrote for one increment
func (w *Writer) LogRepairApplied(tx *sql.Tx, incrementID string, ts time.Time, files []string) error {
	return w.logPayload(tx, incrementID, "increment", TypeRepairApplied, ts, map[string]interface{}{
		"files": files,
	})
}

// getExecutor returns the appropriate executor (tx or db)
func (w *Writer) getExecutor(tx *sql.Tx) interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
} {
	if tx != nil {
		return tx
	}
	return w.db
}
