package db

import (
	"database/sql"
	"fmt"
)

// SequenceSpec names an AUTOINCREMENT table whose sqlite_sequence row must
// stay at or above its highest id.
type SequenceSpec struct {
	Table    string
	IDColumn string
}

// SequenceDrift captures drift between sqlite_sequence and the max existing ID.
type SequenceDrift struct {
	Table    string
	MaxID    int
	SeqValue int
}

type sqlExecutor interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// DefaultSequenceSpecs returns the ledger tables with integer ids.
func DefaultSequenceSpecs() []SequenceSpec {
	return []SequenceSpec{
		{Table: "event_log", IDColumn: "id"},
		{Table: "sync_runs", IDColumn: "id"},
	}
}

// SequenceDrifts returns any sequences whose sqlite_sequence value is below
// the max existing ID. A ledger copied between machines or restored from a
// partial dump can end up this way, and the next insert would then reuse an id.
func SequenceDrifts(exec sqlExecutor, specs []SequenceSpec) ([]SequenceDrift, error) {
	drifts := []SequenceDrift{}

	for _, spec := range specs {
		var maxID int
		query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", spec.IDColumn, spec.Table)
		if err := exec.QueryRow(query).Scan(&maxID); err != nil {
			return nil, fmt.Errorf("failed to compute max ID for %s: %w", spec.Table, err)
		}

		seqValue, err := currentSequence(exec, spec.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to read sqlite_sequence for %s: %w", spec.Table, err)
		}

		if seqValue < maxID {
			drifts = append(drifts, SequenceDrift{Table: spec.Table, MaxID: maxID, SeqValue: seqValue})
		}
	}

	return drifts, nil
}

// FixSequenceDrifts updates sqlite_sequence to match the max existing IDs and
// returns the sequences it updated.
func FixSequenceDrifts(exec sqlExecutor, specs []SequenceSpec) ([]SequenceDrift, error) {
	drifts, err := SequenceDrifts(exec, specs)
	if err != nil {
		return nil, err
	}

	for _, drift := range drifts {
		if err := setSequence(exec, drift.Table, drift.MaxID); err != nil {
			return nil, fmt.Errorf("failed to update sqlite_sequence for %s: %w", drift.Table, err)
		}
	}

	return drifts, nil
}

func currentSequence(exec sqlExecutor, table string) (int, error) {
	var seq sql.NullInt64
	err := exec.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = ?", table).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return int(seq.Int64), nil
}

func setSequence(exec sqlExecutor, table string, value int) error {
	res, err := exec.Exec("UPDATE sqlite_sequence SET seq = ? WHERE name = ?", value, table)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	_, err = exec.Exec("INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)", table, value)
	return err
}
