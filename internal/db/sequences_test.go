package db

import (
	"path/filepath"
	"testing"
)

func TestSequenceDriftDetectAndFix(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	for i := 0; i < 3; i++ {
		_, err = database.Exec(`INSERT INTO event_log (increment_id, resource_type, event_type) VALUES ('0001-auth', 'increment', 'sync.completed')`)
		if err != nil {
			t.Fatalf("failed to insert event: %v", err)
		}
	}
	// simulate a ledger restored without its sequence table
	if _, err := database.Exec(`UPDATE sqlite_sequence SET seq = 1 WHERE name = 'event_log'`); err != nil {
		t.Fatalf("failed to rewind sequence: %v", err)
	}

	drifts, err := SequenceDrifts(database, DefaultSequenceSpecs())
	if err != nil {
		t.Fatalf("failed to detect sequence drift: %v", err)
	}
	if len(drifts) != 1 || drifts[0].Table != "event_log" {
		t.Fatalf("expected event_log drift, got %+v", drifts)
	}
	if drifts[0].MaxID != 3 || drifts[0].SeqValue != 1 {
		t.Errorf("expected max 3 seq 1, got %+v", drifts[0])
	}

	if _, err := FixSequenceDrifts(database, DefaultSequenceSpecs()); err != nil {
		t.Fatalf("failed to fix sequence drift: %v", err)
	}

	var seq int
	if err := database.QueryRow("SELECT seq FROM sqlite_sequence WHERE name = 'event_log'").Scan(&seq); err != nil {
		t.Fatalf("failed to query sqlite_sequence: %v", err)
	}
	if seq != 3 {
		t.Fatalf("expected sqlite_sequence to be 3 after fix, got %d", seq)
	}

	drifts, err = SequenceDrifts(database, DefaultSequenceSpecs())
	if err != nil {
		t.Fatalf("failed to detect sequence drift after fix: %v", err)
	}
	if len(drifts) != 0 {
		t.Fatalf("expected no drift after fix, found %d", len(drifts))
	}
}
