package ledger

import (
	"testing"
	"time"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/events"
	"github.com/lherron/incsync/internal/testutil"
)

var ts = time.Date(2025, 11, 18, 12, 0, 0, 0, time.UTC)

func TestResolutionsRecordAndList(t *testing.T) {
	s := New(testutil.TempLedger(t))

	err := s.Resolutions.Record([]domain.ExternalResolution{
		{ID: "r1", IncrementID: "0001-auth", Platform: "jira", Field: "status", LocalValue: "in-progress",
			ExternalValue: "Done", Winner: domain.WinnerExternal, ResolvedValue: "complete", Reason: "qa", Timestamp: ts},
		{ID: "r2", IncrementID: "0001-auth", Platform: "jira", Field: "priority", LocalValue: "P2",
			ExternalValue: "P1", Winner: domain.WinnerExternal, ResolvedValue: "P1", Reason: "prio", Timestamp: ts},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := s.Resolutions.ListForIncrement("0001-auth")
	if err != nil {
		t.Fatalf("ListForIncrement failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(got))
	}
	if got[0].ID != "r1" || got[0].ResolvedValue != "complete" || !got[0].Timestamp.Equal(ts) {
		t.Errorf("unexpected first resolution %+v", got[0])
	}

	evs, err := s.Events("0001-auth", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 || evs[0].EventType != events.TypeResolutionApplied {
		t.Errorf("expected 2 resolution events, got %+v", evs)
	}
}

func TestResolutionsRecordIsAtomic(t *testing.T) {
	s := New(testutil.TempLedger(t))

	err := s.Resolutions.Record([]domain.ExternalResolution{
		{ID: "r1", IncrementID: "0001-auth", Platform: "jira", Field: "status", Winner: domain.WinnerExternal,
			ResolvedValue: "complete", Reason: "qa", Timestamp: ts},
		{ID: "r2", IncrementID: "0001-auth", Platform: "jira", Field: "status", Winner: "local",
			ResolvedValue: "draft", Reason: "qa", Timestamp: ts},
	})
	if err == nil {
		t.Fatal("expected the local winner to be rejected")
	}

	got, err := s.Resolutions.ListForIncrement("0001-auth")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected rollback, got %d rows", len(got))
	}
}

func TestTransitionsRecordAndList(t *testing.T) {
	s := New(testutil.TempLedger(t))

	first := &domain.Transition{ID: "t1", IncrementID: "0002-ui", Action: "start",
		From: domain.StatusPlanning, To: domain.StatusActive, Warnings: []string{"WIP limit exceeded"}, Timestamp: ts}
	second := &domain.Transition{ID: "t2", IncrementID: "0002-ui", Action: "pause",
		From: domain.StatusActive, To: domain.StatusPaused, Reason: "blocked", Timestamp: ts.Add(time.Hour)}
	other := &domain.Transition{ID: "t3", IncrementID: "0003-api", Action: "start",
		From: domain.StatusPlanning, To: domain.StatusActive, Timestamp: ts}

	for _, tr := range []*domain.Transition{first, second, other} {
		if err := s.RecordTransition(tr); err != nil {
			t.Fatalf("RecordTransition failed: %v", err)
		}
	}

	got, err := s.Transitions.ListForIncrement("0002-ui", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(got))
	}
	if got[0].Action != "start" || len(got[0].Warnings) != 1 || got[0].To != domain.StatusActive {
		t.Errorf("unexpected first transition %+v", got[0])
	}
	if got[1].Reason != "blocked" || got[1].Warnings != nil {
		t.Errorf("unexpected second transition %+v", got[1])
	}

	all, err := s.Transitions.ListForIncrement("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 transitions overall, got %d", len(all))
	}
}

func TestRunsRecordAndRecent(t *testing.T) {
	s := New(testutil.TempLedger(t))

	for i, cmd := range []string{"validate", "sync"} {
		run := &domain.SyncRun{Command: cmd, StartedAt: ts, FinishedAt: ts.Add(time.Second),
			Total: 3, Synced: 2, Desynced: 1, Findings: i}
		if err := s.Runs.Record(run); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		if run.ID == 0 {
			t.Error("expected run ID to be set")
		}
	}

	runs, err := s.Runs.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Command != "sync" || runs[1].Command != "validate" {
		t.Errorf("expected newest first, got %+v", runs)
	}
	if !runs[0].FinishedAt.Equal(ts.Add(time.Second)) {
		t.Errorf("expected finished time preserved, got %v", runs[0].FinishedAt)
	}

	evs, err := s.Events("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 || evs[0].EventType != events.TypeSyncCompleted || evs[0].IncrementID != "" {
		t.Errorf("unexpected events %+v", evs)
	}
}
