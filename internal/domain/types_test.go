package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestMetadata_PreservesUnknownKeys(t *testing.T) {
	input := `{"id":"0001-auth","status":"active","type":"feature","created":"2025-11-01T10:00:00Z","lastActivity":"2025-11-02T10:00:00Z","github":{"issue":42}}`

	var m Metadata
	if err := json.Unmarshal([]byte(input), &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.Status != StatusActive {
		t.Errorf("expected status active, got %s", m.Status)
	}
	if _, ok := m.Extra["github"]; !ok {
		t.Fatalf("expected github key to be kept in Extra, got %v", m.Extra)
	}

	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	m.Status = StatusPaused
	m.PausedAt = &now
	m.PausedReason = "waiting on review"

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(out)
	for _, want := range []string{`"github":{"issue":42}`, `"status":"paused"`, `"pausedReason":"waiting on review"`} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
}

func TestMetadata_IsInterrupt(t *testing.T) {
	interrupt := []string{"hotfix", "bug"}
	tests := []struct {
		typ  IncrementType
		want bool
	}{
		{IncrementTypeHotfix, true},
		{IncrementTypeBug, true},
		{IncrementTypeFeature, false},
		{"", false},
	}
	for _, tt := range tests {
		m := &Metadata{Type: tt.typ}
		if got := m.IsInterrupt(interrupt); got != tt.want {
			t.Errorf("IsInterrupt(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	if !StatusCompleted.IsTerminal() || !StatusAbandoned.IsTerminal() {
		t.Error("completed and abandoned should be terminal")
	}
	if StatusPaused.IsTerminal() || StatusActive.IsTerminal() {
		t.Error("paused and active should not be terminal")
	}
}

func TestLifecycleStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"draft", StatusPlanning},
		{"in-progress", StatusActive},
		{"implemented", StatusActive},
		{"in-qa", StatusActive},
		{"complete", StatusCompleted},
		{"blocked", StatusPaused},
		{"cancelled", StatusAbandoned},
		{"paused", StatusPaused},
		{"backlog", StatusBacklog},
		{"someday", Status("someday")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := LifecycleStatus(tt.in); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
