package paths

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestNormalizeSlug(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"User Authentication", "user-authentication", false},
		{"fix_login  bug", "fix-login-bug", false},
		{"  --Payments v2--  ", "payments-v2", false},
		{"API/Gateway.refresh", "api-gateway-refresh", false},
		{"Ünïcode stripped", "ncode-stripped", false},
		{"", "", true},
		{"!!!", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeSlug(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeSlug(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeSlug(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeSlug_Truncates(t *testing.T) {
	long := "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu"
	got, err := NormalizeSlug(long)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > maxSlugLen {
		t.Errorf("expected at most %d bytes, got %d", maxSlugLen, len(got))
	}
	if got[len(got)-1] == '-' {
		t.Errorf("expected no trailing hyphen, got %q", got)
	}
}

func TestNextID(t *testing.T) {
	existing := []string{"0001-auth", "0007-search", "notes", "0003-billing"}
	got, err := NextID(existing, "Dark Mode")
	if err != nil {
		t.Fatal(err)
	}
	if got != "0008-dark-mode" {
		t.Errorf("expected 0008-dark-mode, got %s", got)
	}

	first, err := NextID(nil, "first")
	if err != nil {
		t.Fatal(err)
	}
	if first != "0001-first" {
		t.Errorf("expected 0001-first, got %s", first)
	}
}

func TestMatchID(t *testing.T) {
	tests := []struct {
		pattern string
		id      string
		want    bool
	}{
		{"0001-auth", "0001-auth", true},
		{"0001-*", "0001-auth", true},
		{"*-auth", "0001-auth", true},
		{"000?-auth", "0002-auth", true},
		{"0001", "0001-auth", true},
		{"1", "0001-auth", true},
		{"2", "0001-auth", false},
		{"0001-aut", "0001-auth", false},
		{"[", "0001-auth", false},
	}
	for _, tt := range tests {
		if got := MatchID(tt.pattern, tt.id); got != tt.want {
			t.Errorf("MatchID(%q, %q) = %v, want %v", tt.pattern, tt.id, got, tt.want)
		}
	}
}

func TestSelectIDs(t *testing.T) {
	ids := []string{"0001-auth", "0002-search", "0003-billing"}
	if got := SelectIDs(ids, nil); !reflect.DeepEqual(got, ids) {
		t.Errorf("expected all ids, got %v", got)
	}
	got := SelectIDs(ids, []string{"0003", "0001-*"})
	want := []string{"0001-auth", "0003-billing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestLayout(t *testing.T) {
	l := NewLayout("/proj", "")
	if got := l.SpecPath("0001-auth"); got != filepath.Join("/proj", ".specweave", "increments", "0001-auth", "spec.md") {
		t.Errorf("unexpected spec path %s", got)
	}
	if got := l.SnapshotPath(); got != filepath.Join("/proj", ".specweave", "state", "status-line.json") {
		t.Errorf("unexpected snapshot path %s", got)
	}
	if got := l.Rel(l.TasksPath("0001-auth")); got != ".specweave/increments/0001-auth/tasks.md" {
		t.Errorf("unexpected rel path %s", got)
	}
	if got := l.Abs(".specweave/state/ledger.db"); got != l.LedgerPath() {
		t.Errorf("expected Abs to invert Rel, got %s", got)
	}

	custom := NewLayout("/proj", ".work")
	if got := custom.ActivePath(); got != filepath.Join("/proj", ".work", "state", "active-increment.json") {
		t.Errorf("unexpected active path %s", got)
	}
}
