package snapshot

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lherron/incsync/internal/paths"
)

var fixedNow = time.Date(2025, 11, 18, 12, 0, 0, 0, time.UTC)

func setupManager(t *testing.T) (*Manager, paths.Layout) {
	t.Helper()
	layout := paths.NewLayout(t.TempDir(), "")
	m := NewManager(layout, log.New(io.Discard, "", 0), func() time.Time { return fixedNow })
	return m, layout
}

func writeSource(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestCanonicalJSON_Deterministic(t *testing.T) {
	s := &StatusSnapshot{
		Current:     &Current{ID: "0001-auth", Completed: 1, Total: 2, Percentage: 50},
		OpenCount:   1,
		LastUpdate:  fixedNow,
		GeneratedAt: fixedNow,
		SourceModifiedAt: map[string]time.Time{
			"b/tasks.md": fixedNow,
			"a/spec.md":  fixedNow.Add(-time.Second),
		},
	}
	got, err := CanonicalJSON(s)
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}
	want := `{"current":{"completed":1,"id":"0001-auth","percentage":50,"total":2},` +
		`"generatedAt":"2025-11-18T12:00:00Z","lastUpdate":"2025-11-18T12:00:00Z","openCount":1,` +
		`"sourceModifiedAt":{"a/spec.md":"2025-11-18T11:59:59Z","b/tasks.md":"2025-11-18T12:00:00Z"}}`
	if string(got) != want {
		t.Errorf("unexpected canonical JSON:\n got %s\nwant %s", got, want)
	}

	s.Current = nil
	got, _ = CanonicalJSON(s)
	if !strings.HasPrefix(string(got), `{"current":null,`) {
		t.Errorf("expected explicit null current, got %s", got)
	}
}

func TestManager_WriteRead(t *testing.T) {
	m, layout := setupManager(t)
	tasks := layout.TasksPath("0001-auth")
	writeSource(t, tasks, fixedNow.Add(-time.Minute))

	s := m.Build(&Current{ID: "0001-auth", Completed: 1, Total: 2, Percentage: 50}, 1,
		map[string]time.Time{tasks: fixedNow.Add(-time.Minute)})
	if err := m.Write(s); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	res := m.Read()
	if res.NoActive {
		t.Fatal("expected an active snapshot")
	}
	if res.Snapshot.Current.Completed != 1 || res.Snapshot.Rev == "" {
		t.Errorf("unexpected snapshot: %+v", res.Snapshot)
	}
	if _, ok := res.Snapshot.SourceModifiedAt[".specweave/increments/0001-auth/tasks.md"]; !ok {
		t.Errorf("expected relative source key, got %v", res.Snapshot.SourceModifiedAt)
	}

	stale, err := m.IsStale(res.Snapshot)
	if err != nil || stale {
		t.Errorf("expected fresh snapshot, got stale=%v err=%v", stale, err)
	}
	writeSource(t, tasks, fixedNow)
	stale, err = m.IsStale(res.Snapshot)
	if err != nil || !stale {
		t.Errorf("expected stale after source edit, got stale=%v err=%v", stale, err)
	}
	if err := os.Remove(tasks); err != nil {
		t.Fatal(err)
	}
	if stale, _ := m.IsStale(res.Snapshot); !stale {
		t.Error("expected stale when a recorded source is gone")
	}
}

func TestManager_ReadNoActive(t *testing.T) {
	tests := []struct {
		name    string
		content *string
	}{
		{name: "missing", content: nil},
		{name: "empty", content: strPtr("")},
		{name: "empty object", content: strPtr("{}\n")},
		{name: "corrupt", content: strPtr(`{"current":`)},
		{name: "null current", content: strPtr(`{"current":null,"openCount":0}`)},
		{name: "rev mismatch", content: strPtr(`{"current":{"id":"x","completed":1,"total":1,"percentage":100},"rev":"sha256:00"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := setupManager(t)
			if tt.content != nil {
				writeFile(t, m.Path(), *tt.content)
			}
			if res := m.Read(); !res.NoActive {
				t.Errorf("expected NoActive, got %+v", res.Snapshot)
			}
		})
	}
}

func TestManager_CurrentMismatch(t *testing.T) {
	m, _ := setupManager(t)
	if err := m.Write(m.Build(&Current{ID: "0001-auth", Completed: 2, Total: 2, Percentage: 100}, 1, nil)); err != nil {
		t.Fatal(err)
	}
	if res := m.Current("0002-search"); !res.NoActive {
		t.Error("expected NoActive for a different active increment")
	}
	if res := m.Current(""); !res.NoActive {
		t.Error("expected NoActive with nothing active")
	}
	if res := m.Current("0001-auth"); res.NoActive || res.Progress().Percentage != 100 {
		t.Errorf("expected cached progress, got %+v", res)
	}
}

func TestManager_CurrentStale(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(t *testing.T, tasks string)
		stale bool
	}{
		{name: "untouched", edit: func(t *testing.T, tasks string) {}, stale: false},
		{name: "rewritten later", edit: func(t *testing.T, tasks string) { writeSource(t, tasks, fixedNow.Add(time.Hour)) }, stale: true},
		{name: "removed", edit: func(t *testing.T, tasks string) {
			if err := os.Remove(tasks); err != nil {
				t.Fatal(err)
			}
		}, stale: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, layout := setupManager(t)
			tasks := layout.TasksPath("0001-auth")
			writeSource(t, tasks, fixedNow)
			s := m.Build(&Current{ID: "0001-auth", Completed: 2, Total: 2, Percentage: 100}, 1,
				map[string]time.Time{tasks: fixedNow})
			if err := m.Write(s); err != nil {
				t.Fatal(err)
			}

			tt.edit(t, tasks)
			res := m.Current("0001-auth")
			if res.NoActive {
				t.Fatal("expected the snapshot to describe the active increment")
			}
			if res.Stale != tt.stale {
				t.Errorf("expected stale=%v, got %v", tt.stale, res.Stale)
			}
			if tt.stale && res.Progress() != nil {
				t.Errorf("expected no progress from a stale snapshot, got %+v", res.Progress())
			}
		})
	}
}

func TestManager_RegenerateKeepsNewer(t *testing.T) {
	m, layout := setupManager(t)
	tasks := layout.TasksPath("0001-auth")

	newer := m.Build(&Current{ID: "0001-auth", Completed: 2, Total: 2, Percentage: 100}, 1,
		map[string]time.Time{tasks: fixedNow})
	if written, err := m.Regenerate(newer); err != nil || !written {
		t.Fatalf("expected first regeneration to write, got %v %v", written, err)
	}

	older := m.Build(&Current{ID: "0001-auth", Completed: 1, Total: 2, Percentage: 50}, 1,
		map[string]time.Time{tasks: fixedNow.Add(-time.Minute)})
	written, err := m.Regenerate(older)
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if written {
		t.Error("stale pass must not overwrite a newer snapshot")
	}
	if got := m.Read().Progress(); got == nil || got.Completed != 2 {
		t.Errorf("expected newer snapshot to survive, got %+v", got)
	}
}

func TestFormatStatusLine(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{
			name: "half done",
			res:  Result{Snapshot: &StatusSnapshot{Current: &Current{ID: "0001-auth", Completed: 4, Total: 8, Percentage: 50}, OpenCount: 1}},
			want: "[0001-auth] ████░░░░ 4/8 (50%)",
		},
		{
			name: "long name",
			res:  Result{Snapshot: &StatusSnapshot{Current: &Current{ID: "0012-very-long-increment-name", Completed: 0, Total: 3, Percentage: 0}, OpenCount: 3}},
			want: "[0012-very-long-incr…] ░░░░░░░░ 0/3 (0%) +2 open",
		},
		{
			name: "stale",
			res:  Result{Snapshot: &StatusSnapshot{Current: &Current{ID: "0001-auth", Completed: 2, Total: 2, Percentage: 100}, OpenCount: 1}, Stale: true},
			want: "[0001-auth] stale, run incsync sync",
		},
		{
			name: "no active",
			res:  Result{NoActive: true},
			want: "[no active increment]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatStatusLine(tt.res); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func strPtr(s string) *string { return &s }
