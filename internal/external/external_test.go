package external

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/frontmatter"
	"github.com/lherron/incsync/internal/paths"
)

var fixedNow = time.Date(2025, 11, 18, 12, 0, 0, 0, time.UTC)

func newTestResolver() *Resolver {
	return NewResolver(nil, func() time.Time { return fixedNow })
}

func TestMapExternalStatus(t *testing.T) {
	tests := []struct {
		platform Platform
		status   string
		want     SpecStatus
		known    bool
	}{
		{PlatformADO, "Active", SpecInProgress, true},
		{PlatformADO, "In Review", SpecInQA, true},
		{PlatformADO, "Removed", SpecCancelled, true},
		{PlatformJira, "Code Review", SpecImplemented, true},
		{PlatformJira, "Testing", SpecInQA, true},
		{PlatformJira, "Closed", SpecComplete, true},
		{PlatformGitHub, "closed", SpecComplete, true},
		{PlatformGitHub, "Closed", "", false},
		{PlatformJira, "Triage", "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.platform)+"/"+tt.status, func(t *testing.T) {
			got := MapExternalStatus(tt.platform, tt.status)
			if got.Known != tt.known || got.Status != tt.want {
				t.Errorf("expected %q known=%v, got %+v", tt.want, tt.known, got)
			}
		})
	}
}

func TestMapLocalStatus(t *testing.T) {
	if got, ok := MapLocalStatus(PlatformADO, SpecInQA); !ok || got != "In QA" {
		t.Errorf("expected In QA, got %q", got)
	}
	if got, _ := MapLocalStatus(PlatformJira, SpecImplemented); got != "Code Review" {
		t.Errorf("expected Code Review, got %q", got)
	}
	if got, _ := MapLocalStatus(PlatformGitHub, SpecCancelled); got != "closed" {
		t.Errorf("expected closed, got %q", got)
	}
	if _, ok := MapLocalStatus(PlatformGitHub, "unknown"); ok {
		t.Error("expected unknown local status to be unmapped")
	}
}

func TestResolve_ExternalWins(t *testing.T) {
	r := newTestResolver()
	local := LocalState{IncrementID: "0001-auth", Status: "in-progress", Priority: "P2"}
	ext := ExternalState{Platform: PlatformJira, Status: "Done", Priority: "P1"}

	got, err := r.Resolve(local, ext)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected status and priority, got %+v", got)
	}
	status := got[0]
	if status.Field != "status" || status.Winner != domain.WinnerExternal || status.ResolvedValue != "complete" ||
		status.LocalValue != "in-progress" || status.ExternalValue != "Done" || status.Reason != statusReason {
		t.Errorf("unexpected status resolution %+v", status)
	}
	if status.ID == "" || !status.Timestamp.Equal(fixedNow) {
		t.Errorf("expected id and timestamp, got %+v", status)
	}
	priority := got[1]
	if priority.Field != "priority" || priority.ResolvedValue != "P1" || priority.Reason != priorityReason {
		t.Errorf("unexpected priority resolution %+v", priority)
	}
}

func TestResolve_NothingToDo(t *testing.T) {
	r := newTestResolver()
	got, err := r.Resolve(
		LocalState{Status: "in-qa", Priority: "P1"},
		ExternalState{Platform: PlatformADO, Status: "In QA"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no resolutions when values agree and no external priority, got %+v", got)
	}
}

func TestResolve_UnknownStatus(t *testing.T) {
	_, err := newTestResolver().Resolve(LocalState{}, ExternalState{Platform: PlatformJira, Status: "Triage"})
	var unknown *UnknownStatusError
	if !errors.As(err, &unknown) || unknown.Status != "Triage" {
		t.Errorf("expected UnknownStatusError, got %v", err)
	}
	if _, err := newTestResolver().Resolve(LocalState{}, ExternalState{Platform: "linear", Status: "x"}); err == nil {
		t.Error("expected unknown platform error")
	}
}

const trackedSpec = `---
id: spec-001
status: in-progress
priority: P2 # set at planning
externalLinks:
  jira:
    issueKey: PROJ-1
    issueUrl: https://jira.example.com/PROJ-1
---

# Auth
`

func TestApply(t *testing.T) {
	r := newTestResolver()
	local, err := LocalFromSpec("0001-auth", trackedSpec)
	if err != nil {
		t.Fatal(err)
	}
	if local.Status != "in-progress" || local.Priority != "P2" {
		t.Fatalf("unexpected local state %+v", local)
	}
	resolutions, err := r.Resolve(local, ExternalState{Platform: PlatformJira, Status: "Done", Priority: "P1"})
	if err != nil {
		t.Fatal(err)
	}

	out, err := r.Apply(trackedSpec, PlatformJira, "Done", resolutions)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for _, want := range []string{
		"status: complete\n",
		"priority: P1 # set at planning\n",
		"    issueUrl: https://jira.example.com/PROJ-1\n",
		"\n# Auth\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	doc, err := frontmatter.Parse(out)
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}
	if v, _ := doc.Get("externalLinks", "jira", "syncedAt"); v != "2025-11-18T12:00:00Z" {
		t.Errorf("expected syncedAt stamped, got %q", v)
	}
	if v, _ := doc.Get("externalLinks", "jira", "lastExternalStatus"); v != "Done" {
		t.Errorf("expected lastExternalStatus Done, got %q", v)
	}

	again, err := r.Apply(out, PlatformJira, "Done", nil)
	if err != nil || again != out {
		t.Error("applying nothing must not change the text")
	}
}

func TestApply_CreatesExternalLinks(t *testing.T) {
	r := newTestResolver()
	spec := "---\nstatus: draft\n---\nbody\n"
	resolutions, _ := r.Resolve(LocalState{Status: "draft"}, ExternalState{Platform: PlatformGitHub, Status: "open"})
	out, err := r.Apply(spec, PlatformGitHub, "open", resolutions)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := frontmatter.Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := doc.Get("status"); v != "in-progress" {
		t.Errorf("expected in-progress, got %q", v)
	}
	if !doc.Has("externalLinks", "github", "syncedAt") {
		t.Errorf("expected externalLinks.github.syncedAt created:\n%s", out)
	}
}

func TestApply_RefusesLocalWinner(t *testing.T) {
	_, err := newTestResolver().Apply(trackedSpec, PlatformJira, "Done", []domain.ExternalResolution{
		{Field: "status", Winner: "local", ResolvedValue: "in-progress"},
	})
	if err == nil {
		t.Error("expected a local winner to be refused")
	}
}

func TestRenderReport(t *testing.T) {
	resolutions := []domain.ExternalResolution{{
		Field: "status", LocalValue: "in-progress", ExternalValue: "Done", Winner: domain.WinnerExternal,
		ResolvedValue: "complete", Reason: statusReason, Timestamp: fixedNow,
	}}
	got := RenderReport(resolutions, fixedNow)
	want := `# Conflict Resolution Report

**Generated**: 2025-11-18T12:00:00Z
**Total Resolutions**: 1

## Resolutions

### status
- **Local Value**: in-progress
- **External Value**: Done
- **Resolution**: EXTERNAL WINS
- **Resolved To**: complete
- **Reason**: External tool reflects QA and stakeholder decisions
- **Time**: 2025-11-18T12:00:00Z

## Validation
✅ All conflicts resolved with external tool priority
`
	if got != want {
		t.Errorf("unexpected report:\n%s", got)
	}
}

func TestFileClient(t *testing.T) {
	layout := paths.NewLayout(t.TempDir(), "")
	dir := layout.IncrementDir("0001-auth")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	client := NewFileClient(layout, PlatformADO)

	_, err := client.FetchStatus(context.Background(), "0001-auth")
	if !domain.IsMissing(err) {
		t.Errorf("expected missing external.yaml, got %v", err)
	}

	content := "status: Resolved\npriority: P0\nlastModified: 2025-11-17T08:00:00Z\n"
	if err := os.WriteFile(filepath.Join(dir, "external.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	st, err := client.FetchStatus(context.Background(), "0001-auth")
	if err != nil {
		t.Fatalf("FetchStatus failed: %v", err)
	}
	if st.Platform != PlatformADO || st.Status != "Resolved" || st.Priority != "P0" || st.LastModified.Day() != 17 {
		t.Errorf("unexpected state %+v", st)
	}

	if err := os.WriteFile(filepath.Join(dir, "external.yaml"), []byte("platform: linear\nstatus: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := client.FetchStatus(context.Background(), "0001-auth"); err == nil {
		t.Error("expected unknown platform error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.FetchStatus(ctx, "0001-auth"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSelfCheck_ResolverSource(t *testing.T) {
	for _, file := range []string{"resolver.go", "report.go"} {
		src, err := os.ReadFile(file)
		if err != nil {
			t.Fatal(err)
		}
		violations := SelfCheck(string(src))
		if file == "report.go" {
			// the report renders the winner at runtime and carries no
			// confirmation text of its own
			violations = dropMissingConfirmation(violations)
		}
		if len(violations) != 0 {
			t.Errorf("%s: expected no violations, got %v", file, violations)
		}
	}
}

func dropMissingConfirmation(in []string) []string {
	var out []string
	for _, v := range in {
		if v != "Missing confirmation that external wins" {
			out = append(out, v)
		}
	}
	return out
}

func TestSelfCheck_RejectsFlippedPrecedence(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"local winner literal", `res := domain.ExternalResolution{Winner: "local"} // external wins`},
		{"local winner constant", `return WinnerLocal // external wins`},
		{"prefer local", `// prefer the local status when the tracker lags; external wins otherwise`},
		{"script style", "if (conflict) { spec.status = localStatus } // external wins"},
		{"resolution local", "resolution: 'local', // external wins"},
		{"no confirmation", `func resolve() {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelfCheck(tt.src); len(got) == 0 {
				t.Error("expected at least one violation")
			}
		})
	}
}

func TestVerifyPolicy(t *testing.T) {
	if err := VerifyPolicy(newTestResolver()); err != nil {
		t.Errorf("expected policy to hold: %v", err)
	}
}
