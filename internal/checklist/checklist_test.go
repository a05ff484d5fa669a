package checklist

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/lherron/incsync/internal/domain"
)

const redundantMarkers = `# Tasks

**Total Tasks**: 2
**Completed**: 0
**Progress**: 0%

### T-001: Wire login form

**AC**: AC-US1-01
**Status**: [x] completed
**Completed**: 2025-11-18

#### Implementation
- [x] Add form
- [x] Add validation

### T-002: Session refresh

**AC**: AC-US1-02
**Status**: [ ] pending

- [x] Design
- [ ] Build
`

func TestExtract_RedundantMarkersCountOnce(t *testing.T) {
	p, err := Extract(redundantMarkers)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.Completed != 1 || p.Total != 2 || p.Percentage != 50 {
		t.Errorf("expected completed=1 total=2 percentage=50, got completed=%d total=%d percentage=%d",
			p.Completed, p.Total, p.Percentage)
	}

	t1, ok := p.Task("T-001")
	if !ok {
		t.Fatal("T-001 not found")
	}
	if !t1.Completed {
		t.Error("expected T-001 to be completed")
	}
	wantMarkers := []Marker{MarkerStatusCheckbox, MarkerCompletedDate, MarkerCheckboxes}
	if !reflect.DeepEqual(t1.Markers, wantMarkers) {
		t.Errorf("expected markers %v, got %v", wantMarkers, t1.Markers)
	}

	t2, _ := p.Task("T-002")
	if t2.Completed {
		t.Errorf("expected T-002 incomplete, markers %v", t2.Markers)
	}
	if p.Pending() != 1 {
		t.Errorf("expected 1 pending, got %d", p.Pending())
	}
}

func TestExtract_MarkerStyles(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  bool
	}{
		{name: "status checkbox", block: "**Status**: [x] Completed\n", want: true},
		{name: "status field", block: "**Status**: completed\n", want: true},
		{name: "status done", block: "**Status**: ✅ Done\n", want: true},
		{name: "completion date", block: "**Completed**: 2025-11-18\n", want: true},
		{name: "all checkboxes", block: "- [x] one\n- [x] two\n", want: true},
		{name: "partial checkboxes", block: "- [x] one\n- [ ] two\n", want: false},
		{name: "unchecked status", block: "**Status**: [ ] Completed\n", want: false},
		{name: "incomplete status", block: "**Status**: incomplete\n", want: false},
		{name: "in progress", block: "**Status**: in progress\n", want: false},
		{name: "completed without date", block: "**Completed**: soon\n", want: false},
		{name: "no markers", block: "Just text.\n", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Extract("### T-001: Task\n\n" + tt.block)
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if p.Total != 1 {
				t.Fatalf("expected 1 task, got %d", p.Total)
			}
			if p.Tasks[0].Completed != tt.want {
				t.Errorf("expected completed=%v, got %v (markers %v)", tt.want, p.Tasks[0].Completed, p.Tasks[0].Markers)
			}
		})
	}
}

func TestExtract_BadgeIsNotAMarker(t *testing.T) {
	p, err := Extract("### T-001: Task ✅ COMPLETE\n\n**Status**: [ ] pending\n")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.Completed != 0 {
		t.Errorf("hand-edited badge must not count, got completed=%d", p.Completed)
	}
	if !p.Tasks[0].Badge {
		t.Error("expected badge to be recorded")
	}
	if p.Tasks[0].Title != "Task" {
		t.Errorf("expected badge stripped from title, got %q", p.Tasks[0].Title)
	}
}

func TestExtract_BlockBoundaries(t *testing.T) {
	content := `## Phase 1

### T-001: First
- [x] done

## Phase 2

- [ ] stray item in phase notes

### T-002: Second
**Status**: completed
`
	p, err := Extract(content)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.Completed != 2 || p.Total != 2 {
		t.Errorf("expected 2/2, got %d/%d", p.Completed, p.Total)
	}
}

func TestExtract_ACReferences(t *testing.T) {
	p, err := Extract("### T-010E: Imported\n**AC**: AC-US1-01, AC-US1-02\n**Satisfies ACs**: AC-US1-02, AC-US2-01\n")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	want := []string{"AC-US1-01", "AC-US1-02", "AC-US2-01"}
	if !reflect.DeepEqual(p.Tasks[0].ACs, want) {
		t.Errorf("expected ACs %v, got %v", want, p.Tasks[0].ACs)
	}
	if p.Tasks[0].ID != "T-010E" {
		t.Errorf("expected external task id, got %s", p.Tasks[0].ID)
	}
}

func TestExtract_CodeFenceIgnored(t *testing.T) {
	content := "### T-001: Real\n\n```markdown\n### T-999: Example only\n**Status**: completed\n```\n"
	p, err := Extract(content)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.Total != 1 || p.Completed != 0 {
		t.Errorf("expected fenced example to be ignored, got %d/%d", p.Completed, p.Total)
	}
}

func TestExtract_DuplicateTaskIsMalformed(t *testing.T) {
	content := "---\ntotal_tasks: 2\n---\n### T-001: A\n\n### T-001: B\n"
	_, err := Extract(content)
	var malformed *domain.MalformedDocumentError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedDocumentError, got %v", err)
	}
	if malformed.Line != 6 {
		t.Errorf("expected line 6, got %d", malformed.Line)
	}
}

func TestExtract_MalformedFrontMatter(t *testing.T) {
	_, err := Extract("---\ntotal_tasks: [\n---\n### T-001: A\n")
	if domain.KindOf(err) != domain.KindMalformedDocument {
		t.Errorf("expected malformed document, got %v", err)
	}
}

func TestExtractFile_Missing(t *testing.T) {
	p, err := ExtractFile(filepath.Join(t.TempDir(), "tasks.md"))
	if err != nil {
		t.Fatalf("missing checklist should not be an error: %v", err)
	}
	if !p.Missing || p.Total != 0 || p.Completed != 0 || p.Percentage != 0 {
		t.Errorf("expected zero-state, got %+v", p)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{1, 2, 50},
		{2, 3, 67},
		{1, 3, 33},
		{3, 3, 100},
		{5, 3, 100},
		{-1, 3, 0},
	}
	for _, tt := range tests {
		if got := Percentage(tt.completed, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestParseSpec(t *testing.T) {
	content := `---
status: active
total_tasks: 2
---

# Auth

## US-001: Login

**Acceptance Criteria**:
- [ ] **AC-US1-01**: User can log in
- [x] AC-US1-02: Session persists

## US-002: Logout
- [ ] **AC-US2-01**: User can log out

## Notes
- [x] not an AC
`
	s, err := ParseSpec(content)
	if err != nil {
		t.Fatalf("ParseSpec failed: %v", err)
	}
	if s.Fields.Status != "active" {
		t.Errorf("expected status active, got %q", s.Fields.Status)
	}
	if s.Fields.TotalTasks == nil || *s.Fields.TotalTasks != 2 {
		t.Errorf("expected total_tasks 2, got %v", s.Fields.TotalTasks)
	}
	if s.Fields.CompletedTasks != nil {
		t.Error("expected completed_tasks absent")
	}
	if len(s.Stories) != 2 {
		t.Fatalf("expected 2 stories, got %d", len(s.Stories))
	}
	if len(s.Stories[0].Criteria) != 2 || len(s.Stories[1].Criteria) != 1 {
		t.Errorf("unexpected criteria grouping: %+v", s.Stories)
	}
	if len(s.Criteria) != 3 {
		t.Fatalf("expected 3 criteria, got %d", len(s.Criteria))
	}
	ac, ok := s.Criterion("AC-US1-02")
	if !ok || !ac.Completed || ac.StoryID != "US-001" || ac.Text != "Session persists" {
		t.Errorf("unexpected AC-US1-02: %+v", ac)
	}
	if s.Criteria[0].Line != 11 {
		t.Errorf("expected AC-US1-01 on line 11, got %d", s.Criteria[0].Line)
	}
}
