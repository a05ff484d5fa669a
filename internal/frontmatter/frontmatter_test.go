package frontmatter

import (
	"errors"
	"strings"
	"testing"
)

const specDoc = `---
increment: 0001-auth
status: active # lifecycle
priority: P2
total_tasks: 3
externalLinks:
  ado:
    featureId: 42
    featureUrl: https://dev.azure.com/x/42
---

# Spec
`

func TestParse(t *testing.T) {
	doc, err := Parse(specDoc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !doc.HasFrontMatter {
		t.Fatal("expected frontmatter")
	}
	if got, _ := doc.Get("status"); got != "active" {
		t.Errorf("expected status active, got %q", got)
	}
	if got, _ := doc.Get("externalLinks", "ado", "featureId"); got != "42" {
		t.Errorf("expected featureId 42, got %q", got)
	}
	if doc.Body() != "\n# Spec\n" {
		t.Errorf("unexpected body %q", doc.Body())
	}
	if doc.BodyLineOffset() != 10 {
		t.Errorf("expected body offset 10, got %d", doc.BodyLineOffset())
	}
	if doc.String() != specDoc {
		t.Errorf("round trip changed the document:\n%s", doc.String())
	}
}

func TestParse_NoFrontMatter(t *testing.T) {
	doc, err := Parse("# Tasks\n\n### T-001: thing\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.HasFrontMatter {
		t.Error("expected no frontmatter")
	}
	if doc.BodyLineOffset() != 0 {
		t.Errorf("expected offset 0, got %d", doc.BodyLineOffset())
	}
	if _, ok := doc.Get("status"); ok {
		t.Error("expected no status key")
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unclosed", content: "---\nstatus: active\n# body\n"},
		{name: "bad yaml", content: "---\nstatus: [active\n---\nbody\n"},
		{name: "list at top level", content: "---\n- a\n- b\n---\nbody\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			if !errors.Is(err, ErrMalformedFrontMatter) {
				t.Errorf("expected ErrMalformedFrontMatter, got %v", err)
			}
		})
	}
}

func TestSet_PreservesCommentsAndOrder(t *testing.T) {
	doc, err := Parse(specDoc)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	changed, err := doc.Set("completed", "status")
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !changed {
		t.Fatal("expected a change")
	}
	want := strings.Replace(specDoc, "status: active # lifecycle", "status: completed # lifecycle", 1)
	if doc.String() != want {
		t.Errorf("unexpected output:\n%s", doc.String())
	}

	changed, err = doc.Set("completed", "status")
	if err != nil || changed {
		t.Errorf("expected no-op on equal value, changed=%v err=%v", changed, err)
	}
}

func TestSet_NeverAddsKeys(t *testing.T) {
	doc, _ := Parse(specDoc)
	changed, err := doc.Set("2", "completed_tasks")
	if err != nil || changed {
		t.Errorf("expected absent key to be left alone, changed=%v err=%v", changed, err)
	}
	if doc.String() != specDoc {
		t.Error("document changed")
	}
}

func TestSet_QuotedValue(t *testing.T) {
	doc, _ := Parse("---\nstatus: \"draft\"\n---\n")
	if _, err := doc.Set("in-progress", "status"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if doc.String() != "---\nstatus: \"in-progress\"\n---\n" {
		t.Errorf("unexpected output %q", doc.String())
	}
}

func TestSet_EmptyValue(t *testing.T) {
	doc, _ := Parse("---\nstatus:\npriority: P1\n---\n")
	if _, err := doc.Set("active", "status"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if doc.String() != "---\nstatus: active\npriority: P1\n---\n" {
		t.Errorf("unexpected output %q", doc.String())
	}
}

func TestUpsert_NestedKey(t *testing.T) {
	doc, _ := Parse(specDoc)
	if _, err := doc.Upsert("2025-11-20T10:00:00Z", "externalLinks", "ado", "syncedAt"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	want := strings.Replace(specDoc,
		"    featureUrl: https://dev.azure.com/x/42\n",
		"    featureUrl: https://dev.azure.com/x/42\n    syncedAt: \"2025-11-20T10:00:00Z\"\n", 1)
	if doc.String() != want {
		t.Errorf("unexpected output:\n%s", doc.String())
	}

	// Second upsert rewrites in place
	if _, err := doc.Upsert("2025-11-21T10:00:00Z", "externalLinks", "ado", "syncedAt"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if got, _ := doc.Get("externalLinks", "ado", "syncedAt"); got != "2025-11-21T10:00:00Z" {
		t.Errorf("expected updated syncedAt, got %q", got)
	}
	if strings.Count(doc.String(), "syncedAt") != 1 {
		t.Errorf("expected one syncedAt line:\n%s", doc.String())
	}
}

func TestUpsert_CreatesMissingParents(t *testing.T) {
	doc, _ := Parse("---\nstatus: draft\n---\nbody\n")
	if _, err := doc.Upsert("2025-11-20T10:00:00Z", "externalLinks", "jira", "syncedAt"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	want := "---\nstatus: draft\nexternalLinks:\n  jira:\n    syncedAt: \"2025-11-20T10:00:00Z\"\n---\nbody\n"
	if doc.String() != want {
		t.Errorf("unexpected output:\n%q", doc.String())
	}
}

func TestCRLFPreserved(t *testing.T) {
	input := "---\r\nstatus: active\r\n---\r\nbody\r\n"
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.String() != input {
		t.Errorf("round trip changed line endings: %q", doc.String())
	}
	if _, err := doc.Set("paused", "status"); err != nil {
		t.Fatal(err)
	}
	if doc.String() != "---\r\nstatus: paused\r\n---\r\nbody\r\n" {
		t.Errorf("unexpected output %q", doc.String())
	}
}

func TestDecode(t *testing.T) {
	doc, _ := Parse(specDoc)
	var fm struct {
		Status     string `yaml:"status"`
		TotalTasks int    `yaml:"total_tasks"`
	}
	if err := doc.Decode(&fm); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if fm.Status != "active" || fm.TotalTasks != 3 {
		t.Errorf("unexpected decode result %+v", fm)
	}
}
