package propagate

import (
	"strings"
	"testing"
)

const roundTripSpec = `---
status: active
---

## US-001: Checkout

- [ ] **AC-US1-01**: Cart total is shown
- [x] **AC-US1-02**: Payment is captured
`

const roundTripTasks = `### T-001: Show total
**AC**: AC-US1-01
**Status**: [x] completed

### T-002: Capture payment
**AC**: AC-US1-02
**Status**: [x] completed
`

func TestPropagate_RoundTrip(t *testing.T) {
	res, err := Propagate(roundTripSpec, roundTripTasks)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if !strings.Contains(res.Spec, "- [x] **AC-US1-01**: Cart total is shown") {
		t.Errorf("expected AC-US1-01 to be checked:\n%s", res.Spec)
	}
	if !strings.Contains(res.Spec, "- [x] **AC-US1-02**: Payment is captured") {
		t.Errorf("expected AC-US1-02 unchanged:\n%s", res.Spec)
	}

	var specUpdates []Update
	for _, u := range res.Updates {
		if u.File == FileSpec {
			specUpdates = append(specUpdates, u)
		}
	}
	if len(specUpdates) != 1 || specUpdates[0].Target != "AC-US1-01" {
		t.Errorf("expected exactly one spec update for AC-US1-01, got %+v", specUpdates)
	}
	if len(res.Conflicts) != 0 {
		t.Errorf("expected no conflicts, got %+v", res.Conflicts)
	}
	if !res.Synced {
		t.Error("expected synced=true after checking AC-US1-01")
	}

	again, err := Propagate(res.Spec, res.Tasks)
	if err != nil {
		t.Fatalf("second Propagate failed: %v", err)
	}
	if again.Synced || !again.InSync() {
		t.Errorf("expected second run to be a no-op, got updates %+v conflicts %+v", again.Updates, again.Conflicts)
	}
	if again.Spec != res.Spec || again.Tasks != res.Tasks {
		t.Error("second run changed bytes")
	}
}

func TestPropagate_PartialCompletionLeavesACUnchecked(t *testing.T) {
	spec := "## US-001: Search\n\n- [ ] **AC-US1-01**: Results are ranked\n"
	tasks := `### T-001: Index ✅ COMPLETE
**AC**: AC-US1-01
**Status**: completed

### T-002: Rank
**AC**: AC-US1-01
**Status**: [ ] pending
`
	res, err := Propagate(spec, tasks)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if res.Synced {
		t.Error("expected synced=false")
	}
	if len(res.Updates) != 0 {
		t.Errorf("expected zero updates, got %d", len(res.Updates))
	}
	if res.Spec != spec {
		t.Errorf("spec should be unchanged:\n%s", res.Spec)
	}
	if res.Progress.Percentage != 50 {
		t.Errorf("expected 50%%, got %d", res.Progress.Percentage)
	}
}

func TestPropagate_ManualCheckIsConflict(t *testing.T) {
	spec := "## US-001: Export\n\n- [x] **AC-US1-01**: CSV export works\n"
	tasks := "### T-001: CSV writer\n**AC**: AC-US1-01\n**Status**: [ ] pending\n"

	res, err := Propagate(spec, tasks)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if res.Synced || res.InSync() {
		t.Error("expected synced=false")
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(res.Conflicts))
	}
	c := res.Conflicts[0]
	if c.ACID != "AC-US1-01" || c.Marker != "[x]" {
		t.Errorf("expected conflict on AC-US1-01 [x], got %+v", c)
	}
	if len(c.Incomplete) != 1 || c.Incomplete[0] != "T-001" {
		t.Errorf("expected T-001 incomplete, got %v", c.Incomplete)
	}
	if res.Spec != spec {
		t.Error("conflicting AC must not be overwritten")
	}
	if got := c.Message(); got != "AC-US1-01: [x] but only 0/1 tasks complete (0%)" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestPropagate_UnlinkedACKeepsValue(t *testing.T) {
	spec := "## US-001: Docs\n\n- [x] **AC-US1-01**: Signed off manually\n- [ ] **AC-US1-02**: Pending review\n"
	tasks := "### T-001: Unrelated\n**Status**: completed\n"
	res, err := Propagate(spec, tasks)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if res.Spec != spec {
		t.Errorf("unlinked ACs should keep their value:\n%s", res.Spec)
	}
}

func TestPropagate_Badges(t *testing.T) {
	tasks := `### T-001: Done task
**Status**: [x] completed

### T-002: Open task ✅ COMPLETE
**Status**: [ ] pending
`
	res, err := Propagate("", tasks)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	want := `### T-001: Done task ✅ COMPLETE
**Status**: [x] completed

### T-002: Open task
**Status**: [ ] pending
`
	if res.Tasks != want {
		t.Errorf("unexpected tasks:\n%s", res.Tasks)
	}
	if len(res.Updates) != 2 {
		t.Errorf("expected 2 badge updates, got %+v", res.Updates)
	}
}

func TestPropagate_ProgressBlockAndCounters(t *testing.T) {
	tasks := `---
increment: 0002-search
total_tasks: 5
completed_tasks: 0
---

# Tasks

**Total Tasks**: 5
**Completed**: 0
**Progress**: 0%

### T-001: One
**Status**: completed

### T-002: Two
**Completed**: 2025-11-18

### T-003: Three
**Status**: [ ] pending
`
	res, err := Propagate("", tasks)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	for _, want := range []string{
		"total_tasks: 3\n",
		"completed_tasks: 2\n",
		"**Total Tasks**: 3\n",
		"**Completed**: 2\n",
		"**Progress**: 67%\n",
		"**Completed**: 2025-11-18\n",
	} {
		if !strings.Contains(res.Tasks, want) {
			t.Errorf("expected %q in output:\n%s", want, res.Tasks)
		}
	}

	again, err := Propagate("", res.Tasks)
	if err != nil {
		t.Fatalf("second Propagate failed: %v", err)
	}
	if len(again.Updates) != 0 || again.Tasks != res.Tasks {
		t.Errorf("expected idempotent output, got %+v", again.Updates)
	}
}

func TestPropagate_CountersNeverAdded(t *testing.T) {
	spec := "---\nstatus: active\n---\n\n- [ ] **AC-US1-01**: a\n"
	tasks := "### T-001: a\n**AC**: AC-US1-01\n**Status**: completed\n"
	res, err := Propagate(spec, tasks)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if strings.Contains(res.Spec, "total_tasks") || strings.Contains(res.Spec, "completed_tasks") {
		t.Errorf("counters must not be added:\n%s", res.Spec)
	}
}

func TestPropagate_MissingTasksLeavesSpecAlone(t *testing.T) {
	spec := "---\nstatus: active\ntotal_tasks: 4\n---\n\n- [ ] **AC-US1-01**: a\n"
	res, err := Propagate(spec, "")
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if res.Spec != spec || len(res.Updates) != 0 {
		t.Errorf("expected spec untouched without a checklist, got %+v", res.Updates)
	}
	if !res.Progress.Missing {
		t.Error("expected progress to be marked missing")
	}
}

func TestPropagate_CRLF(t *testing.T) {
	spec := "---\r\nstatus: active\r\n---\r\n- [ ] **AC-US1-01**: a\r\n"
	tasks := "### T-001: a\r\n**AC**: AC-US1-01\r\n**Status**: completed\r\n"
	res, err := Propagate(spec, tasks)
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}
	if res.Spec != "---\r\nstatus: active\r\n---\r\n- [x] **AC-US1-01**: a\r\n" {
		t.Errorf("unexpected spec %q", res.Spec)
	}
	if res.Tasks != "### T-001: a ✅ COMPLETE\r\n**AC**: AC-US1-01\r\n**Status**: completed\r\n" {
		t.Errorf("unexpected tasks %q", res.Tasks)
	}
}

func TestPropagate_MalformedSpec(t *testing.T) {
	_, err := Propagate("---\nstatus: [\n---\n", "### T-001: a\n")
	if err == nil || !strings.Contains(err.Error(), "spec.md") {
		t.Errorf("expected malformed spec.md error, got %v", err)
	}
}
