package engine

import (
	"time"

	"github.com/lherron/incsync/internal/audit"
	"github.com/lherron/incsync/internal/checklist"
	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/lifecycle"
	"github.com/lherron/incsync/internal/propagate"
	"github.com/lherron/incsync/internal/snapshot"
	"github.com/lherron/incsync/internal/store"
)

// SyncResult is the outcome of one increment's sync pass
type SyncResult struct {
	IncrementID     string            `json:"incrementId"`
	Skipped         bool              `json:"skipped,omitempty"`
	Propagation     *propagate.Result `json:"propagation,omitempty"`
	Written         []string          `json:"written,omitempty"`
	SnapshotWritten bool              `json:"snapshotWritten"`
	Report          *audit.Report     `json:"report,omitempty"`
}

// SyncSummary aggregates a batch sync
type SyncSummary struct {
	Results []*SyncResult   `json:"results"`
	Errors  []error         `json:"-"`
	Run     *domain.SyncRun `json:"run"`
}

// Failed reports whether any increment errored or still has a blocking
// finding after propagation.
func (s *SyncSummary) Failed() bool {
	if len(s.Errors) > 0 {
		return true
	}
	for _, r := range s.Results {
		if r.Report == nil {
			continue
		}
		for _, f := range r.Report.Findings {
			if f.Severity.Blocking() {
				return true
			}
		}
	}
	return false
}

// Sync runs Extractor, Propagator, Cache Manager and Auditor for one
// increment. All three artifacts are read once at the start; derived
// documents are written only when propagation changed them, and only their
// mtimes are taken from disk afterwards.
func (e *Engine) Sync(id string) (*SyncResult, error) {
	v, err := e.ws.LoadView(id)
	if err != nil {
		return nil, err
	}
	result := &SyncResult{IncrementID: id}
	if !v.Spec.Exists && !v.Tasks.Exists {
		result.Skipped = true
		e.debugf("%s: nothing to sync", id)
		return result, nil
	}

	res, err := propagate.Propagate(v.Spec.Text(), v.Tasks.Text())
	if err != nil {
		return nil, err
	}
	result.Propagation = res

	// the view takes the written text and its new mtime so the snapshot and
	// the audit describe this pass's output
	if res.TasksChanged {
		if err := e.ws.WriteTasks(id, res.Tasks); err != nil {
			return nil, err
		}
		if err := v.Tasks.Rewritten(res.Tasks); err != nil {
			return nil, err
		}
		result.Written = append(result.Written, e.ws.Layout().Rel(v.Tasks.Path))
	}
	if res.SpecChanged {
		if err := e.ws.WriteSpec(id, res.Spec); err != nil {
			return nil, err
		}
		if err := v.Spec.Rewritten(res.Spec); err != nil {
			return nil, err
		}
		result.Written = append(result.Written, e.ws.Layout().Rel(v.Spec.Path))
	}
	if len(result.Written) > 0 {
		e.logf("%s: %d update(s) written to %v", id, len(res.Updates), result.Written)
	}

	written, err := e.RefreshSnapshot(v)
	if err != nil {
		e.logf("%s: failed to refresh status snapshot: %v", id, err)
	}
	result.SnapshotWritten = written

	report, err := e.auditor.AuditIncrement(v, e.snaps.Read())
	if err != nil {
		return nil, err
	}
	result.Report = report
	return result, nil
}

// SyncAll syncs ids, or every increment when ids is empty. A failing
// increment is reported in Errors and the batch continues.
func (e *Engine) SyncAll(ids []string) (*SyncSummary, error) {
	ids, err := e.resolveIDs(ids)
	if err != nil {
		return nil, err
	}
	run := &domain.SyncRun{Command: "sync", StartedAt: e.ctx.Now().UTC()}
	sum := &SyncSummary{Run: run}

	for _, id := range ids {
		run.Total++
		res, err := e.Sync(id)
		if err != nil {
			e.logf("%s: sync failed: %v", id, err)
			sum.Errors = append(sum.Errors, &domain.IncrementError{IncrementID: id, Err: err})
			run.Errors++
			continue
		}
		sum.Results = append(sum.Results, res)
		run.FilesWritten += len(res.Written)
		switch {
		case res.Skipped || res.Report.Skipped:
			run.Skipped++
		case res.Report.Desynced():
			run.Desynced++
			run.Findings += len(res.Report.Findings)
		default:
			run.Synced++
			run.Findings += len(res.Report.Findings)
		}
	}

	run.FinishedAt = e.ctx.Now().UTC()
	e.record(run)
	return sum, nil
}

// Validate audits ids (every increment when empty) without writing, and
// adds standing WIP discipline findings.
func (e *Engine) Validate(ids []string) (*audit.Summary, error) {
	ids, err := e.resolveIDs(ids)
	if err != nil {
		return nil, err
	}
	run := &domain.SyncRun{Command: "validate", StartedAt: e.ctx.Now().UTC()}

	sum := e.auditor.AuditAll(e.ws, ids, e.snaps.Read())
	violations, err := e.Governor().CheckAll()
	if err != nil {
		sum.Errors = append(sum.Errors, err)
	} else {
		sum.Add(lifecycle.DisciplineFindings(violations)...)
	}

	run.FinishedAt = e.ctx.Now().UTC()
	run.Total, run.Synced, run.Desynced, run.Skipped = sum.Total, sum.Synced, sum.Desynced, sum.Skipped
	run.Errors, run.Findings = len(sum.Errors), len(sum.Findings)
	e.record(run)
	return sum, nil
}

// RefreshSnapshot regenerates status-line.json for the primary active
// increment. v is reused when it is that increment's view; any other view
// is loaded fresh.
func (e *Engine) RefreshSnapshot(v *store.View) (bool, error) {
	active, err := e.ws.PrimaryActive()
	if err != nil {
		return false, err
	}
	openCount, err := e.OpenCount()
	if err != nil {
		return false, err
	}

	var current *snapshot.Current
	var sources map[string]time.Time
	if active != "" {
		if v == nil || v.ID != active {
			if v, err = e.ws.LoadView(active); err != nil {
				if !domain.IsMissing(err) {
					return false, err
				}
				e.logf("active increment %s no longer exists", active)
				active, v = "", nil
			}
		}
	}
	if active != "" {
		progress := &checklist.Progress{Missing: true}
		if v.Tasks.Exists {
			if progress, err = checklist.Extract(v.Tasks.Text()); err != nil {
				return false, checklist.WithPath(err, v.Tasks.Path)
			}
		}
		current = &snapshot.Current{
			ID:         active,
			Completed:  progress.Completed,
			Total:      progress.Total,
			Percentage: progress.Percentage,
		}
		sources = v.ModTimes()
	}

	return e.snaps.Regenerate(e.snaps.Build(current, openCount, sources))
}

// OpenCount counts increments in planning, active or paused. Increments
// without readable metadata are not counted.
func (e *Engine) OpenCount() (int, error) {
	ids, err := e.ws.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		m, err := e.ws.ReadMetadata(id)
		if err != nil {
			continue
		}
		switch m.Status {
		case domain.StatusPlanning, domain.StatusActive, domain.StatusPaused:
			n++
		}
	}
	return n, nil
}

func (e *Engine) resolveIDs(ids []string) ([]string, error) {
	if len(ids) > 0 {
		return ids, nil
	}
	return e.ws.List()
}
