package engine

import (
	"context"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/lherron/incsync/internal/audit"
	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/external"
	"github.com/lherron/incsync/internal/frontmatter"
	"github.com/lherron/incsync/internal/propagate"
)

// FileChange is one file a repair would rewrite
type FileChange struct {
	Path   string `json:"path"`
	Before string `json:"-"`
	After  string `json:"-"`
	Diff   string `json:"diff"`
}

// RepairPlan describes what a repair changes for one increment
type RepairPlan struct {
	IncrementID string                      `json:"incrementId"`
	Changes     []FileChange                `json:"changes"`
	Updates     []propagate.Update          `json:"updates,omitempty"`
	StatusFix   *domain.Finding             `json:"statusFix,omitempty"`
	Resolutions []domain.ExternalResolution `json:"resolutions,omitempty"`
	// Conflicts are left for a human; repair never clears a checked AC
	Conflicts []propagate.Conflict `json:"conflicts,omitempty"`
	Applied   bool                 `json:"applied"`
}

// Empty reports whether the increment is already consistent
func (p *RepairPlan) Empty() bool {
	return len(p.Changes) == 0
}

// RepairOptions controls a repair
type RepairOptions struct {
	// Apply writes the changes; otherwise the plan is a dry run
	Apply bool
	// Client, when set, also applies external resolutions from the tracker.
	// Increments the client has no record of are left alone.
	Client external.Client
}

// Repair plans (and with Apply, performs) the propagation rewrite plus a
// spec.md status fix. The tracker owns the status of a tracked increment;
// otherwise metadata.json does. Running it again after an applied repair
// yields an empty plan.
func (e *Engine) Repair(ctx context.Context, id string, opts RepairOptions) (*RepairPlan, error) {
	v, err := e.ws.LoadView(id)
	if err != nil {
		return nil, err
	}
	plan := &RepairPlan{IncrementID: id}

	res, err := propagate.Propagate(v.Spec.Text(), v.Tasks.Text())
	if err != nil {
		return nil, err
	}
	plan.Updates = res.Updates
	plan.Conflicts = res.Conflicts
	specText := res.Spec

	var ext *external.ExternalState
	if opts.Client != nil && v.Spec.Exists {
		ext, err = opts.Client.FetchStatus(ctx, id)
		switch {
		case domain.IsMissing(err):
			e.debugf("%s: not tracked externally", id)
			ext = nil
		case err != nil:
			return nil, err
		}
	}

	// A tracked increment takes its spec.md status from the tracker, so the
	// metadata status fix only runs for untracked ones.
	if ext == nil && v.Spec.Exists && v.Meta != nil && res.Parsed != nil {
		specStatus := domain.Status(res.Parsed.Fields.Status)
		if f, ok := audit.StatusFinding(id, v.Meta.Status, specStatus); ok {
			doc, err := frontmatter.Parse(specText)
			if err != nil {
				return nil, &domain.MalformedDocumentError{Path: v.Spec.Path, Line: 1, Reason: "invalid frontmatter", Err: err}
			}
			if _, err := doc.Upsert(string(v.Meta.Status), "status"); err != nil {
				return nil, fmt.Errorf("%s: failed to set status: %w", id, err)
			}
			specText = doc.String()
			plan.StatusFix = &f
		}
	}

	if ext != nil {
		local, err := external.LocalFromSpec(id, specText)
		if err != nil {
			return nil, err
		}
		if plan.Resolutions, err = e.resolver.Resolve(local, *ext); err != nil {
			return nil, err
		}
		if specText, err = e.resolver.Apply(specText, ext.Platform, ext.Status, plan.Resolutions); err != nil {
			return nil, err
		}
	}

	if res.TasksChanged {
		plan.Changes = append(plan.Changes, e.change(v.Tasks.Path, v.Tasks.Text(), res.Tasks))
	}
	if specText != v.Spec.Text() {
		plan.Changes = append(plan.Changes, e.change(v.Spec.Path, v.Spec.Text(), specText))
	}

	if !opts.Apply || plan.Empty() {
		return plan, nil
	}

	if res.TasksChanged {
		if err := e.ws.WriteTasks(id, res.Tasks); err != nil {
			return nil, err
		}
	}
	if specText != v.Spec.Text() {
		if err := e.ws.WriteSpec(id, specText); err != nil {
			return nil, err
		}
	}
	if len(plan.Resolutions) > 0 {
		if err := e.ws.WriteReport(id, external.RenderReport(plan.Resolutions, e.ctx.Now())); err != nil {
			return nil, err
		}
		e.recordResolutions(plan.Resolutions)
		e.logf("%s: %d %s resolution(s) applied (tracker status %q)", id, len(plan.Resolutions), ext.Platform, ext.Status)
	}
	plan.Applied = true

	if _, err := e.RefreshSnapshot(nil); err != nil {
		e.logf("%s: failed to refresh status snapshot: %v", id, err)
	}
	return plan, nil
}

// RepairSummary aggregates a batch repair
type RepairSummary struct {
	Plans  []*RepairPlan   `json:"plans"`
	Errors []error         `json:"-"`
	Run    *domain.SyncRun `json:"run"`
}

// RepairAll repairs ids, or every increment when ids is empty, isolating
// per-increment failures.
func (e *Engine) RepairAll(ctx context.Context, ids []string, opts RepairOptions) (*RepairSummary, error) {
	ids, err := e.resolveIDs(ids)
	if err != nil {
		return nil, err
	}
	run := &domain.SyncRun{Command: "repair", StartedAt: e.ctx.Now().UTC()}
	sum := &RepairSummary{Run: run}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		run.Total++
		plan, err := e.Repair(ctx, id, opts)
		if err != nil {
			sum.Errors = append(sum.Errors, &domain.IncrementError{IncrementID: id, Err: err})
			run.Errors++
			continue
		}
		sum.Plans = append(sum.Plans, plan)
		if plan.Empty() {
			run.Synced++
			continue
		}
		run.Desynced++
		if plan.Applied {
			run.FilesWritten += len(plan.Changes)
			e.recordRepair(id, run, plan)
		}
	}

	run.FinishedAt = e.ctx.Now().UTC()
	if opts.Apply {
		e.record(run)
	}
	return sum, nil
}

func (e *Engine) change(path, before, after string) FileChange {
	rel := e.ws.Layout().Rel(path)
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + rel,
		ToFile:   "b/" + rel,
		Context:  3,
	})
	if err != nil {
		diff = fmt.Sprintf("(diff unavailable: %v)\n", err)
	}
	return FileChange{Path: rel, Before: before, After: after, Diff: diff}
}

func (e *Engine) recordRepair(id string, run *domain.SyncRun, plan *RepairPlan) {
	if e.ledger == nil {
		return
	}
	files := make([]string, 0, len(plan.Changes))
	for _, c := range plan.Changes {
		files = append(files, c.Path)
	}
	stamp := *run
	stamp.FinishedAt = e.ctx.Now().UTC()
	if err := e.ledger.RecordRepair(id, &stamp, files); err != nil {
		e.logf("%s: failed to record repair: %v", id, err)
	}
}

func (e *Engine) recordResolutions(resolutions []domain.ExternalResolution) {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.Resolutions.Record(resolutions); err != nil {
		e.logf("failed to record resolutions: %v", err)
	}
}
