// Package audit cross-checks an increment's representations and classifies
// every divergence it finds. It never writes.
package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/lherron/incsync/internal/checklist"
	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/propagate"
	"github.com/lherron/incsync/internal/snapshot"
	"github.com/lherron/incsync/internal/store"
)

// Report is the audit of one increment
type Report struct {
	IncrementID string              `json:"incrementId"`
	Findings    []domain.Finding    `json:"findings"`
	Skipped     bool                `json:"skipped,omitempty"`
	SkipReason  string              `json:"skipReason,omitempty"`
	Progress    *checklist.Progress `json:"-"`

	// Propagation is the dry-run propagation the audit was based on
	Propagation *propagate.Result `json:"-"`
}

// Desynced reports whether any finding describes real divergence
func (r *Report) Desynced() bool {
	for _, f := range r.Findings {
		if !f.Kind.Informational() {
			return true
		}
	}
	return false
}

// Auditor inspects increments against the cached snapshot
type Auditor struct {
	now func() time.Time
}

// New creates an Auditor. A nil clock uses time.Now.
func New(now func() time.Time) *Auditor {
	if now == nil {
		now = time.Now
	}
	return &Auditor{now: now}
}

// AuditIncrement produces the findings for one increment view. Increments
// missing spec.md or metadata.json are skipped. cache is the snapshot as
// readers currently see it.
func (a *Auditor) AuditIncrement(v *store.View, cache snapshot.Result) (*Report, error) {
	report := &Report{IncrementID: v.ID}
	switch {
	case !v.Spec.Exists:
		report.Skipped, report.SkipReason = true, "spec.md missing"
		return report, nil
	case v.Meta == nil:
		report.Skipped, report.SkipReason = true, "metadata.json missing"
		return report, nil
	}

	res, err := propagate.Propagate(v.Spec.Text(), v.Tasks.Text())
	if err != nil {
		return nil, err
	}
	if res.Parsed == nil {
		report.Skipped, report.SkipReason = true, "spec.md empty"
		return report, nil
	}
	report.Propagation = res
	report.Progress = res.Progress

	var findings []domain.Finding
	if f, ok := StatusFinding(v.ID, v.Meta.Status, domain.Status(res.Parsed.Fields.Status)); ok {
		findings = append(findings, f)
	}
	findings = append(findings, conflictFindings(v.ID, res)...)
	findings = append(findings, driftFindings(v.ID, res)...)
	findings = append(findings, mappingFindings(v.ID, res)...)
	findings = append(findings, a.cacheFindings(v.ID, res.Progress, cache)...)

	SortFindings(findings)
	report.Findings = findings
	return report, nil
}

// ClassifyStatus grades a mismatch between the metadata and spec status.
// Tracker words in spec.md such as complete or in-progress are graded as
// the lifecycle status they stand for.
func ClassifyStatus(metadata, spec domain.Status) domain.Severity {
	metadata, spec = domain.LifecycleStatus(string(metadata)), domain.LifecycleStatus(string(spec))
	switch {
	case spec == domain.StatusActive &&
		(metadata == domain.StatusCompleted || metadata == domain.StatusPaused || metadata == domain.StatusAbandoned):
		return domain.SeverityCritical
	case metadata == domain.StatusActive && (spec == domain.StatusCompleted || spec == domain.StatusPaused):
		return domain.SeverityHigh
	case metadata == domain.StatusPaused && spec == domain.StatusCompleted:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// StatusFinding returns a status_desync finding when the two statuses
// differ after mapping spec words onto the lifecycle. ValueB keeps the word
// as written in spec.md.
func StatusFinding(id string, metadata, spec domain.Status) (domain.Finding, bool) {
	if domain.LifecycleStatus(string(metadata)) == domain.LifecycleStatus(string(spec)) {
		return domain.Finding{}, false
	}
	severity := ClassifyStatus(metadata, spec)
	return domain.Finding{
		IncrementID: id,
		Kind:        domain.FindingStatusDesync,
		Field:       "status",
		ValueA:      string(metadata),
		ValueB:      string(spec),
		Severity:    severity,
		Impact:      statusImpact(severity),
		Fix:         fmt.Sprintf("incsync repair %s --apply", id),
	}, true
}

func statusImpact(severity domain.Severity) string {
	switch severity {
	case domain.SeverityCritical:
		return "a closed or paused increment is displayed as in progress"
	case domain.SeverityHigh:
		return "active work appears finished or stalled"
	case domain.SeverityMedium:
		return "a paused increment is displayed as completed"
	default:
		return "metadata.json and spec.md disagree on status"
	}
}

func conflictFindings(id string, res *propagate.Result) []domain.Finding {
	var out []domain.Finding
	for _, c := range res.Conflicts {
		done := len(c.LinkedTasks) - len(c.Incomplete)
		out = append(out, domain.Finding{
			IncrementID: id,
			Kind:        domain.FindingACConflict,
			Field:       c.ACID,
			ValueA:      c.Marker,
			ValueB:      fmt.Sprintf("%d/%d tasks complete", done, len(c.LinkedTasks)),
			Severity:    domain.SeverityHigh,
			Impact:      c.Message(),
			Fix:         fmt.Sprintf("complete %v in tasks.md or uncheck %s in spec.md", c.Incomplete, c.ACID),
		})
	}
	return out
}

// driftFindings turns every pending derived-marker rewrite into a finding
func driftFindings(id string, res *propagate.Result) []domain.Finding {
	var out []domain.Finding
	for _, u := range res.Updates {
		kind := domain.FindingMarkerDrift
		if u.Target == "total_tasks" || u.Target == "completed_tasks" {
			kind = domain.FindingCounterDrift
		}
		out = append(out, domain.Finding{
			IncrementID: id,
			Kind:        kind,
			Field:       u.File + ":" + u.Target,
			ValueA:      u.From,
			ValueB:      u.To,
			Severity:    domain.SeverityLow,
			Impact:      "derived marker disagrees with task state",
			Fix:         fmt.Sprintf("incsync sync %s", id),
		})
	}
	if res.Progress.Missing {
		out = append(out, domain.Finding{
			IncrementID: id,
			Kind:        domain.FindingMissingTasks,
			Field:       propagate.FileTasks,
			ValueA:      "missing",
			ValueB:      "0/0",
			Severity:    domain.SeverityMedium,
			Impact:      "progress is reported as zero",
			Fix:         fmt.Sprintf("create tasks.md in the %s increment directory", id),
		})
	}
	return out
}

// mappingFindings reports task AC references with no matching criterion and
// criteria no task covers
func mappingFindings(id string, res *propagate.Result) []domain.Finding {
	if res.Progress.Missing || res.Parsed == nil {
		return nil
	}
	var out []domain.Finding
	seen := make(map[string]bool)
	for _, t := range res.Progress.Tasks {
		for _, ref := range t.ACs {
			if _, ok := res.Parsed.Criterion(ref); ok || seen[ref] {
				continue
			}
			seen[ref] = true
			out = append(out, domain.Finding{
				IncrementID: id,
				Kind:        domain.FindingOrphanACRef,
				Field:       ref,
				ValueA:      t.ID,
				ValueB:      "not in spec.md",
				Severity:    domain.SeverityLow,
				Impact:      "task completion cannot propagate to an acceptance criterion",
				Fix:         fmt.Sprintf("fix the AC reference in %s or add %s to spec.md", t.ID, ref),
			})
		}
	}

	linked := propagate.LinkedTasks(res.Progress)
	for _, ac := range res.Parsed.Criteria {
		if len(linked[ac.ID]) > 0 {
			continue
		}
		out = append(out, domain.Finding{
			IncrementID: id,
			Kind:        domain.FindingUncoveredAC,
			Field:       ac.ID,
			ValueA:      checkbox(ac.Completed),
			ValueB:      "no linked tasks",
			Severity:    domain.SeverityLow,
			Impact:      "acceptance criterion is only tracked by hand",
			Fix:         fmt.Sprintf("reference %s from a task in tasks.md", ac.ID),
		})
	}
	return out
}

func (a *Auditor) cacheFindings(id string, progress *checklist.Progress, cache snapshot.Result) []domain.Finding {
	cur := cache.Progress()
	if cur == nil || cur.ID != id {
		return nil
	}
	var out []domain.Finding
	cached := fmt.Sprintf("%d/%d (%d%%)", cur.Completed, cur.Total, cur.Percentage)
	actual := fmt.Sprintf("%d/%d (%d%%)", progress.Completed, progress.Total, progress.Percentage)
	if cached != actual {
		out = append(out, domain.Finding{
			IncrementID: id,
			Kind:        domain.FindingCacheDrift,
			Field:       "status-line.json",
			ValueA:      cached,
			ValueB:      actual,
			Severity:    domain.SeverityMedium,
			Impact:      "status display shows stale progress",
			Fix:         fmt.Sprintf("incsync sync %s", id),
		})
	}
	if age := a.now().Sub(cache.Snapshot.LastUpdate); age > snapshot.MaxAge {
		out = append(out, domain.Finding{
			IncrementID: id,
			Kind:        domain.FindingCacheDrift,
			Field:       "lastUpdate",
			ValueA:      cache.Snapshot.LastUpdate.UTC().Format(time.RFC3339),
			ValueB:      fmt.Sprintf("%.0f hours old", age.Hours()),
			Severity:    domain.SeverityLow,
			Impact:      "status cache has not been regenerated for over a day",
			Fix:         fmt.Sprintf("incsync sync %s", id),
		})
	}
	return out
}

func checkbox(checked bool) string {
	if checked {
		return "[x]"
	}
	return "[ ]"
}

// SortFindings orders findings CRITICAL first. Findings of equal severity
// keep their relative order.
func SortFindings(findings []domain.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() < findings[j].Severity.Rank()
	})
}
