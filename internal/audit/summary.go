package audit

import (
	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/snapshot"
	"github.com/lherron/incsync/internal/store"
)

// Summary aggregates a batch audit
type Summary struct {
	Total    int              `json:"total"`
	Synced   int              `json:"synced"`
	Desynced int              `json:"desynced"`
	Skipped  int              `json:"skipped"`
	Findings []domain.Finding `json:"findings"`
	Errors   []error          `json:"-"`
	Reports  []*Report        `json:"-"`
}

// Failed reports whether the batch has a blocking finding or any error
func (s *Summary) Failed() bool {
	if len(s.Errors) > 0 {
		return true
	}
	for _, f := range s.Findings {
		if f.Severity.Blocking() {
			return true
		}
	}
	return false
}

// Add folds a finding produced outside the per-increment audit into the
// summary, keeping severity order
func (s *Summary) Add(findings ...domain.Finding) {
	s.Findings = append(s.Findings, findings...)
	SortFindings(s.Findings)
}

// AuditAll audits every id. A malformed increment is recorded in Errors and
// the batch continues.
func (a *Auditor) AuditAll(ws *store.Workspace, ids []string, cache snapshot.Result) *Summary {
	sum := &Summary{Findings: []domain.Finding{}}
	for _, id := range ids {
		sum.Total++
		view, err := ws.LoadView(id)
		if err != nil {
			sum.Errors = append(sum.Errors, &domain.IncrementError{IncrementID: id, Err: err})
			continue
		}
		report, err := a.AuditIncrement(view, cache)
		if err != nil {
			sum.Errors = append(sum.Errors, &domain.IncrementError{IncrementID: id, Err: err})
			continue
		}
		sum.Reports = append(sum.Reports, report)
		switch {
		case report.Skipped:
			sum.Skipped++
		case report.Desynced():
			sum.Desynced++
		default:
			sum.Synced++
		}
		sum.Findings = append(sum.Findings, report.Findings...)
	}
	SortFindings(sum.Findings)
	return sum
}
