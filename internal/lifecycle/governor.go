package lifecycle

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/frontmatter"
	"github.com/lherron/incsync/internal/propagate"
	"github.com/lherron/incsync/internal/store"
)

// Recorder stores committed transitions. The ledger implements it.
type Recorder interface {
	RecordTransition(t *domain.Transition) error
}

// Request asks for one lifecycle change
type Request struct {
	ID        string
	Action    Action
	Reason    string
	Confirmed bool
}

// Decision is the outcome of evaluating a request. Violations block the
// change, Warnings do not.
type Decision struct {
	IncrementID string             `json:"incrementId"`
	Action      Action             `json:"action"`
	From        domain.Status      `json:"from"`
	To          domain.Status      `json:"to"`
	Allowed     bool               `json:"allowed"`
	Applied     bool               `json:"applied"`
	Violations  []domain.Violation `json:"violations,omitempty"`
	Warnings    []domain.Violation `json:"warnings,omitempty"`
}

func (d *Decision) add(v domain.Violation) {
	if v.Severity == domain.SeverityWarning {
		d.Warnings = append(d.Warnings, v)
		return
	}
	d.Violations = append(d.Violations, v)
}

// Options configures a Governor
type Options struct {
	Limits   Limits
	Recorder Recorder
	Logger   *log.Logger
	Now      func() time.Time
}

// fileWriter commits the two files a transition rewrites
type fileWriter interface {
	WriteSpec(id, content string) error
	WriteMetadata(m *domain.Metadata) error
}

// Governor validates and commits lifecycle transitions
type Governor struct {
	ws       *store.Workspace
	files    fileWriter
	limits   Limits
	recorder Recorder
	logger   *log.Logger
	now      func() time.Time
}

// New creates a Governor over ws
func New(ws *store.Workspace, opts Options) *Governor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Limits.HardCap == 0 && opts.Limits.SoftLimit == 0 {
		opts.Limits = DefaultLimits()
	}
	return &Governor{
		ws:       ws,
		files:    ws,
		limits:   opts.Limits,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// Limits returns the discipline limits in force
func (g *Governor) Limits() Limits {
	return g.limits
}

// Evaluate checks req without changing anything
func (g *Governor) Evaluate(req Request) (*Decision, error) {
	m, err := g.ws.ReadMetadata(req.ID)
	if err != nil {
		return nil, err
	}
	return g.evaluate(req, m)
}

func (g *Governor) evaluate(req Request, m *domain.Metadata) (*Decision, error) {
	d := &Decision{IncrementID: req.ID, Action: req.Action, From: m.Status, To: req.Action.Target()}
	if d.To == "" {
		return nil, fmt.Errorf("unknown lifecycle action %q", req.Action)
	}

	if !req.Action.Allowed(m.Status) {
		d.add(domain.Violation{
			Type:       domain.ViolationInvalidTransition,
			Message:    fmt.Sprintf("Cannot %s %s: status is %s", req.Action, req.ID, m.Status),
			Suggestion: fmt.Sprintf("Allowed from %s: %v", m.Status, Transitions[m.Status]),
			Severity:   domain.SeverityHigh,
		})
		return d, nil
	}

	switch req.Action {
	case ActionStart, ActionResume, ActionReopen:
		if req.Action == ActionReopen && m.Status == domain.StatusCompleted && !req.Confirmed {
			d.add(domain.Violation{
				Type:       domain.ViolationConfirmationRequired,
				Message:    fmt.Sprintf("Reopening %s reintroduces work in progress", req.ID),
				Suggestion: "Re-run with --yes to confirm",
				Severity:   domain.SeverityHigh,
			})
		}
		active, err := g.activeSet(req.ID)
		if err != nil {
			return nil, err
		}
		for _, v := range CheckDiscipline(active, m, g.limits) {
			d.add(v)
		}
	case ActionComplete:
		violations, err := g.completionViolations(req.ID)
		if err != nil {
			return nil, err
		}
		for _, v := range violations {
			d.add(v)
		}
	}

	d.Allowed = len(d.Violations) == 0
	return d, nil
}

// completionViolations requires every task done and every AC checked once
// propagation has run. Both documents must exist.
func (g *Governor) completionViolations(id string) ([]domain.Violation, error) {
	v, err := g.ws.LoadView(id)
	if err != nil {
		return nil, err
	}
	if !v.Spec.Exists {
		return nil, &domain.MissingArtifactError{IncrementID: id, Artifact: propagate.FileSpec, Path: v.Spec.Path}
	}
	if !v.Tasks.Exists {
		return nil, &domain.MissingArtifactError{IncrementID: id, Artifact: propagate.FileTasks, Path: v.Tasks.Path}
	}
	res, err := propagate.Propagate(v.Spec.Text(), v.Tasks.Text())
	if err != nil {
		return nil, err
	}

	checkedNow := make(map[string]bool)
	for _, u := range res.Updates {
		if u.File == propagate.FileSpec && u.To == "[x]" {
			checkedNow[u.Target] = true
		}
	}
	openACs := 0
	if res.Parsed != nil {
		for _, ac := range res.Parsed.Criteria {
			if !ac.Completed && !checkedNow[ac.ID] {
				openACs++
			}
		}
	}
	pending := res.Progress.Pending()

	var violations []domain.Violation
	if openACs > 0 || pending > 0 {
		violations = append(violations, domain.Violation{
			Type:       domain.ViolationIncompleteWork,
			Message:    fmt.Sprintf("Cannot complete %s: %d open acceptance criteria, %d pending tasks", id, openACs, pending),
			Suggestion: "Finish the open work, or abandon the increment",
			Severity:   domain.SeverityHigh,
			Context: map[string]int{
				"openACs":      openACs,
				"pendingTasks": pending,
			},
		})
	}
	for _, c := range res.Conflicts {
		violations = append(violations, domain.Violation{
			Type:       domain.ViolationUnresolvedConflict,
			Message:    c.Message(),
			Suggestion: fmt.Sprintf("Complete %v or uncheck %s", c.Incomplete, c.ACID),
			Severity:   domain.SeverityHigh,
		})
	}
	return violations, nil
}

// activeSet loads the metadata of every active increment except exclude.
// Unreadable increments are logged and left out.
func (g *Governor) activeSet(exclude string) ([]*domain.Metadata, error) {
	ids, err := g.ws.List()
	if err != nil {
		return nil, err
	}
	var active []*domain.Metadata
	for _, id := range ids {
		if id == exclude {
			continue
		}
		m, err := g.ws.ReadMetadata(id)
		if err != nil {
			if !domain.IsMissing(err) {
				g.logf("skipping %s: %v", id, err)
			}
			continue
		}
		if m.Status == domain.StatusActive {
			active = append(active, m)
		}
	}
	return active, nil
}

// Active returns the metadata of every increment whose status is active
func (g *Governor) Active() ([]*domain.Metadata, error) {
	return g.activeSet("")
}

// CheckAll reports discipline violations standing on disk right now
func (g *Governor) CheckAll() ([]domain.Violation, error) {
	active, err := g.activeSet("")
	if err != nil {
		return nil, err
	}
	return CheckStanding(active, g.limits), nil
}

// Apply evaluates req and, when allowed, commits it: the spec.md status
// first, then metadata.json, the active list and the ledger. If
// metadata.json cannot be written the previous spec.md is put back.
func (g *Governor) Apply(req Request) (*Decision, error) {
	m, err := g.ws.ReadMetadata(req.ID)
	if err != nil {
		return nil, err
	}
	d, err := g.evaluate(req, m)
	if err != nil || !d.Allowed {
		return d, err
	}

	before, spec, err := g.specWithStatus(req.ID, d.To)
	if err != nil {
		return nil, err
	}

	now := g.now().UTC()
	stamp(m, req, now)
	if spec != "" {
		if err := g.files.WriteSpec(req.ID, spec); err != nil {
			return nil, err
		}
	}
	if err := g.files.WriteMetadata(m); err != nil {
		if spec != "" {
			if rerr := g.files.WriteSpec(req.ID, before); rerr != nil {
				g.logf("partial transition for %s: spec.md says %s, metadata.json says %s: %v", req.ID, d.To, d.From, rerr)
			}
		}
		return nil, err
	}
	switch {
	case d.To == domain.StatusActive:
		err = g.ws.AddActive(req.ID, now)
	case d.From == domain.StatusActive:
		err = g.ws.RemoveActive(req.ID, now)
	}
	if err != nil {
		return nil, err
	}
	d.Applied = true

	if g.recorder != nil {
		t := &domain.Transition{
			ID:          uuid.NewString(),
			IncrementID: req.ID,
			Action:      string(req.Action),
			From:        d.From,
			To:          d.To,
			Reason:      req.Reason,
			Timestamp:   now,
		}
		for _, w := range d.Warnings {
			t.Warnings = append(t.Warnings, w.Message)
		}
		if err := g.recorder.RecordTransition(t); err != nil {
			g.logf("failed to record transition for %s: %v", req.ID, err)
		}
	}
	return d, nil
}

// specWithStatus returns spec.md as it stands and rewritten with the new
// status. after is "" when there is no spec.md or nothing changes.
func (g *Governor) specWithStatus(id string, status domain.Status) (before, after string, err error) {
	v, err := g.ws.LoadView(id)
	if err != nil {
		return "", "", err
	}
	if !v.Spec.Exists {
		return "", "", nil
	}
	before = v.Spec.Text()
	doc, err := frontmatter.Parse(before)
	if err != nil {
		return "", "", &domain.MalformedDocumentError{Path: v.Spec.Path, Line: 1, Reason: "invalid frontmatter", Err: err}
	}
	changed, err := doc.Upsert(string(status), "status")
	if err != nil {
		return "", "", fmt.Errorf("%s: failed to set status: %w", v.Spec.Path, err)
	}
	if !changed {
		return before, "", nil
	}
	return before, doc.String(), nil
}

func stamp(m *domain.Metadata, req Request, now time.Time) {
	m.Status = req.Action.Target()
	m.LastActivity = now
	switch req.Action {
	case ActionPause:
		m.PausedReason, m.PausedAt = req.Reason, &now
	case ActionResume:
		m.PausedReason, m.PausedAt = "", nil
	case ActionAbandon:
		m.AbandonedReason, m.AbandonedAt = req.Reason, &now
	case ActionBacklog:
		m.BacklogReason, m.BacklogAt = req.Reason, &now
	case ActionComplete:
		m.CompletedAt = &now
	case ActionReopen:
		m.ReopenReason, m.ReopenedAt = req.Reason, &now
	}
}

// Start moves a backlog or planning increment to active
func (g *Governor) Start(id string) (*Decision, error) {
	return g.Apply(Request{ID: id, Action: ActionStart})
}

// Pause moves an active increment to paused
func (g *Governor) Pause(id, reason string) (*Decision, error) {
	return g.Apply(Request{ID: id, Action: ActionPause, Reason: reason})
}

// Resume moves a paused increment back to active
func (g *Governor) Resume(id string) (*Decision, error) {
	return g.Apply(Request{ID: id, Action: ActionResume})
}

// Complete closes an increment once all of its work is done
func (g *Governor) Complete(id string) (*Decision, error) {
	return g.Apply(Request{ID: id, Action: ActionComplete})
}

// Abandon closes an increment without finishing it
func (g *Governor) Abandon(id, reason string) (*Decision, error) {
	return g.Apply(Request{ID: id, Action: ActionAbandon, Reason: reason})
}

// Reopen reactivates a completed or abandoned increment
func (g *Governor) Reopen(id, reason string, confirmed bool) (*Decision, error) {
	return g.Apply(Request{ID: id, Action: ActionReopen, Reason: reason, Confirmed: confirmed})
}

// Backlog parks an increment in the backlog
func (g *Governor) Backlog(id, reason string) (*Decision, error) {
	return g.Apply(Request{ID: id, Action: ActionBacklog, Reason: reason})
}

func (g *Governor) logf(format string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}
