// Package engine runs the consistency passes over a project's increments.
// Each pass reads the artifacts of an increment once, derives everything
// from that view, and writes back through atomic file replacement. The
// engine owns no goroutines; passes are triggered by the CLI, a git hook or
// the watch command.
package engine

import (
	"io"
	"log"
	"time"

	"github.com/lherron/incsync/internal/audit"
	"github.com/lherron/incsync/internal/config"
	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/external"
	"github.com/lherron/incsync/internal/ledger"
	"github.com/lherron/incsync/internal/lifecycle"
	"github.com/lherron/incsync/internal/paths"
	"github.com/lherron/incsync/internal/snapshot"
	"github.com/lherron/incsync/internal/store"
)

// Context carries everything a pass needs. It is built once by the caller
// and passed down explicitly.
type Context struct {
	Root     string
	StateDir string
	Config   *config.Config
	Logger   *log.Logger
	Now      func() time.Time
}

// Engine wires the workspace, snapshot manager, auditor, resolver and
// ledger around one project root.
type Engine struct {
	ctx      Context
	ws       *store.Workspace
	snaps    *snapshot.Manager
	auditor  *audit.Auditor
	resolver *external.Resolver
	ledger   *ledger.Store
	limits   lifecycle.Limits
	debug    bool
}

// New creates an Engine. led may be nil, in which case nothing is recorded.
func New(ctx Context, led *ledger.Store) *Engine {
	if ctx.Now == nil {
		ctx.Now = time.Now
	}
	if ctx.Logger == nil {
		ctx.Logger = log.New(io.Discard, "", 0)
	}
	if ctx.StateDir == "" {
		ctx.StateDir = paths.DefaultStateDir
	}

	ws := store.New(ctx.Root, ctx.StateDir)
	e := &Engine{
		ctx:      ctx,
		ws:       ws,
		snaps:    snapshot.NewManager(ws.Layout(), ctx.Logger, ctx.Now),
		auditor:  audit.New(ctx.Now),
		resolver: external.NewResolver(ctx.Logger, ctx.Now),
		ledger:   led,
		limits:   lifecycle.DefaultLimits(),
	}
	if cfg := ctx.Config; cfg != nil {
		e.limits = lifecycle.Limits{
			HardCap:        cfg.HardCap,
			SoftLimit:      cfg.SoftLimit,
			InterruptTypes: cfg.InterruptTypes,
		}
		e.debug = cfg.LogLevel == "debug"
	}
	return e
}

// Workspace returns the increment store
func (e *Engine) Workspace() *store.Workspace {
	return e.ws
}

// Snapshots returns the status snapshot manager
func (e *Engine) Snapshots() *snapshot.Manager {
	return e.snaps
}

// Ledger returns the audit ledger, or nil
func (e *Engine) Ledger() *ledger.Store {
	return e.ledger
}

// Limits returns the WIP limits in force
func (e *Engine) Limits() lifecycle.Limits {
	return e.limits
}

// Governor returns a lifecycle governor that records transitions in the
// ledger.
func (e *Engine) Governor() *lifecycle.Governor {
	opts := lifecycle.Options{
		Limits: e.limits,
		Logger: e.ctx.Logger,
		Now:    e.ctx.Now,
	}
	if e.ledger != nil {
		opts.Recorder = e.ledger
	}
	return lifecycle.New(e.ws, opts)
}

// Transition applies a lifecycle request and refreshes the status snapshot
// when it was committed.
func (e *Engine) Transition(req lifecycle.Request) (*lifecycle.Decision, error) {
	d, err := e.Governor().Apply(req)
	if err != nil || !d.Applied {
		return d, err
	}
	if _, err := e.RefreshSnapshot(nil); err != nil {
		e.logf("failed to refresh status snapshot: %v", err)
	}
	return d, nil
}

// Create scaffolds a new increment with the next free sequence number.
func (e *Engine) Create(title string, typ domain.IncrementType, priority string) (*domain.Metadata, error) {
	ids, err := e.ws.List()
	if err != nil {
		return nil, err
	}
	id, err := paths.NextID(ids, title)
	if err != nil {
		return nil, err
	}
	m, err := e.ws.Create(store.CreateParams{ID: id, Title: title, Type: typ, Priority: priority}, e.ctx.Now())
	if err != nil {
		return nil, err
	}
	e.logf("created increment %s", id)
	return m, nil
}

// Status is the fast read path: the snapshot file, checked against the
// active increment and the mtimes of its sources. A stale snapshot is
// regenerated before it is shown; if that fails the result stays Stale.
func (e *Engine) Status() (snapshot.Result, error) {
	active, err := e.ws.PrimaryActive()
	if err != nil {
		return snapshot.Result{NoActive: true}, err
	}
	res := e.snaps.Current(active)
	if !res.Stale {
		return res, nil
	}
	e.debugf("status snapshot is stale, regenerating")
	if _, err := e.RefreshSnapshot(nil); err != nil {
		e.logf("failed to regenerate stale status snapshot: %v", err)
		return res, nil
	}
	return e.snaps.Current(active), nil
}

func (e *Engine) logf(format string, args ...interface{}) {
	e.ctx.Logger.Printf(format, args...)
}

func (e *Engine) debugf(format string, args ...interface{}) {
	if e.debug {
		e.ctx.Logger.Printf(format, args...)
	}
}

func (e *Engine) record(run *domain.SyncRun) {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.Runs.Record(run); err != nil {
		e.logf("failed to record %s run: %v", run.Command, err)
	}
}
