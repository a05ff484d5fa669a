// Package store reads and writes the per-increment artifacts on disk.
// Every write is a whole-file atomic replace; nothing here caches.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/fsutil"
	"github.com/lherron/incsync/internal/paths"
)

// Workspace is the root of one project's increments
type Workspace struct {
	layout paths.Layout
}

// New creates a Workspace for root. stateDir defaults to .specweave.
func New(root, stateDir string) *Workspace {
	return &Workspace{layout: paths.NewLayout(root, stateDir)}
}

// Layout returns the path layout of the workspace
func (w *Workspace) Layout() paths.Layout {
	return w.layout
}

// List returns increment ids in sorted order. Directories starting with "_"
// and plain files are skipped. A missing increments directory is empty.
func (w *Workspace) List() ([]string, error) {
	entries, err := os.ReadDir(w.layout.Increments())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list increments: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// Exists reports whether the increment directory exists
func (w *Workspace) Exists(id string) bool {
	info, err := os.Stat(w.layout.IncrementDir(id))
	return err == nil && info.IsDir()
}

// ReadMetadata loads metadata.json. A missing file is a MissingArtifactError,
// an unparsable one a MalformedDocumentError.
func (w *Workspace) ReadMetadata(id string) (*domain.Metadata, error) {
	path := w.layout.MetadataPath(id)
	data, _, exists, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &domain.MissingArtifactError{IncrementID: id, Artifact: paths.MetadataFile, Path: path}
	}
	return decodeMetadata(id, path, data)
}

func decodeMetadata(id, path string, data []byte) (*domain.Metadata, error) {
	var m domain.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &domain.MalformedDocumentError{Path: path, Reason: "invalid JSON", Err: err}
	}
	if m.ID == "" {
		m.ID = id
	}
	return &m, nil
}

// WriteMetadata replaces metadata.json with m
func (w *Workspace) WriteMetadata(m *domain.Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return fsutil.WriteFile(w.layout.MetadataPath(m.ID), append(data, '\n'), 0644)
}

// WriteSpec replaces spec.md
func (w *Workspace) WriteSpec(id, content string) error {
	return fsutil.WriteFile(w.layout.SpecPath(id), []byte(content), 0644)
}

// WriteTasks replaces tasks.md
func (w *Workspace) WriteTasks(id, content string) error {
	return fsutil.WriteFile(w.layout.TasksPath(id), []byte(content), 0644)
}

// WriteReport replaces spec-sync-report.md
func (w *Workspace) WriteReport(id, content string) error {
	return fsutil.WriteFile(w.layout.ReportPath(id), []byte(content), 0644)
}

// CreateParams describes a new increment
type CreateParams struct {
	ID       string
	Title    string
	Type     domain.IncrementType
	Priority string
	Status   domain.Status
}

// Create scaffolds a new increment directory with spec, tasks and metadata.
// It fails if the increment already exists.
func (w *Workspace) Create(params CreateParams, now time.Time) (*domain.Metadata, error) {
	if err := domain.ValidateIncrementID(params.ID); err != nil {
		return nil, err
	}
	if w.Exists(params.ID) {
		return nil, fmt.Errorf("increment %s already exists", params.ID)
	}
	if params.Type == "" {
		params.Type = domain.IncrementTypeFeature
	}
	if params.Status == "" {
		params.Status = domain.StatusPlanning
	}
	if params.Priority == "" {
		params.Priority = "P2"
	}

	m := &domain.Metadata{
		ID:           params.ID,
		Status:       params.Status,
		Type:         params.Type,
		Priority:     params.Priority,
		Created:      now.UTC(),
		LastActivity: now.UTC(),
	}
	spec := fmt.Sprintf("---\nincrement: %s\ntitle: %q\nstatus: %s\npriority: %s\n---\n\n# %s\n\n## US-001: %s\n\n**Acceptance Criteria**:\n- [ ] **AC-US1-01**: \n",
		params.ID, params.Title, params.Status, params.Priority, params.Title, params.Title)
	tasks := fmt.Sprintf("---\nincrement: %s\ntotal_tasks: 0\ncompleted_tasks: 0\n---\n\n# Tasks: %s\n",
		params.ID, params.Title)

	if err := w.WriteSpec(params.ID, spec); err != nil {
		return nil, err
	}
	if err := w.WriteTasks(params.ID, tasks); err != nil {
		return nil, err
	}
	if err := w.WriteMetadata(m); err != nil {
		return nil, err
	}
	return m, nil
}
