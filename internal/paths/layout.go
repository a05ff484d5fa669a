// Package paths knows where every increment artifact lives on disk and how
// increment ids are formed and selected.
package paths

import "path/filepath"

const (
	DefaultStateDir = ".specweave"

	IncrementsDir = "increments"
	StateDir      = "state"

	SpecFile     = "spec.md"
	TasksFile    = "tasks.md"
	MetadataFile = "metadata.json"
	ReportFile   = "spec-sync-report.md"
	ExternalFile = "external.yaml"

	SnapshotFile = "status-line.json"
	ActiveFile   = "active-increment.json"
	LedgerFile   = "ledger.db"
	ConfigFile   = "config.yaml"
)

// Layout resolves artifact paths under a project root
type Layout struct {
	Root     string
	StateDir string
}

// NewLayout returns the layout for root. An empty stateDir uses .specweave.
func NewLayout(root, stateDir string) Layout {
	if stateDir == "" {
		stateDir = DefaultStateDir
	}
	return Layout{Root: root, StateDir: stateDir}
}

// Base is <root>/.specweave
func (l Layout) Base() string {
	return filepath.Join(l.Root, l.StateDir)
}

// Increments is the directory holding one folder per increment
func (l Layout) Increments() string {
	return filepath.Join(l.Base(), IncrementsDir)
}

func (l Layout) IncrementDir(id string) string {
	return filepath.Join(l.Increments(), id)
}

func (l Layout) SpecPath(id string) string {
	return filepath.Join(l.IncrementDir(id), SpecFile)
}

func (l Layout) TasksPath(id string) string {
	return filepath.Join(l.IncrementDir(id), TasksFile)
}

func (l Layout) MetadataPath(id string) string {
	return filepath.Join(l.IncrementDir(id), MetadataFile)
}

func (l Layout) ReportPath(id string) string {
	return filepath.Join(l.IncrementDir(id), ReportFile)
}

func (l Layout) ExternalPath(id string) string {
	return filepath.Join(l.IncrementDir(id), ExternalFile)
}

// State is the directory for derived engine state
func (l Layout) State() string {
	return filepath.Join(l.Base(), StateDir)
}

func (l Layout) SnapshotPath() string {
	return filepath.Join(l.State(), SnapshotFile)
}

func (l Layout) ActivePath() string {
	return filepath.Join(l.State(), ActiveFile)
}

func (l Layout) LedgerPath() string {
	return filepath.Join(l.State(), LedgerFile)
}

func (l Layout) ConfigPath() string {
	return filepath.Join(l.Base(), ConfigFile)
}

// Rel returns path relative to the project root, slash separated. Paths
// outside the root are returned unchanged.
func (l Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Abs is the inverse of Rel
func (l Layout) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}
