package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/lherron/incsync/internal/fsutil"
	"github.com/lherron/incsync/internal/paths"
)

// MaxAge is how old a snapshot may get before audits flag it
const MaxAge = 24 * time.Hour

// Manager reads and regenerates the status snapshot
type Manager struct {
	layout paths.Layout
	logger *log.Logger
	now    func() time.Time
}

// NewManager creates a Manager for the workspace layout
func NewManager(layout paths.Layout, logger *log.Logger, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{layout: layout, logger: logger, now: now}
}

// Path returns the snapshot file path
func (m *Manager) Path() string {
	return m.layout.SnapshotPath()
}

// Build assembles a snapshot. sources maps absolute paths of the summarized
// files to the mtimes observed when the pass read them.
func (m *Manager) Build(current *Current, openCount int, sources map[string]time.Time) *StatusSnapshot {
	now := m.now().UTC()
	s := &StatusSnapshot{
		Current:     current,
		OpenCount:   openCount,
		LastUpdate:  now,
		GeneratedAt: now,
	}
	if len(sources) > 0 {
		s.SourceModifiedAt = make(map[string]time.Time, len(sources))
		for path, mod := range sources {
			s.SourceModifiedAt[m.layout.Rel(path)] = mod.UTC()
		}
	}
	return s
}

// Write replaces the snapshot file with s. The file is always rewritten in
// full; fields are never patched in place.
func (m *Manager) Write(s *StatusSnapshot) error {
	rev, err := ComputeRev(s)
	if err != nil {
		return err
	}
	s.Rev = rev
	data, err := CanonicalJSON(s)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFile(m.Path(), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Read loads the snapshot file and nothing else. A missing, empty or corrupt
// file yields NoActive, as does a snapshot whose current is null.
func (m *Manager) Read() Result {
	data, _, exists, err := fsutil.ReadFile(m.Path())
	if err != nil {
		m.logf("snapshot unreadable: %v", err)
		return Result{NoActive: true}
	}
	if !exists {
		return Result{NoActive: true}
	}
	s, ok := decode(data)
	if !ok {
		m.logf("snapshot %s is corrupt, ignoring", m.Path())
		return Result{NoActive: true}
	}
	return Result{Snapshot: s, NoActive: s.Current == nil}
}

func decode(data []byte) (*StatusSnapshot, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) {
		return nil, false
	}
	var s StatusSnapshot
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, false
	}
	if s.Rev != "" {
		rev, err := ComputeRev(&s)
		if err != nil || rev != s.Rev {
			return nil, false
		}
	}
	return &s, true
}

// Current reads the snapshot and returns it only if it describes activeID.
// A snapshot older than any file it summarizes comes back Stale.
func (m *Manager) Current(activeID string) Result {
	res := m.Read()
	if res.NoActive {
		return res
	}
	if activeID == "" || res.Snapshot.Current.ID != activeID {
		return Result{Snapshot: res.Snapshot, NoActive: true}
	}
	stale, err := m.IsStale(res.Snapshot)
	if err != nil {
		m.logf("cannot check snapshot sources: %v", err)
		stale = true
	}
	res.Stale = stale
	return res
}

// IsStale reports whether any summarized file changed after the snapshot
// recorded it. A recorded file that no longer exists is also stale.
func (m *Manager) IsStale(s *StatusSnapshot) (bool, error) {
	for rel, recorded := range s.SourceModifiedAt {
		live, err := fsutil.ModTime(m.layout.Abs(rel))
		if err != nil {
			return false, err
		}
		if live.IsZero() || live.After(recorded) {
			return true, nil
		}
	}
	return false, nil
}

// Regenerate writes s unless the snapshot on disk was built from newer
// sources than s. A pass that read older files must not overwrite a newer
// regeneration. written is false when the write was skipped.
func (m *Manager) Regenerate(s *StatusSnapshot) (written bool, err error) {
	existing := m.Read()
	if existing.Snapshot != nil && newerThan(existing.Snapshot, s) {
		m.logf("snapshot on disk is newer than this pass, keeping it")
		return false, nil
	}
	if err := m.Write(s); err != nil {
		return false, err
	}
	return true, nil
}

// newerThan reports whether a recorded any shared source at a later mtime
// than b did.
func newerThan(a, b *StatusSnapshot) bool {
	for rel, at := range a.SourceModifiedAt {
		if bt, ok := b.SourceModifiedAt[rel]; ok && at.After(bt) {
			return true
		}
	}
	return false
}

// Age returns how long ago s was last updated
func (m *Manager) Age(s *StatusSnapshot) time.Duration {
	return m.now().Sub(s.LastUpdate)
}

func (m *Manager) logf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
