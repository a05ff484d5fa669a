// Package snapshot maintains status-line.json, the cached summary of the
// current increment used by fast status displays.
//
// The snapshot is regenerated wholesale on every sync pass and replaced
// atomically. Readers only ever open the snapshot file; they never parse the
// source documents.
package snapshot

import (
	"time"
)

// Current summarizes the active increment's progress
type Current struct {
	ID         string `json:"id"`
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// StatusSnapshot is the on-disk cache shape.
// SourceModifiedAt keys are paths relative to the project root.
type StatusSnapshot struct {
	Current          *Current             `json:"current"`
	OpenCount        int                  `json:"openCount"`
	LastUpdate       time.Time            `json:"lastUpdate"`
	GeneratedAt      time.Time            `json:"generatedAt"`
	SourceModifiedAt map[string]time.Time `json:"sourceModifiedAt,omitempty"`
	Rev              string               `json:"rev,omitempty"`
}

// Result is what readers get back. NoActive is a normal outcome, not an
// error: it covers a missing, empty or corrupt snapshot and a snapshot for
// an increment that is no longer active. Stale means a summarized file
// changed after the snapshot was built; its progress is not trusted.
type Result struct {
	Snapshot *StatusSnapshot
	NoActive bool
	Stale    bool
}

// Progress returns the cached progress, or nil when nothing is active or
// the snapshot is stale
func (r Result) Progress() *Current {
	if r.NoActive || r.Stale || r.Snapshot == nil {
		return nil
	}
	return r.Snapshot.Current
}
