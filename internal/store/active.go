package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lherron/incsync/internal/fsutil"
)

// ActiveState is the contents of active-increment.json
type ActiveState struct {
	IDs         []string  `json:"ids"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// ActiveIDs returns the ids recorded as active. A missing or unreadable
// file means nothing is active.
func (w *Workspace) ActiveIDs() ([]string, error) {
	data, _, exists, err := fsutil.ReadFile(w.layout.ActivePath())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	var st ActiveState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, nil
	}
	return st.IDs, nil
}

// PrimaryActive returns the first active id, or "" when none is active
func (w *Workspace) PrimaryActive() (string, error) {
	ids, err := w.ActiveIDs()
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

// SetActive replaces the active list
func (w *Workspace) SetActive(ids []string, now time.Time) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.MarshalIndent(ActiveState{IDs: ids, LastUpdated: now.UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode active state: %w", err)
	}
	return fsutil.WriteFile(w.layout.ActivePath(), append(data, '\n'), 0644)
}

// AddActive appends id to the active list if it is not already there
func (w *Workspace) AddActive(id string, now time.Time) error {
	ids, err := w.ActiveIDs()
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return w.SetActive(append(ids, id), now)
}

// RemoveActive drops id from the active list
func (w *Workspace) RemoveActive(id string, now time.Time) error {
	ids, err := w.ActiveIDs()
	if err != nil {
		return err
	}
	kept := ids[:0]
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			continue
		}
		kept = append(kept, existing)
	}
	if !found {
		return nil
	}
	return w.SetActive(kept, now)
}
