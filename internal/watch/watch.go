// Package watch re-runs the sync pass when increment documents change on
// disk.
package watch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lherron/incsync/internal/paths"
)

// DefaultDebounce is how long an increment must be quiet before it is synced
const DefaultDebounce = 500 * time.Millisecond

// minTick bounds how often pending increments are checked
const minTick = 10 * time.Millisecond

// Handler receives the increments whose documents settled, in id order
type Handler func(ids []string)

// Watcher watches the increments directory and every increment under it.
// fsnotify is not recursive, so increment directories created while running
// are added as they appear.
type Watcher struct {
	layout   paths.Layout
	debounce time.Duration
	logger   *log.Logger
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]time.Time
}

// New creates a Watcher. Nothing is watched until Run.
func New(layout paths.Layout, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		layout:   layout,
		debounce: debounce,
		logger:   logger,
		watcher:  fw,
		pending:  make(map[string]time.Time),
	}, nil
}

// Run watches until ctx is cancelled, calling handle from a single
// goroutine. The underlying watcher is closed on return.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer w.watcher.Close()

	root := w.layout.Increments()
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", root, err)
	}
	if err := w.watcher.Add(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.addDir(filepath.Join(root, e.Name()))
		}
	}

	ticker := time.NewTicker(tickInterval(w.debounce))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("watcher error: %v", err)

		case now := <-ticker.C:
			if ids := w.due(now); len(ids) > 0 {
				handle(ids)
			}
		}
	}
}

// tickInterval is half the debounce, but never below minTick
func tickInterval(debounce time.Duration) time.Duration {
	if tick := debounce / 2; tick > minTick {
		return tick
	}
	return minTick
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	id, name, ok := w.classify(event.Name)
	if !ok {
		return
	}
	if name == "" {
		// an increment directory itself
		if event.Has(fsnotify.Create) {
			w.addDir(event.Name)
		}
	} else if !Watched(name) {
		return
	}
	w.logger.Printf("file event: %s %s", event.Op, w.layout.Rel(event.Name))
	w.queue(id, time.Now())
}

func (w *Watcher) addDir(dir string) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Printf("failed to watch %s: %v", dir, err)
	}
}

// classify maps an event path to its increment id. name is the file name
// inside the increment, empty for the increment directory itself.
func (w *Watcher) classify(path string) (id, name string, ok bool) {
	rel, err := filepath.Rel(w.layout.Increments(), path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 2 {
		return "", "", false
	}
	if _, ok := paths.Sequence(parts[0]); !ok {
		return "", "", false
	}
	if len(parts) == 2 {
		name = parts[1]
	}
	return parts[0], name, true
}

// Watched reports whether a file inside an increment feeds the sync pass.
// The resolution report and editor temp files are ignored.
func Watched(name string) bool {
	switch name {
	case paths.SpecFile, paths.TasksFile, paths.MetadataFile:
		return true
	}
	return false
}

func (w *Watcher) queue(id string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[id] = at
}

// due removes and returns the increments that have been quiet for the
// debounce interval
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ids []string
	for id, at := range w.pending {
		if now.Sub(at) < w.debounce {
			continue
		}
		ids = append(ids, id)
		delete(w.pending, id)
	}
	sort.Strings(ids)
	return ids
}
