package store

import (
	"fmt"
	"time"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/fsutil"
)

// Artifact is one file as it was read at the start of a pass
type Artifact struct {
	Path    string
	Content []byte
	Exists  bool
	ModTime time.Time
}

// Text returns the content as a string, empty when the file is absent
func (a Artifact) Text() string {
	return string(a.Content)
}

// Rewritten records content as the artifact's new text after the caller
// wrote it, taking only the mtime from disk.
func (a *Artifact) Rewritten(content string) error {
	mod, err := fsutil.ModTime(a.Path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", a.Path, err)
	}
	a.Content, a.Exists, a.ModTime = []byte(content), !mod.IsZero(), mod
	return nil
}

// View is a consistent read of one increment. All files are read together so
// a pass never mixes an old spec with a new checklist.
type View struct {
	ID       string
	Dir      string
	Spec     Artifact
	Tasks    Artifact
	Metadata Artifact

	// Meta is nil when metadata.json is absent
	Meta *domain.Metadata
}

// Sources returns the paths of the artifacts that exist
func (v *View) Sources() []string {
	var out []string
	for _, a := range []Artifact{v.Spec, v.Tasks, v.Metadata} {
		if a.Exists {
			out = append(out, a.Path)
		}
	}
	return out
}

// ModTimes maps each existing artifact path to its modification time
func (v *View) ModTimes() map[string]time.Time {
	out := make(map[string]time.Time, 3)
	for _, a := range []Artifact{v.Spec, v.Tasks, v.Metadata} {
		if a.Exists {
			out[a.Path] = a.ModTime
		}
	}
	return out
}

// LoadView reads spec.md, tasks.md and metadata.json for id. Absent files
// are reported through Artifact.Exists. A missing increment directory is a
// MissingArtifactError, malformed metadata a MalformedDocumentError.
func (w *Workspace) LoadView(id string) (*View, error) {
	if !w.Exists(id) {
		return nil, &domain.MissingArtifactError{IncrementID: id, Artifact: "increment", Path: w.layout.IncrementDir(id)}
	}
	v := &View{ID: id, Dir: w.layout.IncrementDir(id)}

	var err error
	if v.Spec, err = readArtifact(w.layout.SpecPath(id)); err != nil {
		return nil, err
	}
	if v.Tasks, err = readArtifact(w.layout.TasksPath(id)); err != nil {
		return nil, err
	}
	if v.Metadata, err = readArtifact(w.layout.MetadataPath(id)); err != nil {
		return nil, err
	}
	if v.Metadata.Exists {
		v.Meta, err = decodeMetadata(id, v.Metadata.Path, v.Metadata.Content)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func readArtifact(path string) (Artifact, error) {
	content, mod, exists, err := fsutil.ReadFile(path)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: path, Content: content, Exists: exists, ModTime: mod}, nil
}
