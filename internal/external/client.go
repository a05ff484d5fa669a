package external

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/fsutil"
	"github.com/lherron/incsync/internal/paths"
)

// Client fetches an increment's state from a tracker. Calls may block on
// the network, so they happen outside the sync pass.
type Client interface {
	FetchStatus(ctx context.Context, incrementID string) (*ExternalState, error)
}

// FileClient reads tracker state recorded in each increment's external.yaml.
// It lets the resolver run offline and in tests.
type FileClient struct {
	layout   paths.Layout
	platform Platform
}

// NewFileClient creates a FileClient. platform fills in a file that does
// not name one.
func NewFileClient(layout paths.Layout, platform Platform) *FileClient {
	return &FileClient{layout: layout, platform: platform}
}

// FetchStatus reads and validates external.yaml
func (c *FileClient) FetchStatus(ctx context.Context, incrementID string) (*ExternalState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := c.layout.ExternalPath(incrementID)
	data, _, exists, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &domain.MissingArtifactError{IncrementID: incrementID, Artifact: paths.ExternalFile, Path: path}
	}

	var st ExternalState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, &domain.MalformedDocumentError{Path: path, Reason: "invalid YAML", Err: err}
	}
	if st.Platform == "" {
		st.Platform = c.platform
	}
	if _, err := ParsePlatform(string(st.Platform)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if st.Status == "" {
		return nil, &domain.MalformedDocumentError{Path: path, Reason: "status is required"}
	}
	return &st, nil
}

// StaticClient returns fixed state, for callers that already know it
type StaticClient struct {
	State ExternalState
}

// FetchStatus returns the fixed state
func (c StaticClient) FetchStatus(ctx context.Context, incrementID string) (*ExternalState, error) {
	st := c.State
	return &st, nil
}
