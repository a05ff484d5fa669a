package engine

import (
	"context"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/external"
)

// Delta is a resolved value expressed in the tracker's vocabulary, for a
// client that pushes state upstream
type Delta struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// ResolveResult is the outcome of resolving one increment against its tracker
type ResolveResult struct {
	IncrementID string                      `json:"incrementId"`
	Platform    external.Platform           `json:"platform"`
	Resolutions []domain.ExternalResolution `json:"resolutions"`
	Deltas      []Delta                     `json:"deltas,omitempty"`
	Report      string                      `json:"-"`
	Change      *FileChange                 `json:"change,omitempty"`
	Applied     bool                        `json:"applied"`
}

// Resolve fetches the tracker state for id through client and lets it win
// for status and priority. spec.md is rewritten, the resolution report is
// written next to it and every resolution is appended to the ledger. With
// dryRun nothing is written.
func (e *Engine) Resolve(ctx context.Context, id string, client external.Client, dryRun bool) (*ResolveResult, error) {
	v, err := e.ws.LoadView(id)
	if err != nil {
		return nil, err
	}
	if !v.Spec.Exists {
		return nil, &domain.MissingArtifactError{IncrementID: id, Artifact: "spec.md", Path: v.Spec.Path}
	}

	ext, err := client.FetchStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	local, err := external.LocalFromSpec(id, v.Spec.Text())
	if err != nil {
		return nil, err
	}
	resolutions, err := e.resolver.Resolve(local, *ext)
	if err != nil {
		return nil, err
	}
	out, err := e.resolver.Apply(v.Spec.Text(), ext.Platform, ext.Status, resolutions)
	if err != nil {
		return nil, err
	}

	result := &ResolveResult{
		IncrementID: id,
		Platform:    ext.Platform,
		Resolutions: resolutions,
		Deltas:      deltas(ext.Platform, resolutions),
		Report:      external.RenderReport(resolutions, e.ctx.Now()),
	}
	if out != v.Spec.Text() {
		c := e.change(v.Spec.Path, v.Spec.Text(), out)
		result.Change = &c
	}
	if dryRun || len(resolutions) == 0 {
		return result, nil
	}

	if err := e.ws.WriteSpec(id, out); err != nil {
		return nil, err
	}
	if err := e.ws.WriteReport(id, result.Report); err != nil {
		return nil, err
	}
	e.recordResolutions(resolutions)
	result.Applied = true
	e.logf("%s: %d resolution(s) from %s applied", id, len(resolutions), ext.Platform)

	if _, err := e.RefreshSnapshot(nil); err != nil {
		e.logf("%s: failed to refresh status snapshot: %v", id, err)
	}
	return result, nil
}

func deltas(platform external.Platform, resolutions []domain.ExternalResolution) []Delta {
	var out []Delta
	for _, r := range resolutions {
		value := r.ResolvedValue
		if r.Field == "status" {
			if mapped, ok := external.MapLocalStatus(platform, external.SpecStatus(r.ResolvedValue)); ok {
				value = mapped
			}
		}
		out = append(out, Delta{Field: r.Field, Value: value})
	}
	return out
}
