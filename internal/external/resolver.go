package external

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/frontmatter"
)

const (
	statusReason   = "External tool reflects QA and stakeholder decisions"
	priorityReason = "External tool reflects stakeholder prioritization"
)

// LocalState is what spec.md currently says
type LocalState struct {
	IncrementID string
	Status      string
	Priority    string
}

// ExternalState is what the tracker says
type ExternalState struct {
	Platform     Platform  `yaml:"platform"`
	Status       string    `yaml:"status"`
	Priority     string    `yaml:"priority"`
	LastModified time.Time `yaml:"lastModified"`
}

// UnknownStatusError is returned for a tracker status with no mapping
type UnknownStatusError struct {
	Platform Platform
	Status   string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("no %s mapping for external status %q", e.Platform, e.Status)
}

// Resolver applies the external-wins policy
type Resolver struct {
	logger *log.Logger
	now    func() time.Time
}

// NewResolver creates a Resolver. A nil clock uses time.Now.
func NewResolver(logger *log.Logger, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{logger: logger, now: now}
}

// Resolve compares local and external values. External wins for status and
// priority, unconditionally. Status is resolved when the mapped external
// status differs from the local one; priority only when the tracker has one
// and it differs.
func (r *Resolver) Resolve(local LocalState, ext ExternalState) ([]domain.ExternalResolution, error) {
	if _, ok := Platforms[ext.Platform]; !ok {
		return nil, fmt.Errorf("unknown platform %q", ext.Platform)
	}
	mapped := MapExternalStatus(ext.Platform, ext.Status)
	if !mapped.Known {
		return nil, &UnknownStatusError{Platform: ext.Platform, Status: ext.Status}
	}

	now := r.now().UTC()
	var out []domain.ExternalResolution
	if local.Status != string(mapped.Status) {
		out = append(out, r.resolution(local, ext, "status", local.Status, ext.Status, string(mapped.Status), statusReason, now))
	}
	if ext.Priority != "" && ext.Priority != local.Priority {
		out = append(out, r.resolution(local, ext, "priority", local.Priority, ext.Priority, ext.Priority, priorityReason, now))
	}
	return out, nil
}

func (r *Resolver) resolution(local LocalState, ext ExternalState, field, localValue, extValue, resolved, reason string, now time.Time) domain.ExternalResolution {
	res := domain.ExternalResolution{
		ID:            uuid.NewString(),
		IncrementID:   local.IncrementID,
		Platform:      string(ext.Platform),
		Field:         field,
		LocalValue:    localValue,
		ExternalValue: extValue,
		Winner:        domain.WinnerExternal,
		ResolvedValue: resolved,
		Reason:        reason,
		Timestamp:     now,
	}
	if r.logger != nil {
		r.logger.Printf("%s %s conflict: local=%q %s=%q, external wins: %s",
			local.IncrementID, field, localValue, ext.Platform, extValue, resolved)
	}
	return res
}

// LocalFromSpec reads the local state out of spec.md text
func LocalFromSpec(id, specText string) (LocalState, error) {
	doc, err := frontmatter.Parse(specText)
	if err != nil {
		return LocalState{}, &domain.MalformedDocumentError{Path: "spec.md", Line: 1, Reason: "invalid frontmatter", Err: err}
	}
	status, _ := doc.Get("status")
	priority, _ := doc.Get("priority")
	return LocalState{IncrementID: id, Status: status, Priority: priority}, nil
}

// Apply rewrites spec.md with the resolved values and stamps
// externalLinks.<platform>.syncedAt. The text is unchanged when there is
// nothing to apply.
func (r *Resolver) Apply(specText string, platform Platform, externalStatus string, resolutions []domain.ExternalResolution) (string, error) {
	if len(resolutions) == 0 {
		return specText, nil
	}
	doc, err := frontmatter.Parse(specText)
	if err != nil {
		return "", &domain.MalformedDocumentError{Path: "spec.md", Line: 1, Reason: "invalid frontmatter", Err: err}
	}
	for _, res := range resolutions {
		if res.Winner != domain.WinnerExternal {
			return "", fmt.Errorf("refusing %s resolution won by %q", res.Field, res.Winner)
		}
		if _, err := doc.Upsert(res.ResolvedValue, res.Field); err != nil {
			return "", fmt.Errorf("failed to apply %s: %w", res.Field, err)
		}
	}
	stamp := r.now().UTC().Format(time.RFC3339)
	if _, err := doc.Upsert(stamp, "externalLinks", string(platform), "syncedAt"); err != nil {
		return "", fmt.Errorf("failed to set syncedAt: %w", err)
	}
	if externalStatus != "" {
		if _, err := doc.Upsert(externalStatus, "externalLinks", string(platform), "lastExternalStatus"); err != nil {
			return "", fmt.Errorf("failed to set lastExternalStatus: %w", err)
		}
	}
	return doc.String(), nil
}
