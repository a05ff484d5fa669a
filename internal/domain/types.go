package domain

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle status of an increment
type Status string

const (
	StatusBacklog   Status = "backlog"
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// IsTerminal reports whether the status ends the increment's lifecycle.
// Terminal increments can still be reopened.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// specStatusLifecycle maps the words a tracker sync writes into spec.md
// onto lifecycle statuses.
var specStatusLifecycle = map[string]Status{
	"draft":       StatusPlanning,
	"in-progress": StatusActive,
	"implemented": StatusActive,
	"in-qa":       StatusActive,
	"complete":    StatusCompleted,
	"blocked":     StatusPaused,
	"cancelled":   StatusAbandoned,
}

// LifecycleStatus returns the lifecycle status a spec.md status word
// stands for. Lifecycle statuses and unknown words are returned unchanged.
func LifecycleStatus(s string) Status {
	if mapped, ok := specStatusLifecycle[s]; ok {
		return mapped
	}
	return Status(s)
}

// IncrementType represents the kind of work an increment carries
type IncrementType string

const (
	IncrementTypeFeature       IncrementType = "feature"
	IncrementTypeHotfix        IncrementType = "hotfix"
	IncrementTypeBug           IncrementType = "bug"
	IncrementTypeChangeRequest IncrementType = "change-request"
	IncrementTypeRefactor      IncrementType = "refactor"
	IncrementTypeExperiment    IncrementType = "experiment"
	IncrementTypeSpike         IncrementType = "spike"
)

// Severity classifies a finding or violation
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityWarning  Severity = "WARNING"
)

// Rank orders severities for reporting. Lower ranks sort first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Blocking reports whether the severity fails a validation run
func (s Severity) Blocking() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// Metadata is the structured lifecycle record stored as metadata.json.
// Unknown keys written by other tools are carried through in Extra.
type Metadata struct {
	ID              string        `json:"id"`
	Status          Status        `json:"status"`
	Type            IncrementType `json:"type"`
	Priority        string        `json:"priority,omitempty"`
	Created         time.Time     `json:"created"`
	LastActivity    time.Time     `json:"lastActivity"`
	PausedReason    string        `json:"pausedReason,omitempty"`
	PausedAt        *time.Time    `json:"pausedAt,omitempty"`
	AbandonedReason string        `json:"abandonedReason,omitempty"`
	AbandonedAt     *time.Time    `json:"abandonedAt,omitempty"`
	BacklogReason   string        `json:"backlogReason,omitempty"`
	BacklogAt       *time.Time    `json:"backlogAt,omitempty"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
	ReopenReason    string        `json:"reopenReason,omitempty"`
	ReopenedAt      *time.Time    `json:"reopenedAt,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type metadataAlias Metadata

// UnmarshalJSON decodes the known fields and keeps everything else in Extra
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var alias metadataAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range metadataKeys {
		delete(raw, key)
	}
	*m = Metadata(alias)
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

// MarshalJSON encodes the known fields merged with Extra. Keys come out sorted.
func (m Metadata) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(metadataAlias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}
	merged := make(map[string]json.RawMessage, len(m.Extra)+len(metadataKeys))
	for k, v := range m.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

var metadataKeys = []string{
	"id", "status", "type", "priority", "created", "lastActivity",
	"pausedReason", "pausedAt", "abandonedReason", "abandonedAt",
	"backlogReason", "backlogAt", "completedAt", "reopenReason", "reopenedAt",
}

// IsInterrupt reports whether the increment's type may exceed the hard WIP cap
func (m *Metadata) IsInterrupt(interruptTypes []string) bool {
	for _, t := range interruptTypes {
		if string(m.Type) == t {
			return true
		}
	}
	return false
}

// Task is a single checklist entry. Completed is the literal checkbox state.
type Task struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Completed bool     `json:"completed"`
	ACs       []string `json:"acs,omitempty"`
	Line      int      `json:"line"`
}

// AcceptanceCriterion is a checkable requirement under a user story
type AcceptanceCriterion struct {
	ID        string `json:"id"`
	StoryID   string `json:"storyId,omitempty"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Line      int    `json:"line"`
}

// UserStory groups acceptance criteria
type UserStory struct {
	ID       string                `json:"id"`
	Title    string                `json:"title"`
	Criteria []AcceptanceCriterion `json:"criteria"`
}

// FindingKind identifies what kind of divergence a finding describes
type FindingKind string

const (
	FindingStatusDesync  FindingKind = "status_desync"
	FindingACConflict    FindingKind = "ac_conflict"
	FindingCacheDrift    FindingKind = "cache_drift"
	FindingCounterDrift  FindingKind = "counter_drift"
	FindingMarkerDrift   FindingKind = "marker_drift"
	FindingOrphanACRef   FindingKind = "orphan_ac_reference"
	FindingUncoveredAC   FindingKind = "uncovered_ac"
	FindingMissingTasks  FindingKind = "missing_tasks"
	FindingWIPDiscipline FindingKind = "wip_discipline"
)

// Informational reports whether the kind describes mapping quality rather
// than divergence between representations
func (k FindingKind) Informational() bool {
	return k == FindingUncoveredAC || k == FindingOrphanACRef
}

// Finding is a classified divergence between two representations
type Finding struct {
	IncrementID string      `json:"incrementId"`
	Kind        FindingKind `json:"kind"`
	Field       string      `json:"field"`
	ValueA      string      `json:"valueA"`
	ValueB      string      `json:"valueB"`
	Severity    Severity    `json:"severity"`
	Impact      string      `json:"impact"`
	Fix         string      `json:"fix"`
}

// ViolationType identifies a lifecycle rule that was broken
type ViolationType string

const (
	ViolationHardCapExceeded      ViolationType = "hard_cap_exceeded"
	ViolationWIPLimitExceeded     ViolationType = "wip_limit_exceeded"
	ViolationInterruptRequired    ViolationType = "interrupt_required"
	ViolationIncompleteWork       ViolationType = "incomplete_work"
	ViolationInvalidTransition    ViolationType = "invalid_transition"
	ViolationConfirmationRequired ViolationType = "confirmation_required"
	ViolationUnresolvedConflict   ViolationType = "unresolved_conflict"
)

// Violation is a structured lifecycle rule failure. It is a value, not an error.
type Violation struct {
	Type       ViolationType  `json:"type"`
	Message    string         `json:"message"`
	Suggestion string         `json:"suggestion"`
	Severity   Severity       `json:"severity"`
	Context    map[string]int `json:"context,omitempty"`
}

// Winner names the side whose value was kept by a resolution.
// Status and priority are always won by the external system.
type Winner string

const WinnerExternal Winner = "external"

// ExternalResolution records one field resolved against an external tracker
type ExternalResolution struct {
	ID            string    `json:"id"`
	IncrementID   string    `json:"incrementId"`
	Platform      string    `json:"platform"`
	Field         string    `json:"field"`
	LocalValue    string    `json:"localValue"`
	ExternalValue string    `json:"externalValue"`
	Winner        Winner    `json:"winner"`
	ResolvedValue string    `json:"resolvedValue"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// Transition records one committed lifecycle change
type Transition struct {
	ID          string    `json:"id"`
	IncrementID string    `json:"incrementId"`
	Action      string    `json:"action"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	Reason      string    `json:"reason,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Event represents an event in the ledger's event log
type Event struct {
	ID           int64     `json:"id" db:"id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	IncrementID  string    `json:"increment_id" db:"increment_id"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	EventType    string    `json:"event_type" db:"event_type"`
	Payload      *string   `json:"payload,omitempty" db:"payload"` // JSON
}

// SyncRun summarizes one validate, sync or repair pass
type SyncRun struct {
	ID           int64     `json:"id"`
	Command      string    `json:"command"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Total        int       `json:"total"`
	Synced       int       `json:"synced"`
	Desynced     int       `json:"desynced"`
	Skipped      int       `json:"skipped"`
	Errors       int       `json:"errors"`
	Findings     int       `json:"findings"`
	FilesWritten int       `json:"filesWritten"`
}
