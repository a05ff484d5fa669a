package domain

import (
	"fmt"
	"regexp"
	"time"
)

var (
	// IncrementIDRegex matches "0001-short-slug"
	IncrementIDRegex = regexp.MustCompile(`^\d{4}-[a-z0-9]+(?:-[a-z0-9]+)*$`)
	// TaskIDRegex matches T-001 and externally sourced T-001E
	TaskIDRegex = regexp.MustCompile(`^T-\d{3,}E?$`)
	// UserStoryIDRegex matches US-001 and US-001E
	UserStoryIDRegex = regexp.MustCompile(`^US-\d{3,}E?$`)
	// ACIDRegex matches AC-US1-01, AC-US001E-12
	ACIDRegex = regexp.MustCompile(`^AC-US\d+E?-\d{2,}$`)
)

// ValidateIncrementID validates an increment directory name
func ValidateIncrementID(id string) error {
	if !IncrementIDRegex.MatchString(id) {
		return fmt.Errorf("invalid increment id %q: must look like 0001-short-slug", id)
	}
	return nil
}

// ValidateTaskID validates a task identifier
func ValidateTaskID(id string) error {
	if !TaskIDRegex.MatchString(id) {
		return fmt.Errorf("invalid task id %q: must look like T-001 or T-001E", id)
	}
	return nil
}

// ValidateUserStoryID validates a user story identifier
func ValidateUserStoryID(id string) error {
	if !UserStoryIDRegex.MatchString(id) {
		return fmt.Errorf("invalid user story id %q: must look like US-001 or US-001E", id)
	}
	return nil
}

// ValidateACID validates an acceptance criterion identifier
func ValidateACID(id string) error {
	if !ACIDRegex.MatchString(id) {
		return fmt.Errorf("invalid acceptance criterion id %q: must look like AC-US1-01", id)
	}
	return nil
}

// ValidateStatus validates an increment lifecycle status
func ValidateStatus(status string) error {
	switch Status(status) {
	case StatusBacklog, StatusPlanning, StatusActive, StatusPaused, StatusCompleted, StatusAbandoned:
		return nil
	default:
		return fmt.Errorf("invalid status: must be one of: backlog, planning, active, paused, completed, abandoned")
	}
}

// ValidateIncrementType validates an increment type
func ValidateIncrementType(t string) error {
	switch IncrementType(t) {
	case IncrementTypeFeature, IncrementTypeHotfix, IncrementTypeBug, IncrementTypeChangeRequest,
		IncrementTypeRefactor, IncrementTypeExperiment, IncrementTypeSpike:
		return nil
	default:
		return fmt.Errorf("invalid increment type: must be one of: feature, hotfix, bug, change-request, refactor, experiment, spike")
	}
}

// ValidatePriority validates a P0-P3 priority label
func ValidatePriority(priority string) error {
	switch priority {
	case "P0", "P1", "P2", "P3":
		return nil
	default:
		return fmt.Errorf("invalid priority: must be one of: P0, P1, P2, P3")
	}
}

// ValidateTimestamp validates and parses an ISO8601 timestamp
func ValidateTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: expected ISO8601/RFC3339")
	}
	return t, nil
}

// ValidateMetadata checks the fields the lifecycle depends on
func ValidateMetadata(m *Metadata) error {
	if err := ValidateIncrementID(m.ID); err != nil {
		return err
	}
	if err := ValidateStatus(string(m.Status)); err != nil {
		return err
	}
	if m.Type != "" {
		if err := ValidateIncrementType(string(m.Type)); err != nil {
			return err
		}
	}
	if m.Priority != "" {
		if err := ValidatePriority(m.Priority); err != nil {
			return err
		}
	}
	return nil
}
