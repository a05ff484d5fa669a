package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the error taxonomy used across the engine
type ErrorKind string

const (
	KindMissingArtifact     ErrorKind = "MissingArtifact"
	KindMalformedDocument   ErrorKind = "MalformedDocument"
	KindConsistencyConflict ErrorKind = "ConsistencyConflict"
	KindDisciplineViolation ErrorKind = "DisciplineViolation"
	KindInternal            ErrorKind = "Internal"
)

// ErrNoActiveIncrement is returned when nothing is active to summarize
var ErrNoActiveIncrement = errors.New("no active increment")

// MissingArtifactError is returned when an increment file is absent.
// Most callers treat it as zero-state.
type MissingArtifactError struct {
	IncrementID string
	Artifact    string
	Path        string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("%s: %s not found at %s", e.IncrementID, e.Artifact, e.Path)
}

// MalformedDocumentError is fatal for the one increment that owns the file
type MalformedDocumentError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *MalformedDocumentError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed document %s: %s: %v", loc, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed document %s: %s", loc, e.Reason)
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// IncrementError tags an error with the increment it belongs to so batch
// runs can report it next to successes.
type IncrementError struct {
	IncrementID string
	Err         error
}

func (e *IncrementError) Error() string {
	return fmt.Sprintf("%s: %v", e.IncrementID, e.Err)
}

func (e *IncrementError) Unwrap() error {
	return e.Err
}

// KindOf classifies an error into the taxonomy
func KindOf(err error) ErrorKind {
	var missing *MissingArtifactError
	var malformed *MalformedDocumentError
	switch {
	case errors.As(err, &missing):
		return KindMissingArtifact
	case errors.As(err, &malformed):
		return KindMalformedDocument
	default:
		return KindInternal
	}
}

// IsMissing reports whether err is a MissingArtifactError
func IsMissing(err error) bool {
	var missing *MissingArtifactError
	return errors.As(err, &missing)
}
