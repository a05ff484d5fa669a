package checklist

import (
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/frontmatter"
)

// Marker names one way a task block can declare completion
type Marker string

const (
	// "**Status**: [x] completed"
	MarkerStatusCheckbox Marker = "status_checkbox"
	// "**Status**: completed"
	MarkerStatusField Marker = "status_field"
	// "**Completed**: 2025-11-18"
	MarkerCompletedDate Marker = "completed_date"
	// every implementation checkbox checked
	MarkerCheckboxes Marker = "checkboxes"
)

var (
	completedWordRe = regexp.MustCompile(`(?i)\b(completed|complete|done)\b`)
	dateRe          = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// TaskState is one task with the evidence behind its completion flag
type TaskState struct {
	domain.Task
	Markers []Marker `json:"markers,omitempty"`
	Badge   bool     `json:"badge"`
}

// Checklist is a parsed task document
type Checklist struct {
	FrontMatter *frontmatter.Document
	Lines       []Line
	Tasks       []TaskState
	// Preamble holds the lines before the first task heading
	Preamble []Line
}

// Progress is the canonical completion state of a checklist
type Progress struct {
	Tasks      []TaskState `json:"tasks"`
	Completed  int         `json:"completed"`
	Total      int         `json:"total"`
	Percentage int         `json:"percentage"`
	// Missing is set when the checklist file does not exist
	Missing bool `json:"missing,omitempty"`
}

// Pending returns the number of incomplete tasks
func (p *Progress) Pending() int {
	return p.Total - p.Completed
}

// Task returns the state for id
func (p *Progress) Task(id string) (TaskState, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskState{}, false
}

// Percentage is round(100*completed/total) clamped to [0,100]
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(completed) / float64(total)))
	if pct > 100 {
		return 100
	}
	return pct
}

// Parse tokenizes a task checklist and groups lines into task blocks
func Parse(content string) (*Checklist, error) {
	fm, err := frontmatter.Parse(content)
	if err != nil {
		return nil, &domain.MalformedDocumentError{Line: 1, Reason: "invalid frontmatter", Err: err}
	}

	cl := &Checklist{
		FrontMatter: fm,
		Lines:       Tokenize(fm.Body(), fm.BodyLineOffset()),
	}

	seen := make(map[string]int)
	first := -1
	for i, l := range cl.Lines {
		if !l.IsTaskHeading() {
			continue
		}
		if first < 0 {
			first = i
		}
		if prev, dup := seen[l.ID]; dup {
			return nil, &domain.MalformedDocumentError{
				Line:   l.Number,
				Reason: fmt.Sprintf("duplicate task %s (first defined on line %d)", l.ID, prev),
			}
		}
		seen[l.ID] = l.Number
		cl.Tasks = append(cl.Tasks, evaluate(l, blockAfter(cl.Lines, i)))
	}

	if first < 0 {
		cl.Preamble = cl.Lines
	} else {
		cl.Preamble = cl.Lines[:first]
	}
	return cl, nil
}

// blockAfter returns the lines owned by the heading at index i: everything up
// to the next heading of equal or lower depth, or the next task heading.
func blockAfter(lines []Line, i int) []Line {
	head := lines[i]
	end := len(lines)
	for j := i + 1; j < len(lines); j++ {
		l := lines[j]
		if l.Kind == LineHeading && (l.Level <= head.Level || l.IsTaskHeading()) {
			end = j
			break
		}
	}
	return lines[i+1 : end]
}

// evaluate applies the marker rules to one task block. Any number of markers
// yields exactly one completed task.
func evaluate(head Line, block []Line) TaskState {
	ts := TaskState{
		Task: domain.Task{
			ID:    head.ID,
			Title: head.Title,
			Line:  head.Number,
		},
		Badge: head.Badge,
	}

	var checked, unchecked int
	acSeen := make(map[string]bool)
	for _, l := range block {
		switch l.Kind {
		case LineField:
			switch {
			case l.FieldIs("Status"):
				if m, ok := statusMarker(l.Value); ok {
					ts.Markers = appendMarker(ts.Markers, m)
				}
			case l.FieldIs("Completed", "Completed At", "Completion Date"):
				if dateRe.MatchString(strings.TrimSpace(l.Value)) {
					ts.Markers = appendMarker(ts.Markers, MarkerCompletedDate)
				}
			case l.FieldIs("AC", "ACs", "Satisfies ACs", "Acceptance Criteria"):
				for _, id := range ACRefs(l.Value) {
					if !acSeen[id] {
						acSeen[id] = true
						ts.ACs = append(ts.ACs, id)
					}
				}
			}
		case LineCheckbox:
			if l.IsAC() {
				continue
			}
			if l.Checked {
				checked++
			} else {
				unchecked++
			}
		}
	}
	if checked > 0 && unchecked == 0 {
		ts.Markers = appendMarker(ts.Markers, MarkerCheckboxes)
	}

	ts.Completed = len(ts.Markers) > 0
	return ts
}

func statusMarker(value string) (Marker, bool) {
	v := strings.ToLower(value)
	switch {
	case strings.Contains(v, "[ ]"):
		return "", false
	case strings.Contains(v, "[x]"):
		return MarkerStatusCheckbox, true
	case strings.Contains(v, "incomplete"), strings.Contains(v, "not "):
		return "", false
	case completedWordRe.MatchString(v):
		return MarkerStatusField, true
	}
	return "", false
}

func appendMarker(markers []Marker, m Marker) []Marker {
	for _, existing := range markers {
		if existing == m {
			return markers
		}
	}
	return append(markers, m)
}

// Progress computes canonical counts for the parsed tasks
func (c *Checklist) Progress() *Progress {
	p := &Progress{Tasks: c.Tasks, Total: len(c.Tasks)}
	for _, t := range c.Tasks {
		if t.Completed {
			p.Completed++
		}
	}
	p.Percentage = Percentage(p.Completed, p.Total)
	return p
}

// Extract parses content and returns its canonical completion state
func Extract(content string) (*Progress, error) {
	cl, err := Parse(content)
	if err != nil {
		return nil, err
	}
	return cl.Progress(), nil
}

// ExtractFile reads and extracts a checklist file. A missing file is zero
// tasks with Missing set, not an error.
func ExtractFile(path string) (*Progress, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Progress{Missing: true}, nil
		}
		return nil, fmt.Errorf("failed to read checklist: %w", err)
	}
	p, err := Extract(string(data))
	if err != nil {
		return nil, WithPath(err, path)
	}
	return p, nil
}

// WithPath fills in the file path of a MalformedDocumentError
func WithPath(err error, path string) error {
	var malformed *domain.MalformedDocumentError
	if errors.As(err, &malformed) && malformed.Path == "" {
		malformed.Path = path
	}
	return err
}
