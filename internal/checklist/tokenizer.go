// Package checklist turns task checklists and specification documents into
// structured completion state.
//
// Parsing follows one small grammar shared by both documents:
//
//	document := frontmatter? line*
//	heading  := "#"+ SP (task-id | story-id)? title badge?
//	block    := heading (line)* until a heading of equal or lower depth
//	marker   := checkbox | field
//
// Every completion rule lives in this package so the "several markers count
// once" behavior has a single home.
package checklist

import (
	"regexp"
	"strings"
)

// LineKind classifies a tokenized line
type LineKind int

const (
	LineText LineKind = iota
	LineHeading
	LineCheckbox
	LineField
)

func (k LineKind) String() string {
	switch k {
	case LineHeading:
		return "heading"
	case LineCheckbox:
		return "checkbox"
	case LineField:
		return "field"
	default:
		return "text"
	}
}

// CompleteBadge is the derived marker appended to completed task headings
const CompleteBadge = "✅ COMPLETE"

// Line is one classified line of a document body
type Line struct {
	Number int // 1-based, counted from the top of the file
	Kind   LineKind
	Raw    string

	// Heading
	Level int
	ID    string
	Title string
	Badge bool

	// Checkbox
	Checked bool
	Text    string

	// Field ("**Key**: value")
	Key   string
	Value string
}

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*$`)
	taskHeadRe = regexp.MustCompile(`^(T-\d{3,}E?)\b:?\s*(.*)$`)
	storyRe    = regexp.MustCompile(`^(?:User Story:?\s*)?(US-\d{3,}E?)\b:?\s*(.*)$`)
	checkboxRe = regexp.MustCompile(`^\s*[-*]\s+\[([ xX])\]\s*(.*)$`)
	acLeadRe   = regexp.MustCompile(`^(?:\*\*)?(AC-[A-Z0-9]+(?:-[A-Z0-9]+)*)(?:\*\*)?\s*:?`)
	fieldRe    = regexp.MustCompile(`^\s*(?:[-*]\s+)?\*\*([^*]+?)\*\*\s*:\s*(.*?)\s*$`)
	acRefRe    = regexp.MustCompile(`AC-[A-Z0-9]+(?:-[A-Z0-9]+)*`)
)

// Tokenize classifies every line of body. offset is the number of file lines
// that precede body, so Line.Number always refers to the whole file.
func Tokenize(body string, offset int) []Line {
	if body == "" {
		return nil
	}
	raw := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	lines := make([]Line, 0, len(raw))
	inFence := false
	for i, text := range raw {
		text = strings.TrimSuffix(text, "\r")
		l := Line{Number: offset + i + 1, Raw: text}

		if strings.HasPrefix(strings.TrimSpace(text), "```") {
			inFence = !inFence
			lines = append(lines, l)
			continue
		}
		if inFence {
			lines = append(lines, l)
			continue
		}

		if m := headingRe.FindStringSubmatch(text); m != nil {
			l.Kind = LineHeading
			l.Level = len(m[1])
			l.Title = m[2]
			if tm := taskHeadRe.FindStringSubmatch(m[2]); tm != nil {
				l.ID = tm[1]
				l.Title = tm[2]
			} else if sm := storyRe.FindStringSubmatch(m[2]); sm != nil {
				l.ID = sm[1]
				l.Title = sm[2]
			}
			if strings.HasSuffix(l.Title, CompleteBadge) {
				l.Badge = true
				l.Title = strings.TrimSpace(strings.TrimSuffix(l.Title, CompleteBadge))
			}
		} else if m := checkboxRe.FindStringSubmatch(text); m != nil {
			l.Kind = LineCheckbox
			l.Checked = m[1] != " "
			l.Text = m[2]
			if am := acLeadRe.FindStringSubmatch(m[2]); am != nil {
				l.ID = am[1]
				l.Text = strings.TrimSpace(m[2][len(am[0]):])
			}
		} else if m := fieldRe.FindStringSubmatch(text); m != nil {
			l.Kind = LineField
			l.Key = strings.TrimSpace(m[1])
			l.Value = m[2]
		}
		lines = append(lines, l)
	}
	return lines
}

// IsTaskHeading reports whether the line opens a task block
func (l Line) IsTaskHeading() bool {
	return l.Kind == LineHeading && strings.HasPrefix(l.ID, "T-")
}

// IsStoryHeading reports whether the line opens a user story section
func (l Line) IsStoryHeading() bool {
	return l.Kind == LineHeading && strings.HasPrefix(l.ID, "US-")
}

// IsAC reports whether the line is an acceptance criterion checkbox
func (l Line) IsAC() bool {
	return l.Kind == LineCheckbox && strings.HasPrefix(l.ID, "AC-")
}

// FieldIs reports whether the line is a field with one of the given keys.
// Keys compare case-insensitively.
func (l Line) FieldIs(keys ...string) bool {
	if l.Kind != LineField {
		return false
	}
	for _, k := range keys {
		if strings.EqualFold(l.Key, k) {
			return true
		}
	}
	return false
}

// ACRefs extracts acceptance criterion ids mentioned in s
func ACRefs(s string) []string {
	return acRefRe.FindAllString(s, -1)
}
