// Package propagate rewrites every derived marker from the canonical task
// state: acceptance-criterion checkboxes, task header badges, the tasks.md
// progress block and frontmatter counters.
//
// Propagate is a pure function of its input text. Running it on its own
// output yields no updates.
package propagate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lherron/incsync/internal/checklist"
	"github.com/lherron/incsync/internal/frontmatter"
)

const (
	FileSpec  = "spec.md"
	FileTasks = "tasks.md"
)

// Update is a single derived value that was rewritten
type Update struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Target string `json:"target"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Conflict is an acceptance criterion checked by hand while some of its
// linked tasks are still open. It is reported, never overwritten.
type Conflict struct {
	ACID        string   `json:"acId"`
	Marker      string   `json:"marker"`
	Line        int      `json:"line"`
	LinkedTasks []string `json:"linkedTasks"`
	Incomplete  []string `json:"incomplete"`
}

// Result is the outcome of one propagation
type Result struct {
	Spec      string     `json:"-"`
	Tasks     string     `json:"-"`
	Updates   []Update   `json:"updates"`
	Conflicts []Conflict `json:"conflicts"`

	// Synced is true when at least one acceptance criterion was checked
	Synced       bool `json:"synced"`
	SpecChanged  bool `json:"specChanged"`
	TasksChanged bool `json:"tasksChanged"`

	// Parsed input, kept for callers that audit the same view
	Progress *checklist.Progress `json:"-"`
	Parsed   *checklist.Spec     `json:"-"`
}

// InSync reports whether nothing had to change and nothing is in conflict
func (r *Result) InSync() bool {
	return len(r.Updates) == 0 && len(r.Conflicts) == 0
}

// Message describes the conflict the way reports print it
func (c Conflict) Message() string {
	done := len(c.LinkedTasks) - len(c.Incomplete)
	return fmt.Sprintf("%s: %s but only %d/%d tasks complete (%d%%)",
		c.ACID, c.Marker, done, len(c.LinkedTasks), checklist.Percentage(done, len(c.LinkedTasks)))
}

var uncheckedRe = regexp.MustCompile(`^(\s*[-*]\s+\[) (\])`)

// Propagate computes the rewritten spec and tasks text. An empty string means
// the document is absent and is left untouched.
func Propagate(specText, tasksText string) (*Result, error) {
	res := &Result{Spec: specText, Tasks: tasksText}

	var cl *checklist.Checklist
	if tasksText != "" {
		var err error
		cl, err = checklist.Parse(tasksText)
		if err != nil {
			return nil, checklist.WithPath(err, FileTasks)
		}
		res.Progress = cl.Progress()
	} else {
		res.Progress = &checklist.Progress{Missing: true}
	}

	if tasksText != "" {
		out, updates, err := propagateTasks(cl, res.Progress)
		if err != nil {
			return nil, err
		}
		res.Tasks = out
		res.Updates = append(res.Updates, updates...)
	}

	if specText != "" {
		spec, err := checklist.ParseSpec(specText)
		if err != nil {
			return nil, checklist.WithPath(err, FileSpec)
		}
		res.Parsed = spec
		out, updates, conflicts, err := propagateSpec(spec, res.Progress)
		if err != nil {
			return nil, err
		}
		res.Spec = out
		res.Updates = append(res.Updates, updates...)
		res.Conflicts = conflicts
		for _, u := range updates {
			if strings.HasPrefix(u.Target, "AC-") {
				res.Synced = true
			}
		}
	}

	res.SpecChanged = res.Spec != specText
	res.TasksChanged = res.Tasks != tasksText
	return res, nil
}

func propagateSpec(spec *checklist.Spec, progress *checklist.Progress) (string, []Update, []Conflict, error) {
	fm := spec.FrontMatter
	offset := fm.BodyLineOffset()
	lines := strings.Split(fm.Body(), "\n")

	linked := LinkedTasks(progress)
	var updates []Update
	var conflicts []Conflict

	for _, ac := range spec.Criteria {
		taskIDs := linked[ac.ID]
		if len(taskIDs) == 0 {
			// no linked tasks: the last explicit value stands
			continue
		}
		var incomplete []string
		for _, id := range taskIDs {
			if t, ok := progress.Task(id); !ok || !t.Completed {
				incomplete = append(incomplete, id)
			}
		}

		switch {
		case len(incomplete) == 0 && !ac.Completed:
			idx := ac.Line - 1 - offset
			lines[idx] = uncheckedRe.ReplaceAllString(lines[idx], "${1}x${2}")
			updates = append(updates, Update{File: FileSpec, Line: ac.Line, Target: ac.ID, From: "[ ]", To: "[x]"})
		case len(incomplete) > 0 && ac.Completed:
			conflicts = append(conflicts, Conflict{
				ACID:        ac.ID,
				Marker:      "[x]",
				Line:        ac.Line,
				LinkedTasks: taskIDs,
				Incomplete:  incomplete,
			})
		}
	}
	fm.SetBody(strings.Join(lines, "\n"))
	if progress.Missing {
		return fm.String(), updates, conflicts, nil
	}

	counterUpdates, err := setCounters(fm, FileSpec, progress)
	if err != nil {
		return "", nil, nil, err
	}
	updates = append(updates, counterUpdates...)
	return fm.String(), updates, conflicts, nil
}

func propagateTasks(cl *checklist.Checklist, progress *checklist.Progress) (string, []Update, error) {
	fm := cl.FrontMatter
	offset := fm.BodyLineOffset()
	lines := strings.Split(fm.Body(), "\n")
	var updates []Update

	for _, t := range progress.Tasks {
		idx := t.Line - 1 - offset
		switch {
		case t.Completed && !t.Badge:
			lines[idx] = strings.TrimRight(lines[idx], " \t") + " " + checklist.CompleteBadge
			updates = append(updates, Update{File: FileTasks, Line: t.Line, Target: t.ID, From: "", To: checklist.CompleteBadge})
		case !t.Completed && t.Badge:
			trimmed := strings.TrimRight(lines[idx], " \t")
			lines[idx] = strings.TrimRight(strings.TrimSuffix(trimmed, checklist.CompleteBadge), " \t")
			updates = append(updates, Update{File: FileTasks, Line: t.Line, Target: t.ID, From: checklist.CompleteBadge, To: ""})
		}
	}

	for _, l := range cl.Preamble {
		var value, suffix string
		switch {
		case l.FieldIs("Total Tasks"):
			value = strconv.Itoa(progress.Total)
		case l.FieldIs("Completed"):
			value = strconv.Itoa(progress.Completed)
		case l.FieldIs("Progress"):
			value = strconv.Itoa(progress.Percentage)
			suffix = "%"
		default:
			continue
		}
		idx := l.Number - 1 - offset
		replaced, from, ok := replaceFieldNumber(lines[idx], l.Key, value, suffix)
		if ok {
			lines[idx] = replaced
			updates = append(updates, Update{File: FileTasks, Line: l.Number, Target: l.Key, From: from, To: value + suffix})
		}
	}
	fm.SetBody(strings.Join(lines, "\n"))

	counterUpdates, err := setCounters(fm, FileTasks, progress)
	if err != nil {
		return "", nil, err
	}
	updates = append(updates, counterUpdates...)
	return fm.String(), updates, nil
}

// replaceFieldNumber rewrites the leading number of a "**Key**: N" field.
// ok is false when the field has no number or already holds value.
func replaceFieldNumber(line, key, value, suffix string) (string, string, bool) {
	re := regexp.MustCompile(`(\*\*` + regexp.QuoteMeta(key) + `\*\*\s*:\s*)(\d+)` + regexp.QuoteMeta(suffix) + `(?:[\s/(]|$)`)
	m := re.FindStringSubmatchIndex(line)
	if m == nil {
		return line, "", false
	}
	current := line[m[4]:m[5]]
	if current == value {
		return line, "", false
	}
	return line[:m[4]] + value + line[m[5]:], current + suffix, true
}

// setCounters rewrites total_tasks/completed_tasks when they already exist
func setCounters(fm *frontmatter.Document, file string, progress *checklist.Progress) ([]Update, error) {
	var updates []Update
	counters := []struct {
		key   string
		value int
	}{
		{"total_tasks", progress.Total},
		{"completed_tasks", progress.Completed},
	}
	for _, c := range counters {
		from, ok := fm.Get(c.key)
		if !ok {
			continue
		}
		to := strconv.Itoa(c.value)
		changed, err := fm.Set(to, c.key)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to update %s: %w", file, c.key, err)
		}
		if changed {
			updates = append(updates, Update{File: file, Target: c.key, From: from, To: to})
		}
	}
	return updates, nil
}

// LinkedTasks maps each AC id to the tasks that reference it, in task order
func LinkedTasks(progress *checklist.Progress) map[string][]string {
	linked := make(map[string][]string)
	for _, t := range progress.Tasks {
		for _, ac := range t.ACs {
			linked[ac] = append(linked[ac], t.ID)
		}
	}
	return linked
}
