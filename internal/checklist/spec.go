package checklist

import (
	"github.com/lherron/incsync/internal/domain"
	"github.com/lherron/incsync/internal/frontmatter"
)

// SpecFrontMatter holds the specification fields the engine reads
type SpecFrontMatter struct {
	Status         string `yaml:"status"`
	Priority       string `yaml:"priority"`
	TotalTasks     *int   `yaml:"total_tasks"`
	CompletedTasks *int   `yaml:"completed_tasks"`
}

// Spec is a parsed specification document
type Spec struct {
	FrontMatter *frontmatter.Document
	Fields      SpecFrontMatter
	Lines       []Line
	Stories     []domain.UserStory
	// Criteria lists every AC checkbox in document order
	Criteria []domain.AcceptanceCriterion
}

// Criterion returns the acceptance criterion with id
func (s *Spec) Criterion(id string) (domain.AcceptanceCriterion, bool) {
	for _, ac := range s.Criteria {
		if ac.ID == id {
			return ac, true
		}
	}
	return domain.AcceptanceCriterion{}, false
}

// ParseSpec parses frontmatter, user stories and AC checkboxes
func ParseSpec(content string) (*Spec, error) {
	fm, err := frontmatter.Parse(content)
	if err != nil {
		return nil, &domain.MalformedDocumentError{Line: 1, Reason: "invalid frontmatter", Err: err}
	}
	s := &Spec{
		FrontMatter: fm,
		Lines:       Tokenize(fm.Body(), fm.BodyLineOffset()),
	}
	if err := fm.Decode(&s.Fields); err != nil {
		return nil, &domain.MalformedDocumentError{Line: 1, Reason: "invalid frontmatter fields", Err: err}
	}

	var story *domain.UserStory
	storyLevel := 0
	for _, l := range s.Lines {
		switch {
		case l.IsStoryHeading():
			s.Stories = append(s.Stories, domain.UserStory{ID: l.ID, Title: l.Title})
			story = &s.Stories[len(s.Stories)-1]
			storyLevel = l.Level
		case l.Kind == LineHeading && story != nil && l.Level <= storyLevel:
			story = nil
		case l.IsAC():
			ac := domain.AcceptanceCriterion{
				ID:        l.ID,
				Text:      l.Text,
				Completed: l.Checked,
				Line:      l.Number,
			}
			if story != nil {
				ac.StoryID = story.ID
				story.Criteria = append(story.Criteria, ac)
			}
			s.Criteria = append(s.Criteria, ac)
		}
	}
	return s, nil
}
