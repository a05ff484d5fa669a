// Package lifecycle governs increment status changes. Requests are checked
// against a transition table and the WIP discipline rules; rule failures come
// back as violations, never as errors.
package lifecycle

import (
	"github.com/lherron/incsync/internal/domain"
)

// Action is an externally requested lifecycle change
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
	ActionAbandon  Action = "abandon"
	ActionReopen   Action = "reopen"
	ActionBacklog  Action = "backlog"
)

// Target returns the status an action moves to
func (a Action) Target() domain.Status {
	switch a {
	case ActionStart, ActionResume, ActionReopen:
		return domain.StatusActive
	case ActionPause:
		return domain.StatusPaused
	case ActionComplete:
		return domain.StatusCompleted
	case ActionAbandon:
		return domain.StatusAbandoned
	case ActionBacklog:
		return domain.StatusBacklog
	default:
		return ""
	}
}

// Transitions is the allowed from -> to table
var Transitions = map[domain.Status][]domain.Status{
	domain.StatusBacklog:   {domain.StatusPlanning, domain.StatusActive, domain.StatusAbandoned},
	domain.StatusPlanning:  {domain.StatusActive, domain.StatusBacklog, domain.StatusAbandoned},
	domain.StatusActive:    {domain.StatusPaused, domain.StatusCompleted, domain.StatusAbandoned, domain.StatusBacklog},
	domain.StatusPaused:    {domain.StatusActive, domain.StatusAbandoned, domain.StatusCompleted},
	domain.StatusCompleted: {domain.StatusActive},
	domain.StatusAbandoned: {domain.StatusActive},
}

// actionSources narrows which states an action may start from. Start and
// resume share a target, but resume only applies to paused increments.
var actionSources = map[Action][]domain.Status{
	ActionStart:  {domain.StatusBacklog, domain.StatusPlanning},
	ActionResume: {domain.StatusPaused},
	ActionReopen: {domain.StatusCompleted, domain.StatusAbandoned},
}

// CanTransition reports whether from -> to is in the table
func CanTransition(from, to domain.Status) bool {
	for _, s := range Transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Allowed reports whether action may be applied to an increment in from
func (a Action) Allowed(from domain.Status) bool {
	if sources, ok := actionSources[a]; ok {
		found := false
		for _, s := range sources {
			if s == from {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return CanTransition(from, a.Target())
}
