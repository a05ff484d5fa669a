package lifecycle

import (
	"fmt"
	"strings"

	"github.com/lherron/incsync/internal/domain"
)

// Limits are the WIP discipline settings
type Limits struct {
	HardCap        int      `json:"hardCap" yaml:"hardCap"`
	SoftLimit      int      `json:"softLimit" yaml:"softLimit"`
	InterruptTypes []string `json:"interruptTypes" yaml:"interruptTypes"`
}

// DefaultLimits returns hardCap 2, softLimit 1, hotfix and bug as interrupts
func DefaultLimits() Limits {
	return Limits{
		HardCap:        2,
		SoftLimit:      1,
		InterruptTypes: []string{string(domain.IncrementTypeHotfix), string(domain.IncrementTypeBug)},
	}
}

// CheckDiscipline evaluates the active set that would result from
// activating candidate. active must not include candidate. A nil candidate
// checks the active set as it stands. Interrupt increments are not counted
// toward the hard cap, but they do count toward the soft limit.
func CheckDiscipline(active []*domain.Metadata, candidate *domain.Metadata, limits Limits) []domain.Violation {
	set := active
	if candidate != nil {
		set = append(append([]*domain.Metadata{}, active...), candidate)
	}
	count := len(set)

	interrupts := 0
	for _, m := range set {
		if m.IsInterrupt(limits.InterruptTypes) {
			interrupts++
		}
	}
	capped := count - interrupts

	var violations []domain.Violation
	if capped > limits.HardCap {
		excess := capped - limits.HardCap
		msg := fmt.Sprintf("Hard cap exceeded: %d active increments (maximum: %d)", capped, limits.HardCap)
		if interrupts > 0 {
			msg = fmt.Sprintf("Hard cap exceeded: %d active increments besides %d interrupt(s) (maximum: %d)", capped, interrupts, limits.HardCap)
		}
		violations = append(violations, domain.Violation{
			Type:       domain.ViolationHardCapExceeded,
			Message:    msg,
			Suggestion: fmt.Sprintf("Complete or pause at least %d increment(s) with incsync complete <id> or incsync pause <id>", excess),
			Severity:   domain.SeverityCritical,
			Context: map[string]int{
				"activeCount":    count,
				"interruptCount": interrupts,
				"hardCap":        limits.HardCap,
				"excess":         excess,
			},
		})
		return violations
	}
	if count > limits.SoftLimit {
		violations = append(violations, domain.Violation{
			Type:       domain.ViolationWIPLimitExceeded,
			Message:    fmt.Sprintf("WIP limit exceeded: %d active increments (recommended: %d)", count, limits.SoftLimit),
			Suggestion: "Consider completing one increment before starting new work",
			Severity:   domain.SeverityWarning,
			Context: map[string]int{
				"activeCount": count,
				"recommended": limits.SoftLimit,
			},
		})
	}
	return violations
}

// CheckStanding evaluates the active set found on disk. On top of
// CheckDiscipline, two or more increments active at once need at least one
// interrupt among them; without one the set is a CRITICAL violation that is
// reported, never corrected.
func CheckStanding(active []*domain.Metadata, limits Limits) []domain.Violation {
	violations := CheckDiscipline(active, nil, limits)
	if len(active) < 2 {
		return violations
	}
	for _, v := range violations {
		if v.Type == domain.ViolationHardCapExceeded {
			return violations
		}
	}
	for _, m := range active {
		if m.IsInterrupt(limits.InterruptTypes) {
			return violations
		}
	}

	out := []domain.Violation{{
		Type:       domain.ViolationInterruptRequired,
		Message:    fmt.Sprintf("%d increments active at once and none is an interrupt (%s)", len(active), strings.Join(limits.InterruptTypes, ", ")),
		Suggestion: "Pause all but one increment with incsync pause <id>",
		Severity:   domain.SeverityCritical,
		Context: map[string]int{
			"activeCount":    len(active),
			"interruptCount": 0,
			"hardCap":        limits.HardCap,
		},
	}}
	for _, v := range violations {
		if v.Type != domain.ViolationWIPLimitExceeded {
			out = append(out, v)
		}
	}
	return out
}

// DisciplineFindings converts standing violations into audit findings
func DisciplineFindings(violations []domain.Violation) []domain.Finding {
	var out []domain.Finding
	for _, v := range violations {
		out = append(out, domain.Finding{
			Kind:     domain.FindingWIPDiscipline,
			Field:    string(v.Type),
			ValueA:   fmt.Sprintf("%d active", v.Context["activeCount"]),
			ValueB:   limitLabel(v),
			Severity: findingSeverity(v.Severity),
			Impact:   v.Message,
			Fix:      v.Suggestion,
		})
	}
	return out
}

func limitLabel(v domain.Violation) string {
	if v.Type == domain.ViolationInterruptRequired {
		return "interrupt required"
	}
	if hc, ok := v.Context["hardCap"]; ok {
		return fmt.Sprintf("hard cap %d", hc)
	}
	return fmt.Sprintf("soft limit %d", v.Context["recommended"])
}

// findingSeverity maps the warning level onto the audit scale
func findingSeverity(s domain.Severity) domain.Severity {
	if s == domain.SeverityWarning {
		return domain.SeverityLow
	}
	return s
}
