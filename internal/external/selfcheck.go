package external

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lherron/incsync/internal/domain"
)

type sourceRule struct {
	re      *regexp.Regexp
	message string
}

var rejectedSource = []sourceRule{
	{regexp.MustCompile(`if.*conflict.*\{[^}]*spec\.status\s*=\s*localStatus`), "Local status should never win in conflicts"},
	{regexp.MustCompile(`resolution\s*:\s*['"]local['"]`), "Resolution should be \"external\" for status conflicts"},
	{regexp.MustCompile(`(?i)prefer.*local.*status`), "Should prefer external status"},
	{regexp.MustCompile(`Winner\s*:\s*"local"`), "Winner must be external for status and priority"},
	{regexp.MustCompile(`\bWinnerLocal\b`), "A local winner must not exist"},
}

var requiredSource = []sourceRule{
	{regexp.MustCompile(`(?i)external.*wins|externalStatus.*applied`), "Missing confirmation that external wins"},
}

// SelfCheck scans resolver source text for code that would let local values
// win. It returns one message per violated rule; none means the source
// holds the policy.
func SelfCheck(src string) []string {
	var violations []string
	for _, r := range rejectedSource {
		if r.re.MatchString(src) {
			violations = append(violations, r.message)
		}
	}
	for _, r := range requiredSource {
		if !r.re.MatchString(src) {
			violations = append(violations, r.message)
		}
	}
	return violations
}

// VerifyPolicy runs the resolver over every status in the platform table
// against a local state that disagrees on everything, and fails if any
// resolution is not won by the external side.
func VerifyPolicy(r *Resolver) error {
	var failures []string
	for _, platform := range PlatformNames() {
		p := Platform(platform)
		statuses := make([]string, 0, len(Platforms[p].ToLocal))
		for s := range Platforms[p].ToLocal {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)

		for _, s := range statuses {
			local := LocalState{IncrementID: "policy-check", Status: "local-only", Priority: "P3"}
			ext := ExternalState{Platform: p, Status: s, Priority: "P0"}
			resolutions, err := r.Resolve(local, ext)
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s/%s: %v", p, s, err))
				continue
			}
			if len(resolutions) != 2 {
				failures = append(failures, fmt.Sprintf("%s/%s: expected status and priority resolutions, got %d", p, s, len(resolutions)))
			}
			for _, res := range resolutions {
				if res.Winner != domain.WinnerExternal {
					failures = append(failures, fmt.Sprintf("%s/%s: %s won by %q", p, s, res.Field, res.Winner))
				}
				if res.Field == "status" && res.ResolvedValue != string(Platforms[p].ToLocal[s]) {
					failures = append(failures, fmt.Sprintf("%s/%s: status resolved to %q", p, s, res.ResolvedValue))
				}
			}
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("external-wins policy violated:\n  %s", strings.Join(failures, "\n  "))
	}
	return nil
}
