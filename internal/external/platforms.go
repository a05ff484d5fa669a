// Package external reconciles an increment's spec with an external tracker.
// For status and priority the tracker is the authority.
package external

import (
	"fmt"
	"sort"
)

// Platform names an external tracker
type Platform string

const (
	PlatformADO    Platform = "ado"
	PlatformJira   Platform = "jira"
	PlatformGitHub Platform = "github"
)

// SpecStatus is the status vocabulary the resolver writes into spec.md
type SpecStatus string

const (
	SpecDraft       SpecStatus = "draft"
	SpecInProgress  SpecStatus = "in-progress"
	SpecImplemented SpecStatus = "implemented"
	SpecInQA        SpecStatus = "in-qa"
	SpecComplete    SpecStatus = "complete"
	SpecBlocked     SpecStatus = "blocked"
	SpecCancelled   SpecStatus = "cancelled"
)

// Mapping translates one platform's statuses in both directions
type Mapping struct {
	ToLocal    map[string]SpecStatus
	ToExternal map[SpecStatus]string
}

// Platforms is the status table for every supported tracker
var Platforms = map[Platform]Mapping{
	PlatformADO: {
		ToLocal: map[string]SpecStatus{
			"New":       SpecDraft,
			"Active":    SpecInProgress,
			"Resolved":  SpecImplemented,
			"Closed":    SpecComplete,
			"In Review": SpecInQA,
			"In QA":     SpecInQA,
			"Blocked":   SpecBlocked,
			"Removed":   SpecCancelled,
		},
		ToExternal: map[SpecStatus]string{
			SpecDraft:       "New",
			SpecInProgress:  "Active",
			SpecImplemented: "Resolved",
			SpecInQA:        "In QA",
			SpecComplete:    "Closed",
			SpecBlocked:     "Blocked",
			SpecCancelled:   "Removed",
		},
	},
	PlatformJira: {
		ToLocal: map[string]SpecStatus{
			"To Do":       SpecDraft,
			"In Progress": SpecInProgress,
			"Code Review": SpecImplemented,
			"In Review":   SpecImplemented,
			"QA":          SpecInQA,
			"Testing":     SpecInQA,
			"Done":        SpecComplete,
			"Closed":      SpecComplete,
			"Blocked":     SpecBlocked,
			"Cancelled":   SpecCancelled,
		},
		ToExternal: map[SpecStatus]string{
			SpecDraft:       "To Do",
			SpecInProgress:  "In Progress",
			SpecImplemented: "Code Review",
			SpecInQA:        "QA",
			SpecComplete:    "Done",
			SpecBlocked:     "Blocked",
			SpecCancelled:   "Cancelled",
		},
	},
	PlatformGitHub: {
		ToLocal: map[string]SpecStatus{
			"open":   SpecInProgress,
			"closed": SpecComplete,
		},
		ToExternal: map[SpecStatus]string{
			SpecDraft:       "open",
			SpecInProgress:  "open",
			SpecImplemented: "open",
			SpecInQA:        "open",
			SpecComplete:    "closed",
			SpecBlocked:     "open",
			SpecCancelled:   "closed",
		},
	},
}

// Mapped is the result of translating an external status. Known is false
// when the platform has no entry for it.
type Mapped struct {
	Status SpecStatus
	Known  bool
}

// ParsePlatform validates a platform name
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if _, ok := Platforms[p]; !ok {
		return "", fmt.Errorf("unknown platform %q (want one of %v)", s, PlatformNames())
	}
	return p, nil
}

// PlatformNames lists the supported platforms in sorted order
func PlatformNames() []string {
	names := make([]string, 0, len(Platforms))
	for p := range Platforms {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// MapExternalStatus translates a tracker status into the spec vocabulary
func MapExternalStatus(platform Platform, status string) Mapped {
	s, ok := Platforms[platform].ToLocal[status]
	return Mapped{Status: s, Known: ok}
}

// MapLocalStatus translates a spec status into the tracker's vocabulary,
// for pushing local changes upstream
func MapLocalStatus(platform Platform, status SpecStatus) (string, bool) {
	s, ok := Platforms[platform].ToExternal[status]
	return s, ok
}
