package paths

import (
	"path/filepath"
	"strconv"
	"strings"
)

// MatchID reports whether an increment id is selected by pattern.
// Supports shell globs (0001-*, *-auth), a bare sequence number (0003 or 3)
// and exact ids.
func MatchID(pattern, id string) bool {
	if pattern == id {
		return true
	}
	if IsGlobPattern(pattern) {
		matched, err := filepath.Match(pattern, id)
		return err == nil && matched
	}
	if isDigits(pattern) {
		seq, ok := Sequence(id)
		want, err := strconv.Atoi(pattern)
		return ok && err == nil && seq == want
	}
	return false
}

// SelectIDs filters ids by patterns, keeping the order of ids. No patterns
// selects everything.
func SelectIDs(ids, patterns []string) []string {
	if len(patterns) == 0 {
		return ids
	}
	var out []string
	for _, id := range ids {
		for _, p := range patterns {
			if MatchID(p, id) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// IsGlobPattern checks if a string contains glob characters
func IsGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
