package snapshot

import (
	"fmt"
	"strings"
)

const (
	barWidth    = 8
	maxNameLen  = 20
	noActiveMsg = "[no active increment]"
)

// FormatStatusLine renders a cached result as a single display line:
//
//	[0001-auth] ████░░░░ 4/8 (50%)
//
// A stale result names the increment but shows no numbers.
func FormatStatusLine(res Result) string {
	if res.Stale && !res.NoActive && res.Snapshot != nil && res.Snapshot.Current != nil {
		return fmt.Sprintf("[%s] stale, run incsync sync", truncate(res.Snapshot.Current.ID, maxNameLen))
	}
	cur := res.Progress()
	if cur == nil {
		return noActiveMsg
	}
	line := fmt.Sprintf("[%s] %s %d/%d (%d%%)",
		truncate(cur.ID, maxNameLen), bar(cur.Percentage), cur.Completed, cur.Total, cur.Percentage)
	if extra := res.Snapshot.OpenCount - 1; extra > 0 {
		line += fmt.Sprintf(" +%d open", extra)
	}
	return line
}

func bar(percentage int) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	filled := (percentage*barWidth + 50) / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
