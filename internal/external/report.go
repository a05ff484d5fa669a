package external

import (
	"fmt"
	"strings"
	"time"

	"github.com/lherron/incsync/internal/domain"
)

// RenderReport renders the resolution report written next to spec.md
func RenderReport(resolutions []domain.ExternalResolution, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Conflict Resolution Report\n")
	fmt.Fprintf(&b, "\n**Generated**: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "**Total Resolutions**: %d\n", len(resolutions))
	b.WriteString("\n## Resolutions\n\n")

	for _, r := range resolutions {
		fmt.Fprintf(&b, "### %s\n", r.Field)
		fmt.Fprintf(&b, "- **Local Value**: %s\n", r.LocalValue)
		fmt.Fprintf(&b, "- **External Value**: %s\n", r.ExternalValue)
		fmt.Fprintf(&b, "- **Resolution**: %s WINS\n", strings.ToUpper(string(r.Winner)))
		fmt.Fprintf(&b, "- **Resolved To**: %s\n", r.ResolvedValue)
		fmt.Fprintf(&b, "- **Reason**: %s\n", r.Reason)
		fmt.Fprintf(&b, "- **Time**: %s\n\n", r.Timestamp.UTC().Format(time.RFC3339))
	}

	b.WriteString("## Validation\n")
	b.WriteString("✅ All conflicts resolved with external tool priority\n")
	return b.String()
}
