package paths

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	seqPattern  = regexp.MustCompile(`^(\d{4})-`)
	maxSlugLen  = 60
)

// NormalizeSlug turns a free-form title into the slug half of an increment id.
// Rules:
// - Always lower-case
// - Allowed characters: a-z, 0-9, -
// - Runs of separators collapse to one hyphen
// - Max length: 60 bytes, cut on a hyphen boundary when possible
func NormalizeSlug(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("slug cannot be empty")
	}

	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '_' || r == '-' || r == '/' || r == '.':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")

	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
		if i := strings.LastIndexByte(slug, '-'); i > 0 {
			slug = slug[:i]
		}
		slug = strings.Trim(slug, "-")
	}

	if !slugPattern.MatchString(slug) {
		return "", fmt.Errorf("slug must contain at least one alphanumeric character: %q", s)
	}
	return slug, nil
}

// Sequence returns the four-digit number that prefixes an increment id
func Sequence(id string) (int, bool) {
	m := seqPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextID returns the id for a new increment titled title, numbered one past
// the highest sequence among existing.
func NextID(existing []string, title string) (string, error) {
	slug, err := NormalizeSlug(title)
	if err != nil {
		return "", err
	}
	next := 1
	for _, id := range existing {
		if n, ok := Sequence(id); ok && n >= next {
			next = n + 1
		}
	}
	if next > 9999 {
		return "", fmt.Errorf("increment sequence exhausted")
	}
	return fmt.Sprintf("%04d-%s", next, slug), nil
}
