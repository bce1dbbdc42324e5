package document

import (
	"path"
	"regexp"
	"strings"

	slug "github.com/goliatone/go-slug"
)

var (
	datePrefix   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-`)
	nonAlnumRuns = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeSlug lower-cases value and collapses non-alphanumeric runs into a
// single separator.
func NormalizeSlug(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if normalized, err := slug.Normalize(trimmed); err == nil && normalized != "" {
		return collapse(normalized)
	}
	return collapse(trimmed)
}

func collapse(value string) string {
	return strings.Trim(nonAlnumRuns.ReplaceAllString(strings.ToLower(value), "-"), "-")
}

// SlugFromPath derives the slug from a file name. Date prefixed names lose
// the date when stripDate is set.
func SlugFromPath(p string, stripDate bool) string {
	base := path.Base(p)
	base = strings.TrimSuffix(base, path.Ext(base))
	if stripDate {
		if stripped := datePrefix.ReplaceAllString(base, ""); stripped != "" {
			base = stripped
		}
	}
	return NormalizeSlug(base)
}
