package knol

import (
	"sort"
	"strings"
)

// CanonifyTags splits a free-text tag string on whitespace and commas,
// drops case-insensitive duplicates (first spelling wins), sorts the rest
// case-insensitively and joins them with single spaces.
func CanonifyTags(tags string) string {
	parts := strings.FieldsFunc(tags, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return strings.Join(out, " ")
}
