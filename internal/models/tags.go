package models

import "strings"

// NormalizeTags trims each entry, drops empties and exact duplicates, and keeps first-seen order.
// It never returns nil so the column round-trips as an empty array.
func NormalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func trimSpace(s string) string { return strings.TrimSpace(s) }
