// Package strings holds small list helpers shared by config parsing.
package strings

import (
	"strings"
)

// SplitList splits a comma separated value into trimmed, non-empty, unique
// entries in first-seen order.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return Dedupe(strings.Split(s, ","), false)
}

// Dedupe trims each value and drops blanks and repeats. With fold set the
// values are lowercased first, so "LLC" and "llc" collapse.
func Dedupe(values []string, fold bool) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if fold {
			v = strings.ToLower(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
