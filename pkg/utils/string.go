package utils

import "strings"

// Ellipsis is appended to truncated strings.
const Ellipsis = "…"

// Truncate shortens s to at most maxLen runes, appending Ellipsis when
// anything was cut. It never splits a multi-byte rune.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + Ellipsis
		}
		n++
	}
	return s
}

// CollapseWhitespace trims s and replaces every internal run of whitespace
// with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
