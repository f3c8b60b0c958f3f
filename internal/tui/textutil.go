package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// truncateEnd shortens s to at most limit terminal cells, appending an
// ellipsis if truncation occurs. Wide runes and escape sequences count by
// their rendered width.
func truncateEnd(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= limit {
		return s
	}
	if limit <= 1 {
		return "…"
	}
	return ansi.Truncate(s, limit, "…")
}

// truncateMiddle shortens s to at most limit characters by preserving the
// start and end of the string with a single ellipsis in the middle.
// Useful for URLs where both ends carry meaning.
func truncateMiddle(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	n := len(r)
	if n <= limit {
		return s
	}
	if limit <= 1 {
		return "…"
	}
	keep := limit - 1
	left := keep / 2
	right := keep - left
	if left <= 0 {
		return "…" + string(r[n-right:])
	}
	return string(r[:left]) + "…" + string(r[n-right:])
}

// firstLine returns the first non-blank line of s with inner whitespace
// collapsed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			return line
		}
	}
	return ""
}
