package tui

import (
	"fmt"
)

// Canonical short status messages used across the app.
const (
	MsgLoading    = "Loading posts…"
	MsgGenerating = "Generating…"
	MsgPublishing = "Publishing…"
	MsgSaving     = "Saving…"
	MsgListening  = "Listening…"
	MsgEmpty      = "No posts found. Generate your first post to get started!"
)

func MsgPageOf(current, total int) string {
	if total < 1 {
		total = 1
	}
	if current < 1 {
		current = 1
	}
	return fmt.Sprintf("page %d of %d", current, total)
}

func MsgSuggestionCount(n int) string {
	switch n {
	case 0:
		return "no suggestions"
	case 1:
		return "1 suggestion"
	default:
		return fmt.Sprintf("%d suggestions", n)
	}
}
