package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/quill/internal/desk"
)

// noticeStyle maps a notice severity to its status line style and marker.
func noticeStyle(kind desk.NoticeKind) (lipgloss.Style, string) {
	switch kind {
	case desk.NoticeSuccess:
		return StatusSuccessStyle, "✓ "
	case desk.NoticeError:
		return StatusErrorStyle, "✗ "
	default:
		return StatusInfoStyle, ""
	}
}
