package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/quill/internal/search"
)

// renderHeader stacks the view title over a muted line of query details.
func renderHeader(title, details string, width int) string {
	head := HeaderStyle.Render(truncateEnd(title, width-2))
	if details == "" {
		return head
	}
	return head + "\n" + renderMuted(truncateEnd(details, width-2))
}

// renderField frames an input view, highlighting the border while it has focus.
func renderField(view string, focused bool, width int) string {
	border := MutedColor
	if focused {
		border = AccentColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(width + 4).
		Render(view)
}

// renderPanel lays out a titled form in the middle of the body area.
func renderPanel(width, height int, title string, rows ...string) string {
	body := append([]string{TitleStyle.Render("› " + title), ""}, rows...)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, body...))
}

// renderSuggestions lists topic suggestions; the first is the one tab accepts.
func renderSuggestions(list []*search.Suggestion, width int) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(renderMuted(MsgSuggestionCount(len(list))))
	for i, s := range list {
		text := truncateEnd(s.Text, width-20)
		kind := " [" + s.Kind.String() + "]"
		b.WriteByte('\n')
		if i == 0 {
			b.WriteString(SuggestionStyle.Render("› "+text) + renderMuted(kind))
			continue
		}
		b.WriteString(renderMuted("  " + text + kind))
	}
	return b.String()
}

func renderMuted(text string) string {
	return lipgloss.NewStyle().Foreground(MutedColor).Render(text)
}

func renderHelp(text string) string { return HelpStyle.Render(text) }
