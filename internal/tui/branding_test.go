package tui

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/quill/internal/config"
)

func TestShowBanner(t *testing.T) {
	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		outC <- buf.String()
	}()

	ShowBanner("1.0.0-test")

	w.Close()
	os.Stdout = old
	out := <-outC

	if !strings.Contains(out, "Post Desk") {
		t.Errorf("Expected banner to contain 'Post Desk', got: %s", out)
	}
	if !strings.Contains(out, "v1.0.0-test") {
		t.Errorf("Expected banner to contain version, got: %s", out)
	}
	// Check for border characters
	if !strings.Contains(out, "╔") || !strings.Contains(out, "╝") {
		t.Errorf("Expected banner to contain border characters, got: %s", out)
	}
	// Check for separator
	if !strings.Contains(out, "◆") {
		t.Errorf("Expected banner to contain separator, got: %s", out)
	}
}

func TestBannerDevVersion(t *testing.T) {
	out := Banner("dev")
	if !strings.Contains(out, "Post Desk") {
		t.Errorf("Banner(dev) missing tagline: %s", out)
	}
	if strings.Contains(out, "vdev") {
		t.Errorf("Banner(dev) should not print a version: %s", out)
	}
	if !strings.Contains(Banner("v2.0.0"), "v2.0.0") || strings.Contains(Banner("v2.0.0"), "vv2.0.0") {
		t.Error("an existing v prefix should be kept as is")
	}
}

func TestGetCompactBanner(t *testing.T) {
	out := GetCompactBanner("hello there")
	if !strings.Contains(out, "hello there") {
		t.Errorf("compact banner lost its message: %s", out)
	}
	if !strings.Contains(out, strings.TrimSpace(LogoLines[0])) {
		t.Errorf("compact banner missing logo: %s", out)
	}
}

func TestGetWelcomeMessage(t *testing.T) {
	out := GetWelcomeMessage("g")
	if !strings.Contains(out, MsgEmpty) {
		t.Errorf("welcome message missing empty-state text: %s", out)
	}
	if !strings.Contains(out, "Press g to compose a topic") {
		t.Errorf("welcome message missing compose hint: %s", out)
	}
}

func TestApplyTheme(t *testing.T) {
	saved := []lipgloss.Color{PrimaryColor, AccentColor, ErrorColor}
	defer func() {
		PrimaryColor, AccentColor, ErrorColor = saved[0], saved[1], saved[2]
		buildStyles()
	}()

	before := SecondaryColor
	ApplyTheme(config.UIColors{Primary: "#123456", Accent: "#abcdef", Error: "#ff0000"})

	if PrimaryColor != lipgloss.Color("#123456") {
		t.Errorf("PrimaryColor = %v", PrimaryColor)
	}
	if AccentColor != lipgloss.Color("#abcdef") {
		t.Errorf("AccentColor = %v", AccentColor)
	}
	if ErrorColor != lipgloss.Color("#ff0000") {
		t.Errorf("ErrorColor = %v", ErrorColor)
	}
	if SecondaryColor != before {
		t.Errorf("empty entries must keep the built-in color, got %v", SecondaryColor)
	}
	if StatusErrorStyle.GetForeground() != lipgloss.Color("#ff0000") {
		t.Errorf("styles were not rebuilt after theming")
	}
}

func TestMsgPageOf(t *testing.T) {
	tests := []struct {
		cur, total int
		want       string
	}{
		{1, 3, "page 1 of 3"},
		{0, 0, "page 1 of 1"},
		{2, 0, "page 2 of 1"},
	}
	for _, tt := range tests {
		if got := MsgPageOf(tt.cur, tt.total); got != tt.want {
			t.Errorf("MsgPageOf(%d, %d) = %q, want %q", tt.cur, tt.total, got, tt.want)
		}
	}
}

func TestTruncation(t *testing.T) {
	if got := truncateEnd("hello world", 5); got != "hell…" {
		t.Errorf("truncateEnd = %q", got)
	}
	if got := truncateEnd("short", 10); got != "short" {
		t.Errorf("truncateEnd should keep short strings, got %q", got)
	}
	if got := truncateMiddle("https://example.com/very/long/path", 11); got != "https…/path" {
		t.Errorf("truncateMiddle = %q", got)
	}
	if got := firstLine("\n\n  first   line \nsecond"); got != "first line" {
		t.Errorf("firstLine = %q", got)
	}
}
