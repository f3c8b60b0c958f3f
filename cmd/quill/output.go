package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/pders01/quill/internal/desk"
	"github.com/pders01/quill/internal/tui"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	case "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

func writePage(w io.Writer, format outputFormat, page desk.Page) error {
	if page.Items == nil {
		page.Items = []desk.Item{}
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(page)

	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(page); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(page.Items) == 0 {
		_, err := fmt.Fprintln(w, tui.MsgEmpty)
		return err
	}

	now := time.Now()
	rows := make([][]string, 0, len(page.Items))
	for _, it := range page.Items {
		status := "draft"
		if it.Posted {
			status = "posted"
		}
		created := "-"
		if !it.CreatedAt.IsZero() {
			created = humanize.RelTime(it.CreatedAt, now, "ago", "from now")
		}
		rows = append(rows, []string{it.ID.String(), status, clip(it.Topic, 40), clip(it.Content, 60), created})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(tui.MutedColor)).
		Headers("ID", "STATUS", "TOPIC", "CONTENT", "CREATED").
		Rows(rows...)

	_, err := fmt.Fprintf(w, "%s\n%s\n", t.Render(), tui.MsgPageOf(page.CurrentPage, page.TotalPages))
	return err
}

// clip keeps the first line of s within n runes.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(strings.SplitN(s, "\n", 2)[0]), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
