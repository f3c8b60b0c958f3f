package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/pders01/quill/internal/debuglog"
	"github.com/pders01/quill/internal/desk"
)

// dispatch applies action to the desk state and returns the commands that
// carry out its effects.
func (a *App) dispatch(action desk.Action) tea.Cmd {
	prevSeq := a.state.Notice.Seq

	next, effects := desk.Reduce(a.state, action)
	a.state = next
	a.sync()

	cmds := make([]tea.Cmd, 0, len(effects)+1)
	for _, eff := range effects {
		cmds = append(cmds, a.execute(eff))
	}
	if n := a.state.Notice; n.Seq != prevSeq && n.Kind != desk.NoticeNone {
		seq := n.Seq
		cmds = append(cmds, a.tick(noticeTTL, func(time.Time) tea.Msg { return clearNoticeMsg{seq: seq} }))
	}
	return tea.Batch(cmds...)
}

func (a *App) execute(eff desk.Effect) tea.Cmd {
	ctx, deps := a.ctx, a.deps
	return func() tea.Msg {
		return effectDoneMsg{actions: desk.Execute(ctx, deps, eff)}
	}
}

// hydrate loads the cached page for the initial query, if any.
func (a *App) hydrate() tea.Cmd {
	if a.cache == nil {
		return nil
	}
	cache, key := a.cache, a.state.Query.Key()
	return func() tea.Msg {
		cp, err := cache.CachedPage(key)
		if err != nil {
			debuglog.Debugf("no cached page for %s: %v", key, err)
			return nil
		}
		return hydrateMsg{key: cp.Key, page: cp.Page}
	}
}

func (a *App) suggest(query string) tea.Cmd {
	if a.suggester == nil {
		return nil
	}
	s := a.suggester
	return func() tea.Msg {
		results, err := s.Suggest(query, maxSuggestions)
		if err != nil {
			debuglog.Warnf("suggest %q: %v", query, err)
			return nil
		}
		return suggestionsMsg{query: query, results: results}
	}
}

// debounceSearch schedules value to be applied unless another keystroke
// arrives first.
func (a *App) debounceSearch(value string) tea.Cmd {
	a.pendingSearchQuery = value
	a.searchSeq++
	seq := a.searchSeq
	wait := time.Duration(a.searchDebounceMillis) * time.Millisecond
	return a.tick(wait, func(time.Time) tea.Msg { return searchDebounceFireMsg{seq: seq} })
}

func (a *App) renderPreview(item desk.Item) tea.Cmd {
	r, rerr := a.getRenderer()
	now := a.now()
	return func() tea.Msg {
		if rerr != nil {
			return previewRenderedMsg{id: item.ID, content: wrapErr("initializing renderer", rerr).Error()}
		}

		var content strings.Builder
		content.WriteString(fmt.Sprintf("# %s\n\n", item.Topic))

		status := "draft"
		if item.Posted {
			status = "published"
		}
		if !item.CreatedAt.IsZero() {
			content.WriteString(fmt.Sprintf("*%s • created %s*\n\n", status, humanize.RelTime(item.CreatedAt, now, "ago", "from now")))
		} else {
			content.WriteString(fmt.Sprintf("*%s*\n\n", status))
		}

		content.WriteString("---\n\n")
		content.WriteString(item.Content)

		rendered, err := r.Render(content.String())
		if err != nil {
			return previewRenderedMsg{id: item.ID, content: fmt.Sprintf("Failed to render post: %v\n\nPress Esc to go back.", err)}
		}
		return previewRenderedMsg{id: item.ID, content: rendered}
	}
}
