package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/quill/internal/config"
	"github.com/pders01/quill/internal/desk"
)

// keyMap holds the configured bindings. Single-character bindings also
// work with the modifier while a text input has focus.
type keyMap struct {
	Quit     key.Binding
	Compose  key.Binding
	Search   key.Binding
	Filter   key.Binding
	Edit     key.Binding
	PostNow  key.Binding
	Listen   key.Binding
	Refresh  key.Binding
	NextPage key.Binding
	PrevPage key.Binding
	Back     key.Binding
	Preview  key.Binding

	Submit     key.Binding
	Accept     key.Binding
	SwitchEdit key.Binding
	Save       key.Binding
	ListenText key.Binding
	Scroll     key.Binding
}

func newKeyMap(cfg *config.Config) keyMap {
	b := cfg.Keys.Bindings
	mod := cfg.Keys.Modifier + "+"
	bind := func(k, desc string) key.Binding {
		return key.NewBinding(key.WithKeys(k), key.WithHelp(k, desc))
	}

	return keyMap{
		Quit:     bind(b.Quit, "quit"),
		Compose:  bind(b.Compose, "compose"),
		Search:   bind(b.Search, "search"),
		Filter:   bind(b.Filter, "filter"),
		Edit:     bind(b.Edit, "edit"),
		PostNow:  bind(b.PostNow, "post now"),
		Listen:   bind(b.Listen, "listen"),
		Refresh:  bind(b.Refresh, "refresh"),
		NextPage: bind(b.NextPage, "next page"),
		PrevPage: bind(b.PrevPage, "prev page"),
		Back:     bind(b.Back, "back"),
		Preview:  bind("enter", "preview"),

		Submit:     bind("enter", "submit"),
		Accept:     bind("tab", "accept suggestion"),
		SwitchEdit: bind("tab", "next field"),
		Save:       bind(mod+"s", "save"),
		ListenText: bind(mod+b.Listen, "listen"),
		Scroll:     key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "scroll")),
	}
}

type KeyHandler struct {
	app         *App
	config      *config.Config
	modifierKey string
	keys        keyMap
}

func NewKeyHandler(app *App, cfg *config.Config) *KeyHandler {
	modifierKey := cfg.Keys.Modifier + "+"
	return &KeyHandler{app: app, config: cfg, modifierKey: modifierKey, keys: newKeyMap(cfg)}
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return kh.app, tea.Quit
	}

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	if model, cmd, handled := kh.handleCustomKeys(msg); handled {
		return model, cmd
	}

	return kh.delegateToCharm(msg)
}

func (kh *KeyHandler) isInTextInputMode() bool {
	switch kh.app.view {
	case ViewCompose:
		return kh.app.topicInput.Focused()
	case ViewSearch:
		return kh.app.searchInput.Focused()
	case ViewEdit:
		return kh.app.editTopic.Focused() || kh.app.editContent.Focused()
	default:
		return false
	}
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, kh.keys.Back) {
		return kh.navigateBack()
	}

	switch kh.app.view {
	case ViewCompose:
		return kh.handleComposeKeys(msg)
	case ViewSearch:
		return kh.handleSearchKeys(msg)
	case ViewEdit:
		return kh.handleEditKeys(msg)
	default:
		return kh.app, nil
	}
}

func (kh *KeyHandler) handleComposeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app

	switch {
	case key.Matches(msg, kh.keys.Submit):
		value := a.topicInput.Value()
		if strings.TrimSpace(value) == "" {
			return a, nil
		}
		cmds := []tea.Cmd{a.dispatch(desk.SetTopic{Text: value}), a.dispatch(desk.Generate{})}
		a.suggestions = nil
		a.topicInput.Blur()
		a.view = ViewDesk
		return a, tea.Batch(cmds...)

	case key.Matches(msg, kh.keys.Accept):
		if len(a.suggestions) == 0 {
			return a, nil
		}
		text := a.suggestions[0].Text
		a.suggestions = nil
		return a, tea.Batch(a.dispatch(desk.SetTopic{Text: text}), a.suggest(text))

	case key.Matches(msg, kh.keys.ListenText):
		return a, a.dispatch(desk.StartListening{})
	}

	prev := a.topicInput.Value()
	var cmd tea.Cmd
	a.topicInput, cmd = a.topicInput.Update(msg)
	value := a.topicInput.Value()
	if value == prev {
		return a, cmd
	}
	return a, tea.Batch(cmd, a.dispatch(desk.SetTopic{Text: value}), a.suggest(value))
}

func (kh *KeyHandler) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app

	if key.Matches(msg, kh.keys.Submit) {
		// Invalidate any pending debounce and apply immediately.
		a.searchSeq++
		value := kh.sanitizeSearchInput(a.searchInput.Value())
		a.searchInput.Blur()
		a.view = ViewDesk
		return a, a.dispatch(desk.SetSearch{Text: value})
	}

	prev := kh.sanitizeSearchInput(a.searchInput.Value())
	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)

	newVal := kh.sanitizeSearchInput(a.searchInput.Value())
	if newVal != prev {
		return a, tea.Batch(cmd, a.debounceSearch(newVal))
	}
	return a, cmd
}

func (kh *KeyHandler) handleEditKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := kh.app

	switch {
	case key.Matches(msg, kh.keys.Save):
		return a, tea.Batch(
			a.dispatch(desk.SetDraft{Topic: a.editTopic.Value(), Content: a.editContent.Value()}),
			a.dispatch(desk.SaveEdit{}),
		)

	case key.Matches(msg, kh.keys.SwitchEdit):
		if a.editTopic.Focused() {
			a.editTopic.Blur()
			return a, a.editContent.Focus()
		}
		a.editContent.Blur()
		return a, a.editTopic.Focus()
	}

	var cmd tea.Cmd
	if a.editTopic.Focused() {
		a.editTopic, cmd = a.editTopic.Update(msg)
	} else {
		a.editContent, cmd = a.editContent.Update(msg)
	}
	return a, tea.Batch(cmd, a.dispatch(desk.SetDraft{Topic: a.editTopic.Value(), Content: a.editContent.Value()}))
}

// handleCustomKeys handles only our custom action keys
func (kh *KeyHandler) handleCustomKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch kh.app.view {
	case ViewDesk:
		return kh.handleDeskKeys(msg)
	case ViewPreview:
		return kh.handlePreviewKeys(msg)
	default:
		if key.Matches(msg, kh.keys.Back) {
			model, cmd := kh.navigateBack()
			return model, cmd, true
		}
		return kh.app, nil, false
	}
}

func (kh *KeyHandler) handleDeskKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app

	switch {
	case key.Matches(msg, kh.keys.Quit):
		return a, tea.Quit, true

	case key.Matches(msg, kh.keys.Back):
		model, cmd := kh.navigateBack()
		return model, cmd, true

	case key.Matches(msg, kh.keys.Compose):
		return a, kh.enterCompose(), true

	case key.Matches(msg, kh.keys.Listen):
		return a, tea.Batch(kh.enterCompose(), a.dispatch(desk.StartListening{})), true

	case key.Matches(msg, kh.keys.Search):
		a.view = ViewSearch
		a.searchInput.SetValue(a.state.Query.Search)
		a.searchInput.CursorEnd()
		a.searchInput.Focus()
		return a, nil, true

	case key.Matches(msg, kh.keys.Filter):
		return a, a.dispatch(desk.SetPostedFilter{Filter: a.state.Query.Posted.Next()}), true

	case key.Matches(msg, kh.keys.Refresh):
		return a, a.dispatch(desk.Refresh{}), true

	case key.Matches(msg, kh.keys.NextPage):
		return a, a.dispatch(desk.NextPage{}), true

	case key.Matches(msg, kh.keys.PrevPage):
		return a, a.dispatch(desk.PrevPage{}), true

	case key.Matches(msg, kh.keys.Edit):
		return a, kh.startEdit(), true

	case key.Matches(msg, kh.keys.PostNow):
		item, ok := a.selectedItem()
		if !ok || item.Posted {
			return a, nil, true
		}
		return a, a.dispatch(desk.PostNow{ID: item.ID}), true

	case key.Matches(msg, kh.keys.Preview):
		item, ok := a.selectedItem()
		if !ok {
			return a, nil, true
		}
		a.previewID = item.ID
		a.loadingPreview = true
		a.view = ViewPreview
		return a, a.renderPreview(item), true
	}

	return a, nil, false
}

func (kh *KeyHandler) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	a := kh.app

	switch {
	case key.Matches(msg, kh.keys.Back), key.Matches(msg, kh.keys.Quit):
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case key.Matches(msg, kh.keys.Edit):
		return a, kh.startEdit(), true
	case key.Matches(msg, kh.keys.PostNow):
		if item, ok := a.state.Page.Find(a.previewID); ok && !item.Posted {
			a.view = ViewDesk
			return a, a.dispatch(desk.PostNow{ID: item.ID}), true
		}
		return a, nil, true
	}
	return a, nil, false
}

func (kh *KeyHandler) enterCompose() tea.Cmd {
	a := kh.app
	a.view = ViewCompose
	a.topicInput.SetValue(a.state.Topic)
	a.topicInput.CursorEnd()
	a.topicInput.Focus()
	if a.state.Topic == "" {
		return a.suggest("")
	}
	return a.suggest(a.state.Topic)
}

// startEdit opens the selected (or previewed) unposted item for editing.
// Published posts cannot be edited.
func (kh *KeyHandler) startEdit() tea.Cmd {
	a := kh.app

	item, ok := a.selectedItem()
	if a.view == ViewPreview {
		item, ok = a.state.Page.Find(a.previewID)
	}
	if !ok || item.Posted {
		return nil
	}

	cmd := a.dispatch(desk.StartEdit{Item: item})
	a.editTopic.SetValue(item.Topic)
	a.editTopic.CursorEnd()
	a.editContent.SetValue(item.Content)
	a.editContent.Blur()
	a.editTopic.Focus()
	a.view = ViewEdit
	return cmd
}

// delegateToCharm lets Charm handle all keys we don't intercept
func (kh *KeyHandler) delegateToCharm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch kh.app.view {
	case ViewDesk:
		kh.app.postList, cmd = kh.app.postList.Update(msg)
		return kh.app, cmd

	case ViewPreview:
		kh.app.viewport, cmd = kh.app.viewport.Update(msg)
		return kh.app, cmd

	default:
		return kh.app, nil
	}
}

// navigateBack implements smart back navigation
func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	a := kh.app

	switch a.view {
	case ViewCompose:
		a.topicInput.Blur()
		a.suggestions = nil
		a.view = ViewDesk
		return a, nil

	case ViewSearch:
		a.searchInput.Blur()
		a.view = ViewDesk
		return a, nil

	case ViewEdit:
		a.editTopic.Blur()
		a.editContent.Blur()
		a.view = ViewDesk
		return a, a.dispatch(desk.CancelEdit{})

	case ViewPreview:
		a.previewID = ""
		a.loadingPreview = false
		a.view = ViewDesk
		return a, nil

	default:
		// On the desk, back clears an active search.
		if a.state.Query.Search != "" {
			a.searchInput.Reset()
			a.searchSeq++
			return a, a.dispatch(desk.SetSearch{Text: ""})
		}
		return a, nil
	}
}

// sanitizeSearchInput sanitizes and limits search input length
func (kh *KeyHandler) sanitizeSearchInput(input string) string {
	input = strings.Join(strings.Fields(input), " ")

	if r := []rune(input); len(r) > 256 {
		input = strings.TrimSpace(string(r[:256]))
	}

	return input
}

// GetHelpForCurrentView returns the bindings shown on the status line.
func (kh *KeyHandler) GetHelpForCurrentView() []key.Binding {
	k := kh.keys
	a := kh.app

	switch a.view {
	case ViewDesk:
		help := []key.Binding{k.Compose, k.Listen, k.Search, k.Filter, k.Refresh}
		if item, ok := a.selectedItem(); ok {
			help = append(help, k.Preview)
			if !item.Posted {
				help = append(help, k.Edit, k.PostNow)
			}
		}
		if a.state.CanPrev() {
			help = append(help, k.PrevPage)
		}
		if a.state.CanNext() {
			help = append(help, k.NextPage)
		}
		return append(help, k.Quit)

	case ViewCompose:
		return []key.Binding{withHelp(k.Submit, "generate"), k.Accept, k.ListenText, k.Back}

	case ViewSearch:
		return []key.Binding{withHelp(k.Submit, "apply"), k.Back}

	case ViewEdit:
		return []key.Binding{k.Save, k.SwitchEdit, withHelp(k.Back, "cancel")}

	case ViewPreview:
		help := []key.Binding{k.Scroll}
		if item, ok := a.state.Page.Find(a.previewID); ok && !item.Posted {
			help = append(help, k.Edit, k.PostNow)
		}
		return append(help, k.Back)

	default:
		return nil
	}
}

func withHelp(b key.Binding, desc string) key.Binding {
	b.SetHelp(b.Help().Key, desc)
	return b
}
