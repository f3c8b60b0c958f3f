package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/pders01/quill/internal/config"
	"github.com/pders01/quill/internal/desk"
	"github.com/pders01/quill/internal/search"
	"github.com/pders01/quill/internal/storage"
)

const (
	noticeTTL      = 4 * time.Second
	maxSuggestions = 5
	// header (2 lines), separator and status bar
	chromeHeight = 4
)

type App struct {
	config     *config.Config
	deps       desk.Deps
	cache      *storage.Store
	suggester  search.Suggester
	keyHandler *KeyHandler

	ctx    context.Context
	cancel context.CancelFunc

	state desk.State

	postList    list.Model
	topicInput  textinput.Model
	searchInput textinput.Model
	editTopic   textinput.Model
	editContent textarea.Model
	viewport    viewport.Model
	spinner     spinner.Model
	help        help.Model

	view   View
	width  int
	height int

	suggestions []*search.Suggestion

	searchSeq            int
	pendingSearchQuery   string
	searchDebounceMillis int

	previewID       desk.ItemID
	loadingPreview  bool
	glamourRenderer *glamour.TermRenderer
	rendererWidth   int

	now  func() time.Time
	tick func(time.Duration, func(time.Time) tea.Msg) tea.Cmd
}

// NewApp builds the desk UI. cache and suggester are optional.
func NewApp(cfg *config.Config, deps desk.Deps, cache *storage.Store, suggester search.Suggester) *App {
	limit := cfg.Backend.PageSize
	if limit <= 0 {
		limit = desk.DefaultLimit
	}

	postList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	postList.Title = "› posts"
	postList.SetShowStatusBar(false)
	postList.SetFilteringEnabled(false)
	postList.SetShowHelp(false)
	postList.SetShowPagination(false)
	postList.DisableQuitKeybindings()

	ti := textinput.New()
	ti.Placeholder = "What should the next post be about?"
	ti.CharLimit = 280

	si := textinput.New()
	si.Placeholder = "Search posts..."
	si.CharLimit = 256

	et := textinput.New()
	et.Placeholder = "Topic"

	ec := textarea.New()
	ec.Placeholder = "Post content"
	ec.ShowLineNumbers = false
	ec.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(AccentColor)

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:               cfg,
		deps:                 deps,
		cache:                cache,
		suggester:            suggester,
		ctx:                  ctx,
		cancel:               cancel,
		state:                desk.NewState(limit),
		postList:             postList,
		topicInput:           ti,
		searchInput:          si,
		editTopic:            et,
		editContent:          ec,
		viewport:             viewport.New(0, 0),
		spinner:              sp,
		help:                 help.New(),
		view:                 ViewDesk,
		searchDebounceMillis: 300,
		now:                  time.Now,
		tick:                 tea.Tick,
	}

	app.keyHandler = NewKeyHandler(app, cfg)

	return app
}

// State returns the desk state the view is rendered from.
func (a *App) State() desk.State { return a.state }

// Close cancels backend calls and captures still in flight.
func (a *App) Close() {
	a.cancel()
}

func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	maxWidth, minWidth := 100, 40
	if a.config != nil {
		if p := a.config.UI.Preview; p.WordWrapMaxWidth > 0 {
			maxWidth = p.WordWrapMaxWidth
			if p.WordWrapMinWidth > 0 {
				minWidth = p.WordWrapMinWidth
			}
		}
	}

	wordWrapWidth := (a.width * 9) / 10
	if wordWrapWidth > maxWidth {
		wordWrapWidth = maxWidth
	}
	if wordWrapWidth < minWidth {
		wordWrapWidth = minWidth
	}
	if a.width < 50 {
		wordWrapWidth = a.width - 4
		if wordWrapWidth < 20 {
			wordWrapWidth = 20
		}
	}

	if a.glamourRenderer == nil || abs(a.rendererWidth-wordWrapWidth) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrapWidth),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wordWrapWidth
	}

	return a.glamourRenderer, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.hydrate(),
		a.dispatch(desk.Init{}),
		a.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case effectDoneMsg:
		for _, action := range msg.actions {
			cmds = append(cmds, a.dispatch(action))
		}
		return a, tea.Batch(cmds...)

	case hydrateMsg:
		return a, a.dispatch(desk.Hydrate{Key: msg.key, Page: msg.page})

	case clearNoticeMsg:
		return a, a.dispatch(desk.ClearNotice{Seq: msg.seq})

	case searchDebounceFireMsg:
		if msg.seq == a.searchSeq {
			return a, a.dispatch(desk.SetSearch{Text: a.pendingSearchQuery})
		}
		return a, nil

	case suggestionsMsg:
		if msg.query == a.topicInput.Value() {
			a.suggestions = msg.results
		}
		return a, nil

	case previewRenderedMsg:
		if a.view == ViewPreview && msg.id == a.previewID {
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
			a.loadingPreview = false
		}
		return a, nil
	}

	switch a.view {
	case ViewPreview:
		switch msg.(type) {
		case tea.MouseMsg:
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	case ViewDesk:
		var cmd tea.Cmd
		a.postList, cmd = a.postList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height

	bodyHeight := height - chromeHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	a.postList.SetSize(width, bodyHeight)
	a.viewport.Width = width
	a.viewport.Height = bodyHeight
	a.help.Width = width

	inputWidth := width - 8
	if inputWidth < 20 {
		inputWidth = width
	}
	a.topicInput.Width = inputWidth
	a.searchInput.Width = inputWidth
	a.editTopic.Width = inputWidth
	a.editContent.SetWidth(inputWidth)

	editHeight := bodyHeight - 8
	if editHeight < 3 {
		editHeight = 3
	}
	a.editContent.SetHeight(editHeight)
}

// sync copies the parts of the desk state that live in bubbles models.
func (a *App) sync() {
	now := a.now()
	items := make([]list.Item, len(a.state.Page.Items))
	for i, it := range a.state.Page.Items {
		items[i] = postItem{item: it, now: now}
	}
	a.postList.SetItems(items)
	a.postList.Title = "› posts" + filterLabel(a.state.Query.Posted)

	if a.topicInput.Value() != a.state.Topic {
		a.topicInput.SetValue(a.state.Topic)
		a.topicInput.CursorEnd()
	}

	if a.view == ViewEdit && !a.state.Edit.Active() {
		a.view = ViewDesk
	}
}

func filterLabel(f desk.PostedFilter) string {
	switch f {
	case desk.FilterPosted:
		return " (published)"
	case desk.FilterUnposted:
		return " (drafts)"
	default:
		return ""
	}
}

func (a *App) selectedItem() (desk.Item, bool) {
	if i, ok := a.postList.SelectedItem().(postItem); ok {
		return i.item, true
	}
	return desk.Item{}, false
}

func (a *App) View() string {
	bodyHeight := a.height - chromeHeight
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	var content string

	switch a.view {
	case ViewDesk:
		switch {
		case len(a.state.Page.Items) > 0:
			content = a.postList.View()
		case a.state.Loading && !a.state.Fetched:
			content = lipgloss.Place(a.width, bodyHeight, lipgloss.Center, lipgloss.Center,
				a.spinner.View()+" "+renderMuted(MsgLoading))
		default:
			content = lipgloss.Place(a.width, bodyHeight, lipgloss.Center, lipgloss.Center,
				GetWelcomeMessage(a.config.Keys.Bindings.Compose))
		}

	case ViewCompose:
		rows := []string{renderField(a.topicInput.View(), a.topicInput.Focused(), a.topicInput.Width)}
		if a.state.Listening {
			rows = append(rows, a.spinner.View()+" "+renderMuted(MsgListening))
		}
		if list := renderSuggestions(a.suggestions, a.width); list != "" {
			rows = append(rows, "", list)
		}
		rows = append(rows, "", renderHelp("Enter: generate • Tab: accept suggestion • Esc: back"))
		content = renderPanel(a.width, bodyHeight, "compose", rows...)

	case ViewSearch:
		content = renderPanel(a.width, bodyHeight, "search",
			renderField(a.searchInput.View(), a.searchInput.Focused(), a.searchInput.Width),
			"",
			renderHelp("Type to search • Enter: apply • Esc: back"),
		)

	case ViewEdit:
		content = ContentWrapper(a.width, bodyHeight).Render(lipgloss.JoinVertical(
			lipgloss.Left,
			TitleStyle.Render("› edit post "+a.state.Edit.TargetID.String()),
			"",
			renderField(a.editTopic.View(), a.editTopic.Focused(), a.editTopic.Width),
			renderField(a.editContent.View(), a.editContent.Focused(), a.editContent.Width()),
		))

	case ViewPreview:
		if a.loadingPreview {
			content = lipgloss.Place(a.width, bodyHeight, lipgloss.Center, lipgloss.Center, renderMuted("Rendering…"))
		} else {
			content = a.viewport.View()
		}
	}

	header := renderHeader(CompactLogo+" "+a.headerTitle(), a.headerSubtitle(), a.width)

	separatorWidth := a.width - 2
	if separatorWidth < 0 {
		separatorWidth = 0
	}
	separator := SeparatorStyle.Render("─" + strings.Repeat("─", separatorWidth))

	return lipgloss.JoinVertical(lipgloss.Top, header, content, separator, a.getCustomStatusBar())
}

func (a *App) headerTitle() string {
	if a.view == ViewDesk {
		return "desk"
	}
	return a.view.String()
}

func (a *App) headerSubtitle() string {
	parts := []string{}
	if a.state.Fetched || len(a.state.Page.Items) > 0 {
		parts = append(parts, MsgPageOf(a.state.Page.CurrentPage, a.state.Page.TotalPages))
	}
	if a.state.Query.Posted != desk.FilterAll {
		parts = append(parts, "filter: "+a.state.Query.Posted.String())
	}
	if a.state.Query.Search != "" {
		parts = append(parts, fmt.Sprintf("search: %q", a.state.Query.Search))
	}
	if a.config != nil && a.config.Backend.URL != "" {
		parts = append(parts, truncateMiddle(a.config.Backend.URL, 40))
	}
	return strings.Join(parts, " • ")
}

func (a *App) busyText() string {
	if a.state.Busy() {
		switch {
		case a.state.Generating:
			return MsgGenerating
		case a.state.Posting:
			return MsgPublishing
		default:
			return MsgSaving
		}
	}
	switch {
	case a.state.Listening:
		return MsgListening
	case a.state.Loading:
		return MsgLoading
	}
	return ""
}

func (a *App) getCustomStatusBar() string {
	if n := a.state.Notice; n.Kind != desk.NoticeNone && n.Text != "" {
		style, marker := noticeStyle(n.Kind)
		return StatusBarStyle.Width(a.width).Render(style.Render(marker + n.Text))
	}

	if busy := a.busyText(); busy != "" {
		return StatusBarStyle.Width(a.width).Render(a.spinner.View() + " " + busy)
	}

	return StatusBarStyle.Width(a.width).Render(a.help.ShortHelpView(a.keyHandler.GetHelpForCurrentView()))
}

type postItem struct {
	item desk.Item
	now  time.Time
}

func (i postItem) Title() string {
	if i.item.Posted {
		return PublishedItemStyle.Render("✓ " + i.item.Topic)
	}
	return DraftItemStyle.Render("● " + i.item.Topic)
}

func (i postItem) Description() string {
	desc := renderMuted(truncateEnd(firstLine(i.item.Content), 80))
	if !i.item.CreatedAt.IsZero() {
		desc += TimeStyle.Render(" • " + humanize.RelTime(i.item.CreatedAt, i.now, "ago", "from now"))
	}
	return desc
}

func (i postItem) FilterValue() string { return i.item.Topic }

type effectDoneMsg struct {
	actions []desk.Action
}

type hydrateMsg struct {
	key  desk.QueryKey
	page desk.Page
}

type clearNoticeMsg struct {
	seq uint64
}

type searchDebounceFireMsg struct {
	seq int
}

type suggestionsMsg struct {
	query   string
	results []*search.Suggestion
}

type previewRenderedMsg struct {
	id      desk.ItemID
	content string
}
