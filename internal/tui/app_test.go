package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/quill/internal/api"
	"github.com/pders01/quill/internal/backendtest"
	"github.com/pders01/quill/internal/config"
	"github.com/pders01/quill/internal/desk"
	"github.com/pders01/quill/internal/search"
	"github.com/pders01/quill/internal/speech"
	"github.com/pders01/quill/internal/storage"
)

type harness struct {
	app     *App
	backend *backendtest.Server
	timers  []tea.Msg
}

type option func(*config.Config, *desk.Deps, **storage.Store, *search.Suggester)

func withSpeech(p speech.Provider) option {
	return func(_ *config.Config, d *desk.Deps, _ **storage.Store, _ *search.Suggester) { d.Speech = p }
}

func withCache(s *storage.Store) option {
	return func(_ *config.Config, _ *desk.Deps, c **storage.Store, _ *search.Suggester) { *c = s }
}

func withSuggester(s search.Suggester) option {
	return func(_ *config.Config, _ *desk.Deps, _ **storage.Store, sg *search.Suggester) { *sg = s }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()

	srv := backendtest.New()
	t.Cleanup(srv.Close)

	client, err := api.New(srv.URL)
	require.NoError(t, err)

	cfg := config.TestConfig()
	deps := desk.Deps{Backend: client, Timeout: 5 * time.Second}
	var cache *storage.Store
	var suggester search.Suggester
	for _, opt := range opts {
		opt(cfg, &deps, &cache, &suggester)
	}

	h := &harness{backend: srv}
	h.app = NewApp(cfg, deps, cache, suggester)
	t.Cleanup(h.app.Close)

	// Timers fire only when a test feeds them back.
	h.app.tick = func(_ time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
		h.timers = append(h.timers, fn(time.Time{}))
		return nil
	}
	h.app.topicInput.Cursor.SetMode(cursor.CursorStatic)
	h.app.searchInput.Cursor.SetMode(cursor.CursorStatic)
	h.app.editTopic.Cursor.SetMode(cursor.CursorStatic)
	h.app.resize(100, 40)
	return h
}

// drain runs cmd and every command it leads to, feeding messages back into
// the app, until nothing is left.
func (h *harness) drain(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 1000, "commands did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			_, next := h.app.Update(msg)
			queue = append(queue, next)
		}
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+l":
		return tea.KeyMsg{Type: tea.KeyCtrlL}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func (h *harness) press(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_, cmd := h.app.Update(keyMsg(k))
		h.drain(t, cmd)
	}
}

func (h *harness) typeText(t *testing.T, text string) {
	t.Helper()
	for _, r := range text {
		_, cmd := h.app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		h.drain(t, cmd)
	}
}

func (h *harness) fireTimers(t *testing.T) {
	t.Helper()
	pending := h.timers
	h.timers = nil
	for _, msg := range pending {
		_, cmd := h.app.Update(msg)
		h.drain(t, cmd)
	}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.drain(t, h.app.hydrate())
	h.drain(t, h.app.dispatch(desk.Init{}))
}

func TestNewApp(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, ViewDesk, h.app.view)
	assert.Equal(t, 10, h.app.state.Query.Limit)
	assert.Equal(t, "ctrl+", h.app.keyHandler.modifierKey)
	assert.NotNil(t, h.app.Init())
}

func TestInitFetchesFirstPage(t *testing.T) {
	h := newHarness(t)
	h.backend.Seed(3)

	h.start(t)

	st := h.app.State()
	assert.True(t, st.Fetched)
	assert.False(t, st.Loading)
	require.Len(t, st.Page.Items, 3)
	assert.Equal(t, "topic 3", st.Page.Items[0].Topic)
	assert.Len(t, h.app.postList.Items(), 3)
	assert.Equal(t, 1, h.backend.Calls("list"))
}

func TestEmptyDeskShowsWelcome(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	view := h.app.View()
	assert.Contains(t, view, "No posts found")
	assert.Contains(t, view, "page 1 of 1")
}

func TestComposeAndGenerate(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.press(t, "g")
	require.Equal(t, ViewCompose, h.app.view)

	h.typeText(t, "rust async")
	assert.Equal(t, "rust async", h.app.State().Topic)

	h.press(t, "enter")

	st := h.app.State()
	assert.Equal(t, ViewDesk, h.app.view)
	assert.Equal(t, 1, h.backend.Calls("generate"))
	assert.Equal(t, 2, h.backend.Calls("list"), "exactly one refetch after generating")
	assert.Empty(t, st.Topic)
	assert.Empty(t, h.app.topicInput.Value())
	assert.Equal(t, desk.NoticeSuccess, st.Notice.Kind)
	assert.Equal(t, "Post generated!", st.Notice.Text)
	require.Len(t, st.Page.Items, 1)
	assert.Equal(t, "rust async", st.Page.Items[0].Topic)
	assert.Contains(t, h.app.View(), "✓ Post generated!")

	// The notice clears itself once its timer fires.
	h.fireTimers(t)
	assert.Equal(t, desk.NoticeNone, h.app.State().Notice.Kind)
}

func TestComposeIgnoresBlankTopic(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.press(t, "g")
	h.typeText(t, "   ")
	h.press(t, "enter")

	assert.Equal(t, ViewCompose, h.app.view)
	assert.Zero(t, h.backend.Calls("generate"))
}

func TestGenerateFailureKeepsTopic(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.backend.FailNext("generate", 500)

	h.press(t, "g")
	h.typeText(t, "kernels")
	h.press(t, "enter")

	st := h.app.State()
	assert.Equal(t, "kernels", st.Topic)
	assert.Equal(t, desk.NoticeError, st.Notice.Kind)
	assert.True(t, strings.HasPrefix(st.Notice.Text, "Failed to generate post"))
	assert.Equal(t, 1, h.backend.Calls("list"))
	assert.Contains(t, h.app.View(), "✗ Failed to generate post")
}

func TestSearchIsDebounced(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("Go generics", "x", false)
	h.backend.Add("Rust traits", "y", false)
	h.start(t)

	h.press(t, "s")
	require.Equal(t, ViewSearch, h.app.view)
	h.typeText(t, "go")

	assert.Len(t, h.timers, 2)
	assert.Equal(t, 1, h.backend.Calls("list"), "nothing is fetched before the debounce fires")

	h.fireTimers(t)

	st := h.app.State()
	assert.Equal(t, "go", st.Query.Search)
	assert.Equal(t, 2, h.backend.Calls("list"), "only the latest keystroke is applied")
	assert.Equal(t, "go", h.backend.LastRequest("list").URL.Query().Get("search"))
	require.Len(t, st.Page.Items, 1)
	assert.Equal(t, "Go generics", st.Page.Items[0].Topic)
}

func TestSearchEnterAppliesImmediately(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.press(t, "s")
	h.typeText(t, "db")
	h.press(t, "enter")

	assert.Equal(t, ViewDesk, h.app.view)
	assert.Equal(t, "db", h.app.State().Query.Search)
	assert.Equal(t, 2, h.backend.Calls("list"))

	// The stale debounce timers do nothing.
	h.fireTimers(t)
	assert.Equal(t, 2, h.backend.Calls("list"))

	// Esc on the desk clears the search.
	h.press(t, "esc")
	assert.Empty(t, h.app.State().Query.Search)
	assert.Equal(t, 3, h.backend.Calls("list"))
}

func TestFilterCyclesAndResetsOffset(t *testing.T) {
	h := newHarness(t)
	h.backend.Seed(25)
	h.start(t)

	h.press(t, "right")
	require.Equal(t, 10, h.app.State().Query.Offset)

	h.press(t, "f")
	st := h.app.State()
	assert.Equal(t, desk.FilterUnposted, st.Query.Posted)
	assert.Zero(t, st.Query.Offset)
	assert.Equal(t, "false", h.backend.LastRequest("list").URL.Query().Get("posted"))
	assert.Contains(t, h.app.postList.Title, "drafts")
}

func TestPagingKeys(t *testing.T) {
	h := newHarness(t)
	h.backend.Seed(25)
	h.start(t)

	h.press(t, "left")
	assert.Equal(t, 1, h.backend.Calls("list"), "no previous page at offset 0")

	h.press(t, "right")
	st := h.app.State()
	assert.Equal(t, 10, st.Query.Offset)
	assert.Equal(t, 2, st.Page.CurrentPage)
	assert.Equal(t, "10", h.backend.LastRequest("list").URL.Query().Get("offset"))
	assert.Contains(t, h.app.View(), "page 2 of 3")

	h.press(t, "right", "right")
	assert.Equal(t, 20, h.app.State().Query.Offset, "the last page is not advanced past")
	assert.Equal(t, 3, h.backend.Calls("list"))

	h.press(t, "left")
	assert.Equal(t, 10, h.app.State().Query.Offset)
}

func TestEditFlow(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("draft", "first version", false)
	h.start(t)

	h.press(t, "e")
	require.Equal(t, ViewEdit, h.app.view)
	assert.True(t, h.app.State().Edit.Active())
	assert.Equal(t, "draft", h.app.editTopic.Value())

	h.typeText(t, " v2")
	assert.Equal(t, "draft v2", h.app.State().Edit.DraftTopic)

	h.press(t, "ctrl+s")

	st := h.app.State()
	assert.Equal(t, ViewDesk, h.app.view)
	assert.False(t, st.Edit.Active())
	assert.Equal(t, "Post updated!", st.Notice.Text)
	assert.Equal(t, "draft v2", h.backend.Posts()[0].Topic)
	assert.Equal(t, "first version", h.backend.Posts()[0].Content)
}

func TestEditCancel(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("draft", "body", false)
	h.start(t)

	h.press(t, "e")
	h.typeText(t, "!!")
	h.press(t, "esc")

	assert.Equal(t, ViewDesk, h.app.view)
	assert.Equal(t, desk.EditSession{}, h.app.State().Edit)
	assert.Zero(t, h.backend.Calls("edit"))
}

func TestPostedItemsCannotBeEditedOrPosted(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("done", "already out", true)
	h.start(t)

	h.press(t, "e")
	assert.Equal(t, ViewDesk, h.app.view)
	assert.False(t, h.app.State().Edit.Active())

	h.press(t, "p")
	assert.Zero(t, h.backend.Calls("post"))

	for _, b := range h.app.keyHandler.GetHelpForCurrentView() {
		assert.NotEqual(t, "edit", b.Help().Desc)
		assert.NotEqual(t, "post now", b.Help().Desc)
	}
}

func TestPostNow(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("ready", "ship it", false)
	h.start(t)

	h.press(t, "p")

	st := h.app.State()
	assert.Equal(t, 1, h.backend.Calls("post"))
	assert.Equal(t, "Post published!", st.Notice.Text)
	require.Len(t, st.Page.Items, 1)
	assert.True(t, st.Page.Items[0].Posted, "the refetch shows the published state")
}

func TestListenWithoutSpeechEngine(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.press(t, "l")

	st := h.app.State()
	assert.Equal(t, ViewCompose, h.app.view)
	assert.False(t, st.Listening)
	assert.Equal(t, desk.NoticeError, st.Notice.Kind)
	assert.Equal(t, speech.ErrUnsupported.Error(), st.Notice.Text)
}

type scriptedSpeech struct{ text string }

func (s scriptedSpeech) Start(_ context.Context, hooks speech.Hooks) error {
	go func() {
		hooks.OnResult(s.text)
		hooks.OnEnd()
	}()
	return nil
}

func TestListenFillsTopic(t *testing.T) {
	h := newHarness(t, withSpeech(scriptedSpeech{text: "edge caching"}))
	h.start(t)

	h.press(t, "g", "ctrl+l")

	st := h.app.State()
	assert.False(t, st.Listening)
	assert.Equal(t, "edge caching", st.Topic)
	assert.Equal(t, "edge caching", h.app.topicInput.Value())
	assert.Equal(t, "Captured speech input!", st.Notice.Text)
}

type fixedSuggester []*search.Suggestion

func (f fixedSuggester) Suggest(string, int) ([]*search.Suggestion, error) { return f, nil }

func TestSuggestionAcceptedWithTab(t *testing.T) {
	h := newHarness(t, withSuggester(fixedSuggester{
		{Text: "kubernetes operators", Kind: search.KindTopic},
		{Text: "Kubernetes 1.33 released", Kind: search.KindHeadline},
	}))
	h.start(t)

	h.press(t, "g")
	h.typeText(t, "ku")
	require.Len(t, h.app.suggestions, 2)
	assert.Contains(t, h.app.View(), "kubernetes operators")

	h.press(t, "tab")
	assert.Equal(t, "kubernetes operators", h.app.State().Topic)
	assert.Equal(t, "kubernetes operators", h.app.topicInput.Value())
}

func TestHydrateFromCache(t *testing.T) {
	store, err := storage.NewStore(storage.MemoryPath, time.Second)
	require.NoError(t, err)
	defer store.Close()

	key := desk.NewQuery(10).Key()
	require.NoError(t, store.RecordPage(key, desk.Page{
		Items:       []desk.Item{{ID: "7", Topic: "cached"}},
		CurrentPage: 1,
		TotalPages:  1,
	}))

	h := newHarness(t, withCache(store))
	h.drain(t, h.app.hydrate())

	st := h.app.State()
	assert.False(t, st.Fetched)
	require.Len(t, st.Page.Items, 1)
	assert.Equal(t, "cached", st.Page.Items[0].Topic)

	// The first real fetch replaces the cached page.
	h.drain(t, h.app.dispatch(desk.Init{}))
	assert.Empty(t, h.app.State().Page.Items)
}

func TestFetchFailureKeepsLastPage(t *testing.T) {
	h := newHarness(t)
	h.backend.Seed(2)
	h.start(t)

	h.backend.FailNext("list", 503)
	h.press(t, "r")

	st := h.app.State()
	assert.Len(t, st.Page.Items, 2)
	assert.False(t, st.Loading)
	assert.Equal(t, desk.NoticeError, st.Notice.Kind)
	assert.True(t, strings.HasPrefix(st.Notice.Text, "Failed to fetch posts"))
}

func TestPreview(t *testing.T) {
	h := newHarness(t)
	h.backend.Add("Preview me", "Some **markdown** body", false)
	h.start(t)

	h.press(t, "enter")
	require.Equal(t, ViewPreview, h.app.view)
	assert.False(t, h.app.loadingPreview)
	assert.Contains(t, h.app.View(), "Preview me")

	h.press(t, "esc")
	assert.Equal(t, ViewDesk, h.app.view)
}

func TestStaleSuggestionsAreDropped(t *testing.T) {
	h := newHarness(t)
	h.app.topicInput.SetValue("new")

	h.app.Update(suggestionsMsg{query: "old", results: []*search.Suggestion{{Text: "x"}}})
	assert.Empty(t, h.app.suggestions)
}

func TestWindowResize(t *testing.T) {
	h := newHarness(t)
	h.app.Update(tea.WindowSizeMsg{Width: 60, Height: 20})

	assert.Equal(t, 60, h.app.width)
	assert.Equal(t, 16, h.app.viewport.Height)
	assert.Equal(t, 52, h.app.topicInput.Width)
}

func TestBusyStatus(t *testing.T) {
	h := newHarness(t)
	assert.Empty(t, h.app.busyText())

	h.app.state.Saving = true
	assert.Equal(t, MsgSaving, h.app.busyText())
	assert.Contains(t, h.app.View(), MsgSaving)

	h.app.state.Posting = true
	assert.Equal(t, MsgPublishing, h.app.busyText())

	h.app.state.Saving, h.app.state.Posting = false, false
	h.app.state.Loading = true
	assert.Equal(t, MsgLoading, h.app.busyText())
}
