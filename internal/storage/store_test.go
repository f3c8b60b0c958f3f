package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/pders01/quill/internal/desk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// tick makes the store clock advance one second per call.
func tick(s *Store) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestStore_PageCacheRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	key := desk.QueryKey{Search: "go", Posted: desk.FilterUnposted, Offset: 10}
	page := desk.Page{
		Items: []desk.Item{
			{ID: "7", Topic: "go", Content: "generics", CreatedAt: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)},
		},
		CurrentPage: 2,
		TotalPages:  4,
	}
	require.NoError(t, store.RecordPage(key, page))

	cached, err := store.CachedPage(key)
	require.NoError(t, err)
	assert.Equal(t, key, cached.Key)
	assert.Equal(t, page, cached.Page)
	assert.False(t, cached.StoredAt.IsZero())

	_, err = store.CachedPage(desk.QueryKey{Search: "go"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PageCacheIsKeyedByPageSizeAndScope(t *testing.T) {
	store := setupTestStore(t)
	store.SetScope("http://localhost:8000")

	key := desk.NewQuery(10).Key()
	require.NoError(t, store.RecordPage(key, desk.Page{CurrentPage: 1, TotalPages: 1}))

	_, err := store.CachedPage(key)
	require.NoError(t, err)

	_, err = store.CachedPage(desk.NewQuery(20).Key())
	assert.ErrorIs(t, err, ErrNotFound, "a different page size misses")

	store.SetScope("https://other.example.net")
	_, err = store.CachedPage(key)
	assert.ErrorIs(t, err, ErrNotFound, "a different backend misses")
}

func TestStore_PageCacheIsBounded(t *testing.T) {
	store := setupTestStore(t)
	tick(store)
	store.maxPages = 3

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordPage(desk.QueryKey{Offset: i * 10}, desk.Page{CurrentPage: i + 1}))
	}

	for i := 0; i < 2; i++ {
		_, err := store.CachedPage(desk.QueryKey{Offset: i * 10})
		assert.ErrorIs(t, err, ErrNotFound, "offset %d should be evicted", i*10)
	}
	for i := 2; i < 5; i++ {
		cached, err := store.CachedPage(desk.QueryKey{Offset: i * 10})
		require.NoError(t, err, "offset %d", i*10)
		assert.Equal(t, i+1, cached.Page.CurrentPage)
	}
}

func TestStore_RecordTopic(t *testing.T) {
	store := setupTestStore(t)
	tick(store)

	require.NoError(t, store.RecordTopic("Rust"))
	require.NoError(t, store.RecordTopic("kubernetes"))
	require.NoError(t, store.RecordTopic("rust "))
	require.NoError(t, store.RecordTopic("   "))

	topics, err := store.RecentTopics(0)
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "rust", topics[0].Topic, "latest spelling wins")
	assert.Equal(t, 2, topics[0].Count)
	assert.Equal(t, "kubernetes", topics[1].Topic)

	limited, err := store.RecentTopics(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_Sources(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.SaveSource(&Source{URL: "https://b.example.org/feed", Title: "beta"}))
	require.NoError(t, store.SaveSource(&Source{URL: "https://a.example.org/feed", ETag: `"abc"`}))
	require.NoError(t, store.SaveSource(&Source{URL: "https://z.example.org/feed", Title: "Alpha"}))

	src, err := store.GetSource("https://a.example.org/feed")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, src.ETag)

	_, err = store.GetSource("https://missing.example.org")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := store.GetAllSources()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Alpha", all[0].Title)
	assert.Equal(t, "beta", all[1].Title)
	assert.Equal(t, "https://a.example.org/feed", all[2].URL, "untitled sources sort by URL")
}

func TestStore_Headlines(t *testing.T) {
	store := setupTestStore(t)
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	var hs []*Headline
	for i := 0; i < 4; i++ {
		src := "https://a.example.org/feed"
		if i%2 == 1 {
			src = "https://b.example.org/feed"
		}
		hs = append(hs, &Headline{
			ID:        fmt.Sprintf("h%d", i),
			SourceURL: src,
			Title:     fmt.Sprintf("headline %d", i),
			Published: base.Add(time.Duration(i) * time.Hour),
		})
	}
	require.NoError(t, store.SaveHeadlines(hs))

	all, err := store.GetHeadlines("", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "headline 3", all[0].Title)

	fromA, err := store.GetHeadlines("https://a.example.org/feed", 1)
	require.NoError(t, err)
	require.Len(t, fromA, 1)
	assert.Equal(t, "headline 2", fromA[0].Title)

	require.NoError(t, store.SaveSource(&Source{URL: "https://b.example.org/feed"}))
	require.NoError(t, store.DeleteSource("https://b.example.org/feed"))
	left, err := store.GetHeadlines("", 0)
	require.NoError(t, err)
	for _, h := range left {
		assert.Equal(t, "https://a.example.org/feed", h.SourceURL)
	}
	_, err = store.GetSource("https://b.example.org/feed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MemoryPath(t *testing.T) {
	store, err := NewStore(MemoryPath, 0)
	require.NoError(t, err)
	dir := store.tempDir
	require.NotEmpty(t, dir)

	require.NoError(t, store.RecordTopic("ephemeral"))
	require.NoError(t, store.Close())
	assert.NoDirExists(t, dir)
}
