package api

import (
	"testing"
	"time"

	"github.com/pders01/quill/internal/desk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeList_Documented(t *testing.T) {
	body := `{
		"items": [
			{"id": 12, "topic": "go", "content": "Go 1.24 is out", "posted": true, "created_at": "2025-02-11T09:30:00.123456"},
			{"id": "a-7", "topic": null, "content": "text", "posted": false}
		],
		"current_page": 2,
		"total_pages": 5
	}`

	page, err := decodeList([]byte(body), desk.NewQuery(10))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 5, page.TotalPages)

	first := page.Items[0]
	assert.Equal(t, desk.ItemID("12"), first.ID)
	assert.True(t, first.Posted)
	assert.Equal(t, time.Date(2025, 2, 11, 9, 30, 0, 123456000, time.UTC), first.CreatedAt)

	second := page.Items[1]
	assert.Equal(t, desk.ItemID("a-7"), second.ID)
	assert.Empty(t, second.Topic)
	assert.True(t, second.CreatedAt.IsZero())
}

func TestDecodeList_Legacy(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		query       desk.Query
		wantCurrent int
		wantTotal   int
	}{
		{"first page", `{"tweets": [], "limit": 10, "offset": 0, "total": 0}`, desk.NewQuery(10), 1, 1},
		{"exact multiple", `{"tweets": [], "limit": 10, "offset": 10, "total": 20}`, desk.NewQuery(10), 2, 2},
		{"remainder", `{"tweets": [], "limit": 10, "offset": 20, "total": 21}`, desk.NewQuery(10), 3, 3},
		{"limit from query", `{"tweets": []}`, desk.NewQuery(5).WithOffset(15), 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := decodeList([]byte(tt.body), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCurrent, page.CurrentPage)
			assert.Equal(t, tt.wantTotal, page.TotalPages)
			assert.NotNil(t, page.Items)
		})
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, want, parseTime("2024-06-01T12:00:00Z"))
	assert.Equal(t, want, parseTime("2024-06-01T14:00:00+02:00"))
	assert.Equal(t, want, parseTime("2024-06-01T12:00:00"))
	assert.Equal(t, want, parseTime("2024-06-01 12:00:00"))
	assert.True(t, parseTime("yesterday").IsZero())
	assert.True(t, parseTime("").IsZero())
}

func TestDetail(t *testing.T) {
	assert.Equal(t, "Tweet not found", detail([]byte(`{"detail":"Tweet not found"}`)))
	assert.Equal(t, "bad", detail([]byte(`{"message":"bad"}`)))
	assert.Contains(t, detail([]byte(`{"detail":[{"loc":["body","topic"],"msg":"field required"}]}`)), "field required")
	assert.Equal(t, "Internal Server Error", detail([]byte("Internal Server Error\n")))
}
