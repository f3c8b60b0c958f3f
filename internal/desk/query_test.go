package desk

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePostedFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    PostedFilter
		wantErr bool
	}{
		{"", FilterAll, false},
		{"all", FilterAll, false},
		{"null", FilterAll, false},
		{"true", FilterPosted, false},
		{"Posted", FilterPosted, false},
		{"false", FilterUnposted, false},
		{"unposted", FilterUnposted, false},
		{"maybe", FilterAll, true},
	}
	for _, tt := range tests {
		got, err := ParsePostedFilter(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestPostedFilter_ParamAndCycle(t *testing.T) {
	assert.Equal(t, "", FilterAll.Param())
	assert.Equal(t, "true", FilterPosted.Param())
	assert.Equal(t, "false", FilterUnposted.Param())

	f := FilterAll
	seen := []PostedFilter{f}
	for i := 0; i < 3; i++ {
		f = f.Next()
		seen = append(seen, f)
	}
	assert.Equal(t, []PostedFilter{FilterAll, FilterUnposted, FilterPosted, FilterAll}, seen)
}

func TestQuery_ResetsOffsetOnFilterChange(t *testing.T) {
	q := NewQuery(10).WithOffset(30)
	require.Equal(t, 30, q.Offset)

	assert.Equal(t, 0, q.WithSearch("go").Offset)
	assert.Equal(t, 0, q.WithPosted(FilterPosted).Offset)
}

func TestQuery_WithOffsetKeepsMultipleOfLimit(t *testing.T) {
	q := NewQuery(10)
	assert.Equal(t, 0, q.WithOffset(-5).Offset)
	assert.Equal(t, 20, q.WithOffset(27).Offset)
	assert.Equal(t, 10, q.Next().Offset)
	assert.Equal(t, 0, q.Prev().Offset)
	assert.Equal(t, 3, q.WithOffset(20).Page())
}

func TestNewQuery_DefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NewQuery(0).Limit)
	assert.Equal(t, 25, NewQuery(25).Limit)
}

func TestItemID_UnmarshalJSON(t *testing.T) {
	var items []struct {
		ID ItemID `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`[{"id":42},{"id":"abc-1"},{"id":null}]`), &items))
	assert.Equal(t, ItemID("42"), items[0].ID)
	assert.Equal(t, ItemID("abc-1"), items[1].ID)
	assert.Equal(t, ItemID(""), items[2].ID)

	var bad ItemID
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &bad))
}

func TestItem_MarshalJSONOmitsMissingTimestamp(t *testing.T) {
	data, err := json.Marshal(Item{ID: "1", Topic: "go"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "created_at")

	at := time.Date(2025, 2, 11, 9, 30, 0, 0, time.UTC)
	data, err = json.Marshal(Item{ID: "2", CreatedAt: at})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"created_at":"2025-02-11T09:30:00Z"`)
}

func TestPage_Find(t *testing.T) {
	p := Page{Items: []Item{{ID: "1", Topic: "a"}, {ID: "2", Topic: "b"}}}
	it, ok := p.Find("2")
	assert.True(t, ok)
	assert.Equal(t, "b", it.Topic)

	_, ok = p.Find("3")
	assert.False(t, ok)
}
