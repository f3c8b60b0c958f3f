package desk

import (
	"fmt"
	"strings"
)

// DefaultLimit is the page size used when none is configured.
const DefaultLimit = 10

// PostedFilter narrows the list by publication state.
type PostedFilter int

const (
	FilterAll PostedFilter = iota
	FilterPosted
	FilterUnposted
)

// ParsePostedFilter accepts the names used on the command line and in the
// backend's query string.
func ParsePostedFilter(s string) (PostedFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "null":
		return FilterAll, nil
	case "true", "posted":
		return FilterPosted, nil
	case "false", "unposted":
		return FilterUnposted, nil
	default:
		return FilterAll, fmt.Errorf("invalid posted filter %q (want all, posted or unposted)", s)
	}
}

func (f PostedFilter) String() string {
	switch f {
	case FilterPosted:
		return "posted"
	case FilterUnposted:
		return "unposted"
	default:
		return "all"
	}
}

// Param is the value of the backend's posted query parameter. It is empty
// for FilterAll, which sends no parameter at all.
func (f PostedFilter) Param() string {
	switch f {
	case FilterPosted:
		return "true"
	case FilterUnposted:
		return "false"
	default:
		return ""
	}
}

// Next cycles all -> unposted -> posted -> all.
func (f PostedFilter) Next() PostedFilter {
	switch f {
	case FilterAll:
		return FilterUnposted
	case FilterUnposted:
		return FilterPosted
	default:
		return FilterAll
	}
}

// Query is the list request the view is showing. Offset is always a
// multiple of Limit.
type Query struct {
	Search string
	Posted PostedFilter
	Limit  int
	Offset int
}

// QueryKey is the part of a Query whose change requires a new fetch.
type QueryKey struct {
	Search string
	Posted PostedFilter
	Offset int
	Limit  int
}

func NewQuery(limit int) Query {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Query{Limit: limit}
}

func (q Query) Key() QueryKey {
	return QueryKey{Search: q.Search, Posted: q.Posted, Offset: q.Offset, Limit: q.Limit}
}

// WithSearch sets the search text and returns to the first page.
func (q Query) WithSearch(s string) Query {
	q.Search = s
	q.Offset = 0
	return q
}

// WithPosted sets the posted filter and returns to the first page.
func (q Query) WithPosted(f PostedFilter) Query {
	q.Posted = f
	q.Offset = 0
	return q
}

// WithOffset moves to the page containing offset.
func (q Query) WithOffset(offset int) Query {
	if offset < 0 {
		offset = 0
	}
	q.Offset = offset - offset%q.limit()
	return q
}

func (q Query) Next() Query { return q.WithOffset(q.Offset + q.limit()) }

func (q Query) Prev() Query { return q.WithOffset(q.Offset - q.limit()) }

// Page is the 1-based page number the offset points at.
func (q Query) Page() int { return q.Offset/q.limit() + 1 }

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

func (k QueryKey) String() string {
	return fmt.Sprintf("search=%q posted=%s offset=%d limit=%d", k.Search, k.Posted, k.Offset, k.Limit)
}
