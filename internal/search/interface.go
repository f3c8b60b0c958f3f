package search

import "github.com/pders01/quill/internal/storage"

type Kind int

const (
	KindTopic Kind = iota
	KindHeadline
	KindPost
)

func (k Kind) String() string {
	switch k {
	case KindTopic:
		return "history"
	case KindHeadline:
		return "headline"
	default:
		return "post"
	}
}

// Suggestion is a topic the user may want to generate a post about.
type Suggestion struct {
	Text   string
	Kind   Kind
	Detail string
	Score  float64
}

// Suggester ranks topic ideas for what the user has typed so far.
type Suggester interface {
	Suggest(query string, limit int) ([]*Suggestion, error)
}

// HeadlineListener is implemented by engines that index fetched headlines.
type HeadlineListener interface {
	OnHeadlines(headlines []*storage.Headline)
}

// DebugStatser provides lightweight stats for visibility/debugging.
type DebugStatser interface {
	DocCount() (int, error)
}
