package search

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/pders01/quill/internal/desk"
	"github.com/pders01/quill/internal/storage"
)

// Engine scores the topic history, cached headlines and the topics of
// posts seen on fetched pages without keeping an index.
type Engine struct {
	store *storage.Store

	mu    sync.RWMutex
	posts map[desk.ItemID]desk.Item
}

var (
	_ Suggester     = (*Engine)(nil)
	_ desk.Recorder = (*Engine)(nil)
)

func NewEngine(store *storage.Store) *Engine {
	return &Engine{store: store, posts: make(map[desk.ItemID]desk.Item)}
}

type candidate struct {
	text   string
	kind   Kind
	detail string
	weight float64
	boost  float64
}

func (e *Engine) candidates() []candidate {
	var out []candidate
	if e.store != nil {
		if topics, err := e.store.RecentTopics(200); err == nil {
			for _, t := range topics {
				out = append(out, candidate{
					text:   t.Topic,
					kind:   KindTopic,
					detail: pluralUses(t.Count),
					weight: 3.0,
					boost:  math.Log1p(float64(t.Count)) / 4,
				})
			}
		}
		if headlines, err := e.store.GetHeadlines("", 200); err == nil {
			for _, h := range headlines {
				out = append(out, candidate{text: h.Title, kind: KindHeadline, detail: h.Summary, weight: 2.0})
			}
		}
	}

	e.mu.RLock()
	for _, p := range e.posts {
		out = append(out, candidate{text: p.Topic, kind: KindPost, detail: p.Content, weight: 1.0})
	}
	e.mu.RUnlock()
	return out
}

// Suggest ranks candidates against query. A query shorter than two
// characters returns the most recent history instead.
func (e *Engine) Suggest(query string, limit int) ([]*Suggestion, error) {
	if limit <= 0 {
		limit = 5
	}
	if len(strings.TrimSpace(query)) < 2 {
		return e.recent(limit)
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return []*Suggestion{}, nil
	}

	var results []*Suggestion
	for _, c := range e.candidates() {
		score := scoreField(c.text, terms, c.weight)
		if c.detail != "" && c.kind != KindTopic {
			score += scoreField(c.detail, terms, c.weight/4)
		}
		if score <= 0 {
			continue
		}
		results = append(results, &Suggestion{
			Text:   c.text,
			Kind:   c.kind,
			Detail: truncate(c.detail, 120),
			Score:  score * (1 + c.boost),
		})
	}
	return rank(results, limit), nil
}

func (e *Engine) recent(limit int) ([]*Suggestion, error) {
	if e.store == nil {
		return []*Suggestion{}, nil
	}
	topics, err := e.store.RecentTopics(limit)
	if err != nil {
		return nil, err
	}
	out := make([]*Suggestion, 0, len(topics))
	for _, t := range topics {
		out = append(out, &Suggestion{Text: t.Topic, Kind: KindTopic, Detail: pluralUses(t.Count)})
	}
	return out, nil
}

// RecordPage remembers the topics on page for later suggestions.
func (e *Engine) RecordPage(_ desk.QueryKey, page desk.Page) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range page.Items {
		if strings.TrimSpace(it.Topic) != "" {
			e.posts[it.ID] = it
		}
	}
	return nil
}

// RecordTopic is a no-op: the history lives in the store, which records it.
func (e *Engine) RecordTopic(string) error { return nil }

// rank sorts by score, drops case-insensitive duplicates keeping the best
// one, and cuts to limit.
func rank(results []*Suggestion, limit int) []*Suggestion {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	seen := make(map[string]bool, len(results))
	out := make([]*Suggestion, 0, limit)
	for _, r := range results {
		key := strings.ToLower(strings.TrimSpace(r.Text))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

// scoreField calculates relevance of text for terms.
func scoreField(text string, terms []string, weight float64) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}

	var score float64
	matchedTerms := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			score += 2.0
			matchedTerms++
		}
		for _, word := range words {
			switch {
			case word == term:
				score += 1.5
				matchedTerms++
			case strings.HasPrefix(word, term):
				score += 1.0
				matchedTerms++
			case strings.Contains(word, term):
				score += 0.5
				matchedTerms++
			}
		}
	}
	if matchedTerms == 0 {
		return 0
	}

	if len(terms) > 1 && matchedTerms > 1 {
		score *= 1.0 + float64(matchedTerms)/float64(len(terms))
	}
	// Short texts that match are better topics than long ones.
	tf := float64(matchedTerms) / float64(len(words))
	score *= 1.0 + math.Log(1.0+tf)

	return score * weight
}

// tokenize breaks text into lowercase terms of two or more characters.
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len([]rune(term)) > 1 {
				terms = append(terms, term)
			}
			current.Reset()
		}
	}
	if term := current.String(); len([]rune(term)) > 1 {
		terms = append(terms, term)
	}
	return terms
}

func truncate(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	return string(r[:maxLen-1]) + "…"
}

func pluralUses(n int) string {
	if n == 1 {
		return "used once"
	}
	return fmt.Sprintf("used %d times", n)
}
