package topics

import (
	"crypto/sha256"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pders01/quill/internal/storage"
)

const maxSummary = 280

var (
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

type Parser struct {
	parser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: gofeed.NewParser(),
	}
}

// Parse reads an RSS, Atom or JSON feed and returns its title and entries.
func (p *Parser) Parse(reader io.Reader, sourceURL string) (string, []*storage.Headline, error) {
	feed, err := p.parser.Parse(reader)
	if err != nil {
		return "", nil, fmt.Errorf("parsing feed: %w", err)
	}

	headlines := make([]*storage.Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := plainText(item.Title)
		if title == "" {
			continue
		}

		h := &storage.Headline{
			ID:        headlineID(sourceURL, item),
			SourceURL: sourceURL,
			Title:     title,
			Link:      item.Link,
			Summary:   summarize(item),
		}

		switch {
		case item.PublishedParsed != nil:
			h.Published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			h.Published = *item.UpdatedParsed
		}

		headlines = append(headlines, h)
	}

	return plainText(feed.Title), headlines, nil
}

func summarize(item *gofeed.Item) string {
	text := plainText(item.Description)
	if text == "" {
		text = plainText(item.Content)
	}
	if r := []rune(text); len(r) > maxSummary {
		text = strings.TrimSpace(string(r[:maxSummary-1])) + "…"
	}
	return text
}

// plainText strips markup and collapses whitespace.
func plainText(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// headlineID is stable across refreshes so re-fetched entries overwrite
// their previous copy.
func headlineID(sourceURL string, item *gofeed.Item) string {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	if key == "" {
		key = fmt.Sprintf("%x", sha256.Sum256([]byte(item.Title)))[:16]
	}
	return sourceURL + ":" + key
}
