// Package desk holds the post desk's state machine: the query being viewed,
// the page last fetched for it, the inline edit session and the mutations
// in flight. Reduce is pure; Execute runs the effects it asks for.
package desk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ItemID identifies a post. Backends send it either as a JSON number or a
// JSON string, so it is kept as text.
type ItemID string

func (id ItemID) String() string { return string(id) }

func (id *ItemID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("item id: %w", err)
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("item id: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("item id: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

// Item is a generated post as the backend reports it.
type Item struct {
	ID        ItemID    `json:"id" yaml:"id"`
	Topic     string    `json:"topic" yaml:"topic"`
	Content   string    `json:"content" yaml:"content"`
	Posted    bool      `json:"posted" yaml:"posted"`
	CreatedAt time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
}

// Page is one page of the remote collection. It is replaced wholesale on
// every applied fetch.
type Page struct {
	Items       []Item `json:"items" yaml:"items"`
	CurrentPage int    `json:"current_page" yaml:"current_page"`
	TotalPages  int    `json:"total_pages" yaml:"total_pages"`
}

// Find returns the item with the given id on this page.
func (p Page) Find(id ItemID) (Item, bool) {
	for _, it := range p.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
