package api

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pders01/quill/internal/desk"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed list.schema.json
var listSchemaJSON string

var listSchema = jsonschema.MustCompileString("list.schema.json", listSchemaJSON)

type wireItem struct {
	ID        desk.ItemID `json:"id"`
	Topic     string      `json:"topic"`
	Content   string      `json:"content"`
	Posted    bool        `json:"posted"`
	CreatedAt string      `json:"created_at"`
}

type listResponse struct {
	Items       *[]wireItem `json:"items"`
	CurrentPage int         `json:"current_page"`
	TotalPages  int         `json:"total_pages"`

	// Older backends answer with this shape.
	Tweets *[]wireItem `json:"tweets"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Total  int         `json:"total"`
}

// decodeList validates body against the list contract and converts it to a
// page. q supplies the paging parameters the legacy shape may omit.
func decodeList(body []byte, q desk.Query) (desk.Page, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return desk.Page{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := listSchema.Validate(doc); err != nil {
		return desk.Page{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return desk.Page{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if resp.Items != nil {
		return desk.Page{
			Items:       convertItems(*resp.Items),
			CurrentPage: resp.CurrentPage,
			TotalPages:  resp.TotalPages,
		}, nil
	}

	limit := resp.Limit
	if limit <= 0 {
		limit = q.Limit
	}
	if limit <= 0 {
		limit = desk.DefaultLimit
	}
	offset := resp.Offset
	if offset == 0 {
		offset = q.Offset
	}
	total := (resp.Total + limit - 1) / limit
	if total < 1 {
		total = 1
	}
	return desk.Page{
		Items:       convertItems(*resp.Tweets),
		CurrentPage: offset/limit + 1,
		TotalPages:  total,
	}, nil
}

func convertItems(in []wireItem) []desk.Item {
	out := make([]desk.Item, 0, len(in))
	for _, w := range in {
		out = append(out, desk.Item{
			ID:        w.ID,
			Topic:     w.Topic,
			Content:   w.Content,
			Posted:    w.Posted,
			CreatedAt: parseTime(w.CreatedAt),
		})
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTime accepts RFC 3339 and the zone-less timestamps Python backends
// emit, which are taken as UTC. Unparseable input yields the zero time.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// detail pulls a human message out of an error body: FastAPI's
// {"detail": ...}, a {"message": ...} or {"error": ...} field, or the text.
func detail(body []byte) string {
	var obj map[string]any
	if json.Unmarshal(body, &obj) == nil {
		for _, key := range []string{"detail", "message", "error"} {
			switch v := obj[key].(type) {
			case string:
				return v
			case nil:
			default:
				b, _ := json.Marshal(v)
				return string(b)
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
