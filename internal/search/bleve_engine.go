package search

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/pders01/quill/internal/debuglog"
	"github.com/pders01/quill/internal/desk"
	"github.com/pders01/quill/internal/storage"
)

// BleveEngine keeps topic history, headlines and post topics in an on-disk
// full text index.
type BleveEngine struct {
	store *storage.Store
	idx   bleve.Index
}

var (
	_ Suggester        = (*BleveEngine)(nil)
	_ desk.Recorder    = (*BleveEngine)(nil)
	_ HeadlineListener = (*BleveEngine)(nil)
	_ DebugStatser     = (*BleveEngine)(nil)
)

var kindWeights = map[string]float64{
	"topic":    3.0,
	"headline": 2.0,
	"post":     1.0,
}

// NewBleveEngine opens or creates the index at indexPath and loads the
// history and headlines already in store.
func NewBleveEngine(store *storage.Store, indexPath string) (*BleveEngine, error) {
	_ = os.MkdirAll(filepath.Dir(indexPath), 0o755)

	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, err
		}
	}

	be := &BleveEngine{store: store, idx: idx}
	if err := be.reindexAll(); err != nil {
		idx.Close()
		return nil, err
	}
	return be, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = true
	text.IncludeTermVectors = true

	detail := bleve.NewTextFieldMapping()
	detail.Analyzer = standard.Name
	detail.Store = true

	kind := bleve.NewKeywordFieldMapping()
	kind.Store = true

	dm.AddFieldMappingsAt("text", text)
	dm.AddFieldMappingsAt("detail", detail)
	dm.AddFieldMappingsAt("type", kind)

	im.DefaultMapping = dm
	return im
}

func (b *BleveEngine) Close() error { return b.idx.Close() }

func (b *BleveEngine) reindexAll() error {
	if b.store == nil {
		return nil
	}
	batch := b.idx.NewBatch()

	topics, err := b.store.RecentTopics(0)
	if err != nil {
		return err
	}
	for _, t := range topics {
		_ = batch.Index(docIDForTopic(t.Topic), topicDoc(t.Topic, pluralUses(t.Count)))
	}

	headlines, err := b.store.GetHeadlines("", 0)
	if err != nil {
		return err
	}
	for _, h := range headlines {
		_ = batch.Index(docIDForHeadline(h.ID), headlineDoc(h))
	}
	return b.idx.Batch(batch)
}

func topicDoc(topic, detail string) map[string]any {
	return map[string]any{"type": "topic", "text": topic, "detail": detail}
}

func headlineDoc(h *storage.Headline) map[string]any {
	return map[string]any{"type": "headline", "text": h.Title, "detail": h.Summary}
}

func (b *BleveEngine) Suggest(query string, limit int) ([]*Suggestion, error) {
	if limit <= 0 {
		limit = 5
	}
	if len(strings.TrimSpace(query)) < 2 {
		return (&Engine{store: b.store}).recent(limit)
	}

	var qs []bleveQuery.Query
	for _, tok := range tokenize(query) {
		qt := bleve.NewMatchQuery(tok)
		qt.SetField("text")
		qt.SetBoost(4.0)
		qs = append(qs, qt)
		qtp := bleve.NewPrefixQuery(tok)
		qtp.SetField("text")
		qtp.SetBoost(3.5)
		qs = append(qs, qtp)

		qd := bleve.NewMatchQuery(tok)
		qd.SetField("detail")
		qd.SetBoost(1.0)
		qs = append(qs, qd)
		qdp := bleve.NewPrefixQuery(tok)
		qdp.SetField("detail")
		qdp.SetBoost(0.8)
		qs = append(qs, qdp)
	}
	if len(qs) == 0 {
		return []*Suggestion{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit*4, 0, false)
	req.Fields = []string{"text", "detail", "type"}
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]*Suggestion, 0, len(res.Hits))
	for _, h := range res.Hits {
		s := &Suggestion{Score: h.Score}
		if t, ok := h.Fields["text"].(string); ok {
			s.Text = t
		}
		if d, ok := h.Fields["detail"].(string); ok {
			s.Detail = truncate(d, 120)
		}
		kind, _ := h.Fields["type"].(string)
		switch kind {
		case "topic":
			s.Kind = KindTopic
		case "headline":
			s.Kind = KindHeadline
		default:
			s.Kind = KindPost
		}
		if w, ok := kindWeights[kind]; ok {
			s.Score *= w
		}
		out = append(out, s)
	}
	return rank(out, limit), nil
}

// RecordPage indexes the topics of the posts on page.
func (b *BleveEngine) RecordPage(_ desk.QueryKey, page desk.Page) error {
	batch := b.idx.NewBatch()
	for _, it := range page.Items {
		if strings.TrimSpace(it.Topic) == "" {
			continue
		}
		_ = batch.Index(docIDForPost(it.ID), map[string]any{
			"type":   "post",
			"text":   it.Topic,
			"detail": it.Content,
		})
	}
	return b.idx.Batch(batch)
}

func (b *BleveEngine) RecordTopic(topic string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	return b.idx.Index(docIDForTopic(topic), topicDoc(topic, ""))
}

// OnHeadlines indexes freshly fetched headlines.
func (b *BleveEngine) OnHeadlines(headlines []*storage.Headline) {
	batch := b.idx.NewBatch()
	for _, h := range headlines {
		_ = batch.Index(docIDForHeadline(h.ID), headlineDoc(h))
	}
	if err := b.idx.Batch(batch); err != nil {
		debuglog.Warnf("indexing %d headlines: %v", len(headlines), err)
	}
}

// DocCount reports total documents in the index.
func (b *BleveEngine) DocCount() (int, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 0, 0, false)
	res, err := b.idx.Search(req)
	if err != nil {
		return 0, err
	}
	return int(res.Total), nil
}

func docIDForTopic(topic string) string  { return "topic:" + strings.ToLower(topic) }
func docIDForHeadline(id string) string  { return "headline:" + id }
func docIDForPost(id desk.ItemID) string { return "post:" + id.String() }
