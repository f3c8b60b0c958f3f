// Package backendtest runs an in-memory post backend that speaks the same
// HTTP contract as the real one. It is meant for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

// Post is a stored item as the backend keeps it.
type Post struct {
	ID        int       `json:"id"`
	Topic     string    `json:"topic"`
	Content   string    `json:"content"`
	Posted    bool      `json:"posted"`
	CreatedAt time.Time `json:"created_at"`
}

type failure struct {
	skip   int
	status int
}

type Server struct {
	*httptest.Server

	mu     sync.Mutex
	posts  []Post
	nextID int
	legacy bool
	fail   map[string]failure
	calls  map[string]int
	last   map[string]*http.Request
	now    func() time.Time
	// Compose produces the generated content for a topic.
	Compose func(topic string) string
}

// New starts a server. Callers must Close it.
func New() *Server {
	s := &Server{
		nextID: 1,
		fail:   make(map[string]failure),
		calls:  make(map[string]int),
		last:   make(map[string]*http.Request),
		now:    time.Now,
		Compose: func(topic string) string {
			return fmt.Sprintf("Thoughts on %s. #%s", topic, strings.ReplaceAll(strings.ToLower(topic), " ", ""))
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tweet/tweets", s.handleList)
	mux.HandleFunc("POST /tweet/generate", s.handleGenerate)
	mux.HandleFunc("POST /tweet/post-tweet/{id}", s.handlePost)
	mux.HandleFunc("PUT /tweet/edit/{id}", s.handleEdit)
	mux.HandleFunc("GET /tweet/health", s.handleHealth)

	s.Server = httptest.NewServer(gzhttp.GzipHandler(mux))
	return s
}

// Add stores a post and returns it.
func (s *Server) Add(topic, content string, posted bool) Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(topic, content, posted)
}

// Seed adds n unposted posts numbered from 1.
func (s *Server) Seed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.add(fmt.Sprintf("topic %d", s.nextID), fmt.Sprintf("content %d", s.nextID), false)
	}
}

func (s *Server) add(topic, content string, posted bool) Post {
	p := Post{ID: s.nextID, Topic: topic, Content: content, Posted: posted, CreatedAt: s.now().UTC()}
	s.nextID++
	s.posts = append(s.posts, p)
	return p
}

// Posts returns the stored posts, newest first.
func (s *Server) Posts() []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ordered()
}

// SetLegacy switches the list endpoint to the {tweets, limit, offset, total}
// reply.
func (s *Server) SetLegacy(on bool) {
	s.mu.Lock()
	s.legacy = on
	s.mu.Unlock()
}

// FailNext makes the next call to op ("list", "generate", "post", "edit",
// "health") answer with status.
func (s *Server) FailNext(op string, status int) {
	s.FailAfter(op, 0, status)
}

// FailAfter lets the next n calls to op through and fails the one after.
func (s *Server) FailAfter(op string, n int, status int) {
	s.mu.Lock()
	s.fail[op] = failure{skip: n, status: status}
	s.mu.Unlock()
}

// Calls reports how many requests op has received.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// LastRequest returns the most recent request for op.
func (s *Server) LastRequest(op string) *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[op]
}

func (s *Server) begin(w http.ResponseWriter, r *http.Request, op string) bool {
	s.calls[op]++
	s.last[op] = r.Clone(r.Context())
	if f, ok := s.fail[op]; ok {
		if f.skip > 0 {
			f.skip--
			s.fail[op] = f
			return true
		}
		delete(s.fail, op)
		writeJSON(w, f.status, map[string]string{"detail": "injected failure"})
		return false
	}
	return true
}

func (s *Server) ordered() []Post {
	out := make([]Post, len(s.posts))
	for i := range s.posts {
		out[len(s.posts)-1-i] = s.posts[i]
	}
	return out
}

func (s *Server) find(id string) (int, bool) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, false
	}
	for i := range s.posts {
		if s.posts[i].ID == n {
			return i, true
		}
	}
	return 0, false
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.begin(w, r, "list") {
		return
	}

	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if q.Get("limit") == "" {
		limit, err = 10, nil
	}
	if err != nil || limit < 1 || limit > 100 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "limit must be between 1 and 100"})
		return
	}
	offset, err := strconv.Atoi(q.Get("offset"))
	if q.Get("offset") == "" {
		offset, err = 0, nil
	}
	if err != nil || offset < 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "offset must be non-negative"})
		return
	}

	search := strings.ToLower(q.Get("search"))
	posted := q.Get("posted")
	var matched []Post
	for _, p := range s.ordered() {
		if search != "" && !strings.Contains(strings.ToLower(p.Topic+" "+p.Content), search) {
			continue
		}
		if posted != "" && strconv.FormatBool(p.Posted) != posted {
			continue
		}
		matched = append(matched, p)
	}

	page := []Post{}
	if offset < len(matched) {
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		page = matched[offset:end]
	}

	if s.legacy {
		writeJSON(w, http.StatusOK, map[string]any{
			"tweets": page,
			"limit":  limit,
			"offset": offset,
			"total":  len(matched),
		})
		return
	}

	total := (len(matched) + limit - 1) / limit
	if total < 1 {
		total = 1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":        page,
		"current_page": offset/limit + 1,
		"total_pages":  total,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.begin(w, r, "generate") {
		return
	}

	var in struct {
		Topic string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Topic) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "topic is required"})
		return
	}
	p := s.add(in.Topic, s.Compose(in.Topic), false)
	writeJSON(w, http.StatusOK, map[string]any{"tweet": p.Content, "id": p.ID})
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.begin(w, r, "post") {
		return
	}

	i, ok := s.find(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Tweet not found"})
		return
	}
	if s.posts[i].Posted {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already posted", "tweet": s.posts[i].Content})
		return
	}
	s.posts[i].Posted = true
	writeJSON(w, http.StatusOK, map[string]string{"status": "posted", "tweet": s.posts[i].Content})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.begin(w, r, "edit") {
		return
	}

	i, ok := s.find(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Tweet not found"})
		return
	}
	if s.posts[i].Posted {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Tweet already posted and cannot be edited"})
		return
	}
	var in struct {
		Topic   string `json:"topic"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}
	if in.Topic != "" {
		s.posts[i].Topic = in.Topic
	}
	if in.Content != "" {
		s.posts[i].Content = in.Content
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Updated", "tweet": s.posts[i]})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.begin(w, r, "health") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
