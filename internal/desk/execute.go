package desk

import (
	"context"
	"sync"
	"time"

	"github.com/pders01/quill/internal/debuglog"
	"github.com/pders01/quill/internal/speech"
)

// Backend is the remote post collection.
type Backend interface {
	List(ctx context.Context, q Query) (Page, error)
	Generate(ctx context.Context, topic string) error
	PostNow(ctx context.Context, id ItemID) error
	Edit(ctx context.Context, id ItemID, topic, content string) error
}

// Recorder is told about pages and topics that made it through the backend.
// Failures are logged and otherwise ignored.
type Recorder interface {
	RecordPage(key QueryKey, page Page) error
	RecordTopic(topic string) error
}

type multiRecorder []Recorder

// Recorders fans out to every non-nil recorder in rs.
func Recorders(rs ...Recorder) Recorder {
	var out multiRecorder
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiRecorder) RecordPage(key QueryKey, page Page) error {
	var first error
	for _, r := range m {
		if err := r.RecordPage(key, page); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multiRecorder) RecordTopic(topic string) error {
	var first error
	for _, r := range m {
		if err := r.RecordTopic(topic); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type Deps struct {
	Backend  Backend
	Speech   speech.Provider
	Recorder Recorder
	// Timeout bounds every backend call. Zero means no bound beyond ctx.
	Timeout time.Duration
}

// Execute performs one effect and returns the actions describing its
// outcome. It blocks until the work is done.
func Execute(ctx context.Context, deps Deps, eff Effect) []Action {
	switch e := eff.(type) {
	case FetchEffect:
		return executeFetch(ctx, deps, e)

	case GenerateEffect:
		err := withTimeout(ctx, deps.Timeout, func(ctx context.Context) error {
			return deps.Backend.Generate(ctx, e.Topic)
		})
		if err != nil {
			debuglog.WithFields(map[string]interface{}{"op": "generate"}).Errorf("generate failed: %v", err)
			return []Action{GenerateFailed{Err: err}}
		}
		if deps.Recorder != nil {
			if rerr := deps.Recorder.RecordTopic(e.Topic); rerr != nil {
				debuglog.Warnf("recording topic: %v", rerr)
			}
		}
		return []Action{GenerateSucceeded{Topic: e.Topic}}

	case PostEffect:
		err := withTimeout(ctx, deps.Timeout, func(ctx context.Context) error {
			return deps.Backend.PostNow(ctx, e.ID)
		})
		if err != nil {
			debuglog.WithFields(map[string]interface{}{"op": "post", "id": e.ID}).Errorf("post failed: %v", err)
			return []Action{PostFailed{ID: e.ID, Err: err}}
		}
		return []Action{PostSucceeded{ID: e.ID}}

	case SaveEffect:
		err := withTimeout(ctx, deps.Timeout, func(ctx context.Context) error {
			return deps.Backend.Edit(ctx, e.ID, e.Topic, e.Content)
		})
		if err != nil {
			debuglog.WithFields(map[string]interface{}{"op": "edit", "id": e.ID}).Errorf("edit failed: %v", err)
			return []Action{SaveFailed{ID: e.ID, Err: err}}
		}
		return []Action{SaveSucceeded{ID: e.ID}}

	case ListenEffect:
		return listen(ctx, deps.Speech)
	}
	return nil
}

func executeFetch(ctx context.Context, deps Deps, e FetchEffect) []Action {
	log := debuglog.WithFields(map[string]interface{}{
		"op":      "list",
		"request": e.Request,
		"query":   e.Query.Key(),
	})
	start := time.Now()

	var page Page
	err := withTimeout(ctx, deps.Timeout, func(ctx context.Context) error {
		var lerr error
		page, lerr = deps.Backend.List(ctx, e.Query)
		return lerr
	})
	if err != nil {
		log.Errorf("fetch failed after %s: %v", time.Since(start), err)
		return []Action{FetchFailed{Request: e.Request, Err: err}}
	}
	log.Debugf("fetched %d items in %s", len(page.Items), time.Since(start))

	if deps.Recorder != nil {
		if rerr := deps.Recorder.RecordPage(e.Query.Key(), page); rerr != nil {
			log.Warnf("recording page: %v", rerr)
		}
	}
	return []Action{FetchSucceeded{Request: e.Request, Page: page}}
}

func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return fn(ctx)
}

// listen runs one capture and always ends with SpeechEnded.
func listen(ctx context.Context, p speech.Provider) []Action {
	if p == nil {
		return []Action{SpeechFailed{Err: speech.ErrUnsupported}, SpeechEnded{}}
	}

	var (
		mu   sync.Mutex
		out  []Action
		once sync.Once
		done = make(chan struct{})
	)
	hooks := speech.Hooks{
		OnResult: func(text string) {
			mu.Lock()
			out = append(out, SpeechResult{Text: text})
			mu.Unlock()
		},
		OnError: func(err error) {
			mu.Lock()
			out = append(out, SpeechFailed{Err: err})
			mu.Unlock()
		},
		OnEnd: func() { once.Do(func() { close(done) }) },
	}

	if err := p.Start(ctx, hooks); err != nil {
		debuglog.Errorf("speech start: %v", err)
		return []Action{SpeechFailed{Err: err}, SpeechEnded{}}
	}

	select {
	case <-done:
	case <-ctx.Done():
		mu.Lock()
		out = append(out, SpeechFailed{Err: ctx.Err()})
		mu.Unlock()
	}

	mu.Lock()
	defer mu.Unlock()
	result := make([]Action, 0, len(out)+1)
	result = append(result, out...)
	return append(result, SpeechEnded{})
}
