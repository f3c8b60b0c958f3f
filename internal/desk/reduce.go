package desk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pders01/quill/internal/speech"
)

// Reduce applies a to s. It never performs I/O: work that must happen as a
// consequence is returned as effects.
func Reduce(s State, a Action) (State, []Effect) {
	switch a := a.(type) {
	case Init:
		if s.issued {
			return s, nil
		}
		return s.fetch()

	case SetSearch:
		s.Query = s.Query.WithSearch(a.Text)
		return s.fetchIfChanged()
	case SetPostedFilter:
		s.Query = s.Query.WithPosted(a.Filter)
		return s.fetchIfChanged()
	case SetOffset:
		s.Query = s.Query.WithOffset(a.Offset)
		return s.fetchIfChanged()
	case NextPage:
		if !s.CanNext() {
			return s, nil
		}
		s.Query = s.Query.Next()
		return s.fetchIfChanged()
	case PrevPage:
		if !s.CanPrev() {
			return s, nil
		}
		s.Query = s.Query.Prev()
		return s.fetchIfChanged()
	case Refresh:
		return s.fetch()

	case FetchSucceeded:
		if a.Request != s.LatestRequest {
			return s, nil
		}
		s.Page = a.Page
		s.Loading = false
		s.Fetched = true
		return s, nil
	case FetchFailed:
		if a.Request != s.LatestRequest {
			return s, nil
		}
		s.Loading = false
		s = s.notify(NoticeError, failure("Failed to fetch posts", a.Err))
		return s, nil
	case Hydrate:
		if s.Fetched || a.Key != s.Query.Key() {
			return s, nil
		}
		s.Page = a.Page
		return s, nil

	case SetTopic:
		s.Topic = a.Text
		return s, nil
	case Generate:
		topic := strings.TrimSpace(s.Topic)
		if topic == "" || s.Generating {
			return s, nil
		}
		s.Generating = true
		return s, []Effect{GenerateEffect{Topic: topic}}
	case GenerateSucceeded:
		s.Generating = false
		s.Topic = ""
		s.Query = s.Query.WithOffset(0)
		s = s.notify(NoticeSuccess, "Post generated!")
		return s.fetch()
	case GenerateFailed:
		s.Generating = false
		s = s.notify(NoticeError, failure("Failed to generate post", a.Err))
		return s, nil

	case PostNow:
		if a.ID == "" || s.Posting {
			return s, nil
		}
		s.Posting = true
		return s, []Effect{PostEffect{ID: a.ID}}
	case PostSucceeded:
		s.Posting = false
		s = s.notify(NoticeSuccess, "Post published!")
		return s.fetch()
	case PostFailed:
		s.Posting = false
		s = s.notify(NoticeError, failure("Failed to publish post", a.Err))
		return s, nil

	case StartEdit:
		s.Edit = EditSession{
			TargetID:     a.Item.ID,
			DraftTopic:   a.Item.Topic,
			DraftContent: a.Item.Content,
		}
		return s, nil
	case CancelEdit:
		s.Edit = EditSession{}
		return s, nil
	case SetDraft:
		if !s.Edit.Active() {
			return s, nil
		}
		s.Edit.DraftTopic = a.Topic
		s.Edit.DraftContent = a.Content
		return s, nil
	case SaveEdit:
		if !s.Edit.Active() || s.Saving {
			return s, nil
		}
		s.Saving = true
		return s, []Effect{SaveEffect{
			ID:      s.Edit.TargetID,
			Topic:   s.Edit.DraftTopic,
			Content: s.Edit.DraftContent,
		}}
	case SaveSucceeded:
		s.Saving = false
		if s.Edit.TargetID == a.ID {
			s.Edit = EditSession{}
		}
		s = s.notify(NoticeSuccess, "Post updated!")
		return s.fetch()
	case SaveFailed:
		s.Saving = false
		s = s.notify(NoticeError, failure("Failed to update post", a.Err))
		return s, nil

	case StartListening:
		if s.Listening {
			return s, nil
		}
		s.Listening = true
		return s, []Effect{ListenEffect{}}
	case SpeechResult:
		s.Listening = false
		s.Topic = a.Text
		s = s.notify(NoticeSuccess, "Captured speech input!")
		return s, nil
	case SpeechFailed:
		s.Listening = false
		if errors.Is(a.Err, speech.ErrUnsupported) {
			s = s.notify(NoticeError, speech.ErrUnsupported.Error())
		} else {
			s = s.notify(NoticeError, failure("Speech recognition error", a.Err))
		}
		return s, nil
	case SpeechEnded:
		s.Listening = false
		return s, nil

	case ClearNotice:
		if s.Notice.Seq == a.Seq {
			s.Notice.Kind = NoticeNone
			s.Notice.Text = ""
		}
		return s, nil
	}
	return s, nil
}

// fetchIfChanged issues a fetch only when the query key differs from the
// one last issued.
func (s State) fetchIfChanged() (State, []Effect) {
	if s.issued && s.issuedKey == s.Query.Key() {
		return s, nil
	}
	return s.fetch()
}

func (s State) fetch() (State, []Effect) {
	s.LatestRequest++
	s.Loading = true
	s.issued = true
	s.issuedKey = s.Query.Key()
	return s, []Effect{FetchEffect{Request: s.LatestRequest, Query: s.Query}}
}

func (s State) notify(kind NoticeKind, text string) State {
	s.Notice = Notice{Kind: kind, Text: text, Seq: s.Notice.Seq + 1}
	return s
}

func failure(prefix string, err error) string {
	if err == nil {
		return prefix
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}
