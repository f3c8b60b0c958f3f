package desk

// RequestID numbers fetches in the order they were issued.
type RequestID uint64

// EditSession is the single inline edit in progress. A zero value means no
// session is open.
type EditSession struct {
	TargetID     ItemID
	DraftTopic   string
	DraftContent string
}

func (e EditSession) Active() bool { return e.TargetID != "" }

type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeInfo
	NoticeSuccess
	NoticeError
)

// Notice is the one user-visible message slot. Seq grows with every new
// notice so a view can tell a repeat of the same text from the old one.
type Notice struct {
	Kind NoticeKind
	Text string
	Seq  uint64
}

type State struct {
	Query Query
	Page  Page

	// Loading is true while the latest issued fetch has not settled.
	Loading bool
	// Fetched is set once any fetch result has been applied.
	Fetched bool

	Topic      string
	Generating bool
	Posting    bool
	Saving     bool
	Listening  bool

	Edit   EditSession
	Notice Notice

	LatestRequest RequestID

	issued    bool
	issuedKey QueryKey
}

// NewState returns the initial state for a desk showing limit items per page.
func NewState(limit int) State {
	return State{Query: NewQuery(limit)}
}

// Busy reports whether any mutation is in flight.
func (s State) Busy() bool {
	return s.Generating || s.Posting || s.Saving
}

// CanNext reports whether NextPage would move.
func (s State) CanNext() bool {
	if len(s.Page.Items) < s.Query.Limit {
		return false
	}
	return s.Page.TotalPages == 0 || s.Page.CurrentPage < s.Page.TotalPages
}

func (s State) CanPrev() bool { return s.Query.Offset > 0 }
