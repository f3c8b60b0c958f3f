package desk

// Action is an input to Reduce: a user intent or the outcome of an effect.
type Action interface{ isAction() }

// Effect is work Reduce asks the caller to perform. Its outcome comes back
// as another Action.
type Effect interface{ isEffect() }

type (
	// Init issues the first fetch.
	Init struct{}

	SetSearch       struct{ Text string }
	SetPostedFilter struct{ Filter PostedFilter }
	SetOffset       struct{ Offset int }
	NextPage        struct{}
	PrevPage        struct{}
	// Refresh refetches the current query even though it is unchanged.
	Refresh struct{}

	FetchSucceeded struct {
		Request RequestID
		Page    Page
	}
	FetchFailed struct {
		Request RequestID
		Err     error
	}
	// Hydrate shows a cached page for key until the first fetch lands.
	Hydrate struct {
		Key  QueryKey
		Page Page
	}

	SetTopic          struct{ Text string }
	Generate          struct{}
	GenerateSucceeded struct{ Topic string }
	GenerateFailed    struct{ Err error }

	PostNow       struct{ ID ItemID }
	PostSucceeded struct{ ID ItemID }
	PostFailed    struct {
		ID  ItemID
		Err error
	}

	StartEdit     struct{ Item Item }
	CancelEdit    struct{}
	SetDraft      struct{ Topic, Content string }
	SaveEdit      struct{}
	SaveSucceeded struct{ ID ItemID }
	SaveFailed    struct {
		ID  ItemID
		Err error
	}

	StartListening struct{}
	SpeechResult   struct{ Text string }
	SpeechFailed   struct{ Err error }
	SpeechEnded    struct{}

	// ClearNotice empties the notice slot if it still holds notice Seq.
	ClearNotice struct{ Seq uint64 }
)

func (Init) isAction()              {}
func (SetSearch) isAction()         {}
func (SetPostedFilter) isAction()   {}
func (SetOffset) isAction()         {}
func (NextPage) isAction()          {}
func (PrevPage) isAction()          {}
func (Refresh) isAction()           {}
func (FetchSucceeded) isAction()    {}
func (FetchFailed) isAction()       {}
func (Hydrate) isAction()           {}
func (SetTopic) isAction()          {}
func (Generate) isAction()          {}
func (GenerateSucceeded) isAction() {}
func (GenerateFailed) isAction()    {}
func (PostNow) isAction()           {}
func (PostSucceeded) isAction()     {}
func (PostFailed) isAction()        {}
func (StartEdit) isAction()         {}
func (CancelEdit) isAction()        {}
func (SetDraft) isAction()          {}
func (SaveEdit) isAction()          {}
func (SaveSucceeded) isAction()     {}
func (SaveFailed) isAction()        {}
func (StartListening) isAction()    {}
func (SpeechResult) isAction()      {}
func (SpeechFailed) isAction()      {}
func (SpeechEnded) isAction()       {}
func (ClearNotice) isAction()       {}

type (
	FetchEffect struct {
		Request RequestID
		Query   Query
	}
	GenerateEffect struct{ Topic string }
	PostEffect     struct{ ID ItemID }
	SaveEffect     struct {
		ID      ItemID
		Topic   string
		Content string
	}
	ListenEffect struct{}
)

func (FetchEffect) isEffect()    {}
func (GenerateEffect) isEffect() {}
func (PostEffect) isEffect()     {}
func (SaveEffect) isEffect()     {}
func (ListenEffect) isEffect()   {}
