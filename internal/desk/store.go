package desk

import "sync"

// Store holds a State behind a mutex and tells subscribers about every
// transition. The TUI keeps its own State on the bubbletea loop; Store is
// for callers that dispatch from several goroutines.
type Store struct {
	mu    sync.Mutex
	state State
	subs  map[int]func(State)
	next  int
}

func NewStore(initial State) *Store {
	return &Store{state: initial, subs: make(map[int]func(State))}
}

func (st *Store) State() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Dispatch reduces a into the held state and returns the effects to run.
// Subscribers are called after the lock is released.
func (st *Store) Dispatch(a Action) []Effect {
	st.mu.Lock()
	var effects []Effect
	st.state, effects = Reduce(st.state, a)
	state := st.state
	subs := make([]func(State), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
	return effects
}

// Subscribe registers fn for every future transition. The returned func
// removes it.
func (st *Store) Subscribe(fn func(State)) func() {
	st.mu.Lock()
	id := st.next
	st.next++
	st.subs[id] = fn
	st.mu.Unlock()

	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}
