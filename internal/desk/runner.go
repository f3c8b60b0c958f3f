package desk

import "context"

// Runner drives a Store synchronously: every effect is executed in order
// and its outcome dispatched until nothing is left to do.
type Runner struct {
	store *Store
	deps  Deps
}

func NewRunner(store *Store, deps Deps) *Runner {
	return &Runner{store: store, deps: deps}
}

func (r *Runner) Store() *Store { return r.store }

// Run dispatches a and settles everything it causes.
func (r *Runner) Run(ctx context.Context, a Action) State {
	queue := r.store.Dispatch(a)
	for len(queue) > 0 {
		eff := queue[0]
		queue = queue[1:]
		for _, out := range Execute(ctx, r.deps, eff) {
			queue = append(queue, r.store.Dispatch(out)...)
		}
	}
	return r.store.State()
}
