// Package speech captures a spoken topic. A Provider is started once per
// capture and reports through Hooks.
package speech

import (
	"context"
	"errors"
)

// ErrUnsupported is reported when no speech engine is available.
var ErrUnsupported = errors.New("Speech recognition is not supported on this system.")

// Hooks receive the outcome of one capture. OnEnd is called exactly once,
// after OnResult or OnError.
type Hooks struct {
	OnResult func(text string)
	OnError  func(err error)
	OnEnd    func()
}

func (h Hooks) result(text string) {
	if h.OnResult != nil {
		h.OnResult(text)
	}
}

func (h Hooks) fail(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h Hooks) end() {
	if h.OnEnd != nil {
		h.OnEnd()
	}
}

// Provider starts a capture. Start returns an error only when the capture
// could not begin; later failures go to Hooks.OnError.
type Provider interface {
	Start(ctx context.Context, hooks Hooks) error
}

