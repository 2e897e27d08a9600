package action

import (
	"context"
	"errors"
	"sync"
)

// ErrCanceled is reported by a Future whose action was cancelled before it completed.
var ErrCanceled = errors.New("action canceled")

// Future reports completion of a scheduled action.
//
// Resolution always happens on the frame thread during Advance. Continuations
// registered with Then run there too, in registration order. Goroutines other
// than the frame thread use Done or Wait.
type Future struct {
	id   ID
	done chan struct{}

	mu      sync.Mutex
	settled bool
	err     error
	thens   []func()
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// ID returns the root action this future tracks.
func (f *Future) ID() ID {
	return f.id
}

// Done is closed when the future settles, either resolved or cancelled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved reports whether the action completed normally.
func (f *Future) Resolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled && f.err == nil
}

// Err returns ErrCanceled once the action is cancelled, nil otherwise.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Then registers fn to run on the frame thread when the future resolves.
// If it already resolved, fn runs immediately on the calling goroutine.
// Continuations of a cancelled future never run.
func (f *Future) Then(fn func()) {
	f.mu.Lock()
	if !f.settled {
		f.thens = append(f.thens, fn)
		f.mu.Unlock()
		return
	}
	canceled := f.err != nil
	f.mu.Unlock()

	if !canceled {
		fn()
	}
}

// Wait blocks until the future settles or ctx is done.
// Must not be called on the frame thread, which is the only thread that can
// settle it.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve settles the future successfully and runs its continuations.
// Returns false if it was already settled.
func (f *Future) resolve() bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	thens := f.thens
	f.thens = nil
	f.mu.Unlock()

	close(f.done)
	for _, fn := range thens {
		fn()
	}
	return true
}

// cancel settles the future with ErrCanceled and drops its continuations.
func (f *Future) cancel() bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.err = ErrCanceled
	f.thens = nil
	f.mu.Unlock()

	close(f.done)
	return true
}
