// Package handle maps native handles to the managed wrappers that represent them.
//
// The registry is the only place a wrapper is found by handle. Lookup never
// constructs a wrapper: a miss is reported as a miss. Registration of a
// handle that already has a live entry fails, so a handle can never alias
// two different wrappers.
//
// Thread-safety: every operation takes the registry lock. Native callbacks may
// resolve handles while other goroutines register or dispose wrappers.
package handle

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/framebridge/internal/core"
)

// Registry is a mutex-protected table from Handle to Wrapper.
type Registry struct {
	mu      sync.RWMutex
	entries map[core.Handle]core.Wrapper
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[core.Handle]core.Wrapper),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds w under its own handle.
// Returns DuplicateHandle if the handle already has a live entry; the
// existing mapping is left untouched.
func (r *Registry) Register(w core.Wrapper) error {
	if w == nil {
		return &core.BridgeError{Code: core.CodeInvalidHandle, Message: "cannot register nil wrapper"}
	}
	h := w.Handle()
	if !h.Valid() {
		return &core.BridgeError{Code: core.CodeInvalidHandle, Message: "cannot register the zero handle", Handle: h}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[h]; exists {
		return core.NewDuplicateHandleError(h)
	}
	r.entries[h] = w
	r.logger.Debug("wrapper registered", "handle", h.String())
	return nil
}

// Lookup returns the wrapper for h, or false if none is registered.
func (r *Registry) Lookup(h core.Handle) (core.Wrapper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.entries[h]
	return w, ok
}

// Get is Lookup with a HandleNotFound error on miss.
func (r *Registry) Get(h core.Handle) (core.Wrapper, error) {
	w, ok := r.Lookup(h)
	if !ok {
		return nil, core.NewHandleNotFoundError(h)
	}
	return w, nil
}

// LookupAs returns the wrapper for h if it is registered and has type T.
func LookupAs[T core.Wrapper](r *Registry, h core.Handle) (T, bool) {
	var zero T
	w, ok := r.Lookup(h)
	if !ok {
		return zero, false
	}
	typed, ok := w.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Unregister removes the entry for h.
// Returns HandleNotFound if no entry exists; callers may ignore it.
func (r *Registry) Unregister(h core.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[h]; !ok {
		return core.NewHandleNotFoundError(h)
	}
	delete(r.entries, h)
	r.logger.Debug("wrapper unregistered", "handle", h.String())
	return nil
}

// UnregisterWrapper removes w's entry only if w is the wrapper currently
// mapped to its handle. A stale wrapper disposed after its handle was
// re-registered cannot remove the newer entry.
func (r *Registry) UnregisterWrapper(w core.Wrapper) error {
	h := w.Handle()

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[h]
	if !ok || current != w {
		return core.NewHandleNotFoundError(h)
	}
	delete(r.entries, h)
	r.logger.Debug("wrapper unregistered", "handle", h.String())
	return nil
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Handles returns every registered handle in ascending order.
func (r *Registry) Handles() []core.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Handle, 0, len(r.entries))
	for h := range r.entries {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// Reset drops every entry. Used at process teardown.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = make(map[core.Handle]core.Wrapper)
	r.logger.Debug("registry reset", "dropped", n)
}
