package bridge

import (
	"fmt"

	"github.com/roach88/framebridge/internal/core"
	"github.com/roach88/framebridge/internal/handle"
)

// SubsystemResolver maps a subsystem kind ("scene", "physics", "audio", ...)
// to the native handle of that subsystem.
type SubsystemResolver interface {
	ResolveSubsystem(kind string) (core.Handle, error)
}

// SubsystemResolverFunc adapts a function to SubsystemResolver.
type SubsystemResolverFunc func(kind string) (core.Handle, error)

// ResolveSubsystem calls f.
func (f SubsystemResolverFunc) ResolveSubsystem(kind string) (core.Handle, error) {
	return f(kind)
}

// Subsystem wraps a native engine subsystem owned by an application.
type Subsystem struct {
	handle core.Handle
	kind   string
	app    *Application
}

// Handle implements core.Wrapper.
func (s *Subsystem) Handle() core.Handle {
	return s.handle
}

// Kind returns the subsystem kind it was resolved from.
func (s *Subsystem) Kind() string {
	return s.kind
}

// Application returns the owning application.
func (s *Subsystem) Application() *Application {
	return s.app
}

// Subsystem returns the wrapper for the subsystem of the given kind,
// creating and registering it on first use. A native handle that already has
// a wrapper is reused only when that wrapper is a Subsystem of this
// application; a handle owned by anything else fails with DuplicateHandle.
func (a *Application) Subsystem(kind string) (*Subsystem, error) {
	a.mu.Lock()
	if s, ok := a.subsystems[kind]; ok {
		a.mu.Unlock()
		return s, nil
	}
	disposed := a.disposed
	a.mu.Unlock()

	if disposed {
		return nil, core.NewHandleNotFoundError(a.handle)
	}
	if a.resolver == nil {
		return nil, fmt.Errorf("subsystem %q: no resolver configured", kind)
	}

	h, err := a.resolver.ResolveSubsystem(kind)
	if err != nil {
		return nil, fmt.Errorf("subsystem %q: %w", kind, err)
	}
	if !h.Valid() {
		return nil, fmt.Errorf("subsystem %q: %w", kind, core.NewHandleNotFoundError(h))
	}

	s, ok := handle.LookupAs[*Subsystem](a.bridge.registry, h)
	if !ok || s.app != a {
		s = &Subsystem{handle: h, kind: kind, app: a}
		if err := a.bridge.registry.Register(s); err != nil {
			return nil, fmt.Errorf("subsystem %q: %w", kind, err)
		}
	}

	a.mu.Lock()
	a.subsystems[kind] = s
	a.mu.Unlock()
	return s, nil
}
