package bridge

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/framebridge/internal/action"
	"github.com/roach88/framebridge/internal/core"
	"github.com/roach88/framebridge/internal/handle"
)

// firstManagedHandle is where handles allocated on the managed side start.
// Native handles are addresses, so the low range never collides in practice.
const firstManagedHandle core.Handle = 0x1000

// CallbackTable holds the entry points native adapters call for lifecycle events.
type CallbackTable struct {
	Setup func(core.Handle) error
	Start func(core.Handle) error
	Stop  func(core.Handle) error
}

// Bridge routes native callbacks to managed applications.
type Bridge struct {
	registry *handle.Registry
	logger   *slog.Logger

	mu        sync.RWMutex
	current   *Application
	callbacks CallbackTable

	initOnce    sync.Once
	initialized atomic.Bool
	delayTarget atomic.Pointer[Application]
	nextHandle  atomic.Uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRegistry shares an existing registry instead of creating one.
func WithRegistry(r *handle.Registry) Option {
	return func(b *Bridge) {
		b.registry = r
	}
}

// WithLogger sets the logger for the bridge and its applications.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// New creates a bridge and its default callback table.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.registry == nil {
		b.registry = handle.NewRegistry(handle.WithLogger(b.logger))
	}
	b.nextHandle.Store(uint64(firstManagedHandle) - 1)
	b.callbacks = b.DefaultCallbacks()
	return b
}

// Registry returns the handle registry the bridge resolves through.
func (b *Bridge) Registry() *handle.Registry {
	return b.registry
}

// DefaultCallbacks returns the built-in table. Custom tables may wrap it.
func (b *Bridge) DefaultCallbacks() CallbackTable {
	return CallbackTable{
		Setup: b.setup,
		Start: b.start,
		Stop:  b.stop,
	}
}

// SetCustomCallbacks replaces the callback table. Nil entries fall back to
// the defaults. The last call wins.
func (b *Bridge) SetCustomCallbacks(t CallbackTable) {
	def := b.DefaultCallbacks()
	if t.Setup == nil {
		t.Setup = def.Setup
	}
	if t.Start == nil {
		t.Start = def.Start
	}
	if t.Stop == nil {
		t.Stop = def.Stop
	}

	b.mu.Lock()
	b.callbacks = t
	b.mu.Unlock()
	b.logger.Info("lifecycle callback table replaced")
}

// Callbacks returns the current callback table.
func (b *Bridge) Callbacks() CallbackTable {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.callbacks
}

// Setup is the native setup(handle) entry point.
func (b *Bridge) Setup(h core.Handle) error {
	return b.Callbacks().Setup(h)
}

// Start is the native start(handle) entry point.
func (b *Bridge) Start(h core.Handle) error {
	return b.Callbacks().Start(h)
}

// Stop is the native stop(handle) entry point.
func (b *Bridge) Stop(h core.Handle) error {
	return b.Callbacks().Stop(h)
}

// GlobalUpdate is the native per-frame entry point. It ticks the current application.
func (b *Bridge) GlobalUpdate(dt float64) error {
	app := b.Current()
	if app == nil {
		return core.NewLifecycleError(core.InvalidHandle, "global_update", "no current application", nil)
	}
	return app.GlobalUpdate(dt)
}

// SceneUpdate is the native per-frame scene entry point.
func (b *Bridge) SceneUpdate(dt float64, scene core.Handle) error {
	app := b.Current()
	if app == nil {
		return core.NewLifecycleError(core.InvalidHandle, "scene_update", "no current application", nil)
	}
	return app.SceneUpdate(dt, scene)
}

// Current returns the most recently constructed live application, or nil.
func (b *Bridge) Current() *Application {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Application resolves h to an application.
func (b *Bridge) Application(h core.Handle) (*Application, error) {
	app, ok := handle.LookupAs[*Application](b.registry, h)
	if !ok {
		return nil, core.NewHandleNotFoundError(h)
	}
	return app, nil
}

// Initialized reports whether one-time runtime initialization has run.
func (b *Bridge) Initialized() bool {
	return b.initialized.Load()
}

// Initialize performs one-time runtime initialization and installs app as
// the target of Bridge.Delay. The default start callback calls it before
// user Start hooks run; later calls only move the Delay target.
func (b *Bridge) Initialize(app *Application) {
	b.initOnce.Do(func() {
		b.initialized.Store(true)
		b.logger.Info("runtime initialized", "registry_entries", b.registry.Len())
	})
	b.delayTarget.Store(app)
}

// Delay schedules a delay on the started application without a handle.
// Frame thread only. Returns LifecycleOrderViolation before any application has started.
func (b *Bridge) Delay(d float64) (*action.Future, error) {
	app := b.delayTarget.Load()
	if app == nil {
		return nil, core.NewLifecycleError(core.InvalidHandle, "delay", "no started application", nil)
	}
	return app.Delay(d), nil
}

// Reset tears down process state: the registry, the current application and
// the Delay target. The callback table is kept.
func (b *Bridge) Reset() {
	b.mu.Lock()
	b.current = nil
	b.mu.Unlock()
	b.delayTarget.Store(nil)
	b.registry.Reset()
}

func (b *Bridge) allocHandle() core.Handle {
	return core.Handle(b.nextHandle.Add(1))
}

func (b *Bridge) setCurrent(app *Application) {
	b.mu.Lock()
	prev := b.current
	b.current = app
	b.mu.Unlock()

	if prev != nil && prev != app {
		b.logger.Debug("current application replaced",
			"previous", prev.Handle().String(),
			"handle", app.Handle().String())
	}
}

// clearCurrent drops app as current if it still is.
func (b *Bridge) clearCurrent(app *Application) {
	b.mu.Lock()
	if b.current == app {
		b.current = nil
	}
	b.mu.Unlock()
	b.delayTarget.CompareAndSwap(app, nil)
}

// resolve maps a lifecycle callback's handle to its application.
func (b *Bridge) resolve(h core.Handle, phase string) (*Application, error) {
	w, ok := b.registry.Lookup(h)
	if !ok {
		return nil, core.NewLifecycleError(h, phase, "handle not registered", core.NewHandleNotFoundError(h))
	}
	app, ok := w.(*Application)
	if !ok {
		return nil, core.NewLifecycleError(h, phase, "handle is not an application", nil)
	}
	return app, nil
}

func (b *Bridge) setup(h core.Handle) error {
	app, err := b.resolve(h, "setup")
	if err != nil {
		b.logger.Error("setup rejected", "handle", h.String(), "error", err)
		return err
	}
	return app.setup()
}

func (b *Bridge) start(h core.Handle) error {
	app, err := b.resolve(h, "start")
	if err != nil {
		b.logger.Error("start rejected", "handle", h.String(), "error", err)
		return err
	}
	return app.start()
}

func (b *Bridge) stop(h core.Handle) error {
	app, err := b.resolve(h, "stop")
	if err != nil {
		b.logger.Error("stop rejected", "handle", h.String(), "error", err)
		return err
	}
	return app.stop()
}
