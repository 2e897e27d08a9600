package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/framebridge/internal/action"
	"github.com/roach88/framebridge/internal/core"
	"github.com/roach88/framebridge/internal/dispatch"
	"github.com/roach88/framebridge/internal/syncctx"
)

// Application is the managed wrapper of the native application object.
//
// It owns the per-application frame machinery: the action scheduler, the
// frame dispatcher, and two deferred queues (UpdateContext, drained on global
// ticks, and SceneUpdateContext, drained on scene ticks).
//
// Thread-safety: Post, PostScene, DelayAsync, Phase and Handle are safe from
// any goroutine. Everything else belongs to the frame thread.
type Application struct {
	bridge *Bridge
	handle core.Handle
	hooks  Hooks
	logger *slog.Logger

	mu       sync.Mutex
	phase    Phase
	disposed bool

	updateCtx  *syncctx.Queue
	sceneCtx   *syncctx.Queue
	scheduler  *action.Scheduler
	dispatcher *dispatch.Dispatcher

	resolver   SubsystemResolver
	subsystems map[string]*Subsystem
}

// AppOption configures an Application.
type AppOption func(*Application)

// WithHandle binds the application to a native handle. Without it the bridge
// allocates a managed handle.
func WithHandle(h core.Handle) AppOption {
	return func(a *Application) {
		a.handle = h
	}
}

// WithSubsystemResolver sets how subsystem kinds are resolved to native handles.
func WithSubsystemResolver(r SubsystemResolver) AppOption {
	return func(a *Application) {
		a.resolver = r
	}
}

// NewApplication constructs an application, registers it under its handle
// and makes it the bridge's current application.
// Returns DuplicateHandle if the handle already has a live wrapper; the
// current application is not changed in that case.
func NewApplication(b *Bridge, hooks Hooks, opts ...AppOption) (*Application, error) {
	if hooks == nil {
		hooks = BaseHooks{}
	}
	a := &Application{
		bridge:     b,
		hooks:      hooks,
		updateCtx:  syncctx.NewQueue(),
		sceneCtx:   syncctx.NewQueue(),
		scheduler:  action.NewScheduler(),
		subsystems: make(map[string]*Subsystem),
	}
	for _, opt := range opts {
		opt(a)
	}
	if !a.handle.Valid() {
		a.handle = b.allocHandle()
	}
	a.logger = b.logger.With("handle", a.handle.String())

	a.dispatcher = dispatch.New(a.scheduler, a.updateCtx, a.sceneCtx,
		dispatch.WithLogger(a.logger),
		dispatch.WithUpdateHook(func(dt float64) { a.hooks.Update(a, dt) }),
		dispatch.WithSceneUpdateHook(func(dt float64, scene core.Handle) { a.hooks.SceneUpdate(a, dt, scene) }),
	)

	if err := b.registry.Register(a); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	b.setCurrent(a)
	a.logger.Debug("application created")
	return a, nil
}

// Handle implements core.Wrapper.
func (a *Application) Handle() core.Handle {
	return a.handle
}

// Bridge returns the owning bridge.
func (a *Application) Bridge() *Bridge {
	return a.bridge
}

// Phase returns the current lifecycle phase.
func (a *Application) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Scheduler returns the application's action scheduler. Frame thread only.
func (a *Application) Scheduler() *action.Scheduler {
	return a.scheduler
}

// Dispatcher returns the application's frame dispatcher.
func (a *Application) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// UpdateContext returns the queue drained at the end of every global tick.
func (a *Application) UpdateContext() *syncctx.Queue {
	return a.updateCtx
}

// SceneUpdateContext returns the queue drained at the end of every scene tick.
func (a *Application) SceneUpdateContext() *syncctx.Queue {
	return a.sceneCtx
}

// SubscribeGlobalUpdate adds a global tick subscriber.
func (a *Application) SubscribeGlobalUpdate(fn dispatch.GlobalFunc) *dispatch.Subscription {
	return a.dispatcher.SubscribeGlobalUpdate(fn)
}

// SubscribeSceneUpdate adds a scene tick subscriber.
func (a *Application) SubscribeSceneUpdate(fn dispatch.SceneFunc) *dispatch.Subscription {
	return a.dispatcher.SubscribeSceneUpdate(fn)
}

// Post defers fn to the end of the next global tick. Safe from any goroutine.
// Returns QueueClosed once the application has stopped.
func (a *Application) Post(fn func()) error {
	if !a.updateCtx.Enqueue(fn) {
		return a.queueClosed("post")
	}
	return nil
}

// PostScene defers fn to the end of the next scene tick. Safe from any goroutine.
func (a *Application) PostScene(fn func()) error {
	if !a.sceneCtx.Enqueue(fn) {
		return a.queueClosed("post_scene")
	}
	return nil
}

// Run schedules spec on the application's scheduler. Frame thread only.
func (a *Application) Run(spec action.Spec) action.ID {
	return a.scheduler.Run(spec)
}

// RunSequence schedules Sequence(specs...). Frame thread only.
func (a *Application) RunSequence(specs ...action.Spec) action.ID {
	return a.scheduler.RunSequence(specs...)
}

// Delay returns a future resolved after d seconds of frame time. Frame thread only.
func (a *Application) Delay(d float64) *action.Future {
	return a.scheduler.Delay(d)
}

// Cancel cancels a scheduled action. Frame thread only.
func (a *Application) Cancel(id action.ID) error {
	return a.scheduler.Cancel(id)
}

// DelayAsync waits, from any goroutine other than the frame thread, until d
// seconds of frame time have passed. The delay is scheduled at the end of the
// next global tick and counts frame time from the tick after that.
// If ctx ends first, the delay is cancelled on the frame thread.
func (a *Application) DelayAsync(ctx context.Context, d float64) error {
	scheduled := make(chan *action.Future, 1)
	err := a.Post(func() {
		if ctx.Err() != nil {
			close(scheduled)
			return
		}
		f := a.scheduler.Delay(d)
		// Once scheduled, the end of ctx always reaches the frame thread,
		// whichever way the waiting goroutine's select went.
		stop := context.AfterFunc(ctx, func() {
			_ = a.Post(func() { _ = a.scheduler.Cancel(f.ID()) })
		})
		f.Then(func() { stop() })
		scheduled <- f
	})
	if err != nil {
		return err
	}

	var f *action.Future
	select {
	case <-ctx.Done():
		return ctx.Err()
	case f = <-scheduled:
	}
	if f == nil {
		return ctx.Err()
	}
	return f.Wait(ctx)
}

// GlobalUpdate runs one global tick. Requires PhaseStarted.
func (a *Application) GlobalUpdate(dt float64) error {
	if p := a.Phase(); p != PhaseStarted {
		return core.NewLifecycleError(a.handle, "global_update",
			fmt.Sprintf("frame tick requires phase %s, application is %s", PhaseStarted, p), nil)
	}
	return a.dispatcher.GlobalUpdate(dt)
}

// SceneUpdate runs one scene tick. Requires PhaseStarted.
func (a *Application) SceneUpdate(dt float64, scene core.Handle) error {
	if p := a.Phase(); p != PhaseStarted {
		return core.NewLifecycleError(a.handle, "scene_update",
			fmt.Sprintf("frame tick requires phase %s, application is %s", PhaseStarted, p), nil)
	}
	return a.dispatcher.SceneUpdate(dt, scene)
}

// Dispose unregisters the application and its subsystem wrappers and closes
// its queues. Disposing twice is a no-op.
func (a *Application) Dispose() error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil
	}
	a.disposed = true
	subs := a.subsystems
	a.subsystems = make(map[string]*Subsystem)
	a.mu.Unlock()

	for _, s := range subs {
		_ = a.bridge.registry.UnregisterWrapper(s)
	}
	a.updateCtx.Close()
	a.sceneCtx.Close()
	a.bridge.clearCurrent(a)

	if err := a.bridge.registry.UnregisterWrapper(a); err != nil {
		return fmt.Errorf("dispose application: %w", err)
	}
	a.logger.Debug("application disposed")
	return nil
}

func (a *Application) setup() error {
	if err := a.expect("setup", PhaseUninitialized); err != nil {
		return err
	}
	if err := a.hooks.Setup(a); err != nil {
		return fmt.Errorf("setup hook: %w", err)
	}
	a.setPhase(PhaseSetUp)
	return nil
}

func (a *Application) start() error {
	if err := a.expect("start", PhaseSetUp); err != nil {
		return err
	}
	a.bridge.Initialize(a)
	if err := a.hooks.Start(a); err != nil {
		return fmt.Errorf("start hook: %w", err)
	}
	a.setPhase(PhaseStarted)
	return nil
}

func (a *Application) stop() error {
	if err := a.expect("stop", PhaseStarted); err != nil {
		return err
	}
	if err := a.hooks.Stop(a); err != nil {
		return fmt.Errorf("stop hook: %w", err)
	}
	a.setPhase(PhaseStopped)
	a.updateCtx.Close()
	a.sceneCtx.Close()
	return nil
}

func (a *Application) expect(phase string, want Phase) error {
	got := a.Phase()
	if got == want {
		return nil
	}
	err := core.NewLifecycleError(a.handle, phase,
		fmt.Sprintf("%s requires phase %s, application is %s", phase, want, got), nil)
	a.logger.Error("lifecycle order violation", "phase", phase, "current", got.String())
	return err
}

func (a *Application) setPhase(p Phase) {
	a.mu.Lock()
	prev := a.phase
	a.phase = p
	a.mu.Unlock()
	a.logger.Info("lifecycle transition", "from", prev.String(), "to", p.String())
}

func (a *Application) queueClosed(op string) error {
	return &core.BridgeError{
		Code:    core.CodeQueueClosed,
		Message: op + " after the application stopped",
		Handle:  a.handle,
	}
}
