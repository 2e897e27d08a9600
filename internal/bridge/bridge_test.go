package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framebridge/internal/action"
	"github.com/roach88/framebridge/internal/core"
)

type recordingHooks struct {
	BaseHooks
	calls    []string
	setupErr error
	onStart  func(*Application)
}

func (h *recordingHooks) Setup(app *Application) error {
	h.calls = append(h.calls, "setup")
	return h.setupErr
}

func (h *recordingHooks) Start(app *Application) error {
	h.calls = append(h.calls, "start")
	if h.onStart != nil {
		h.onStart(app)
	}
	return nil
}

func (h *recordingHooks) Stop(app *Application) error {
	h.calls = append(h.calls, "stop")
	return nil
}

func (h *recordingHooks) Update(app *Application, dt float64) {
	h.calls = append(h.calls, "update")
}

func (h *recordingHooks) SceneUpdate(app *Application, dt float64, scene core.Handle) {
	h.calls = append(h.calls, "scene_update")
}

func newTestBridge() *Bridge {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func newStartedApp(t *testing.T, b *Bridge, h core.Handle, hooks Hooks) *Application {
	t.Helper()
	app, err := NewApplication(b, hooks, WithHandle(h))
	require.NoError(t, err)
	require.NoError(t, b.Setup(h))
	require.NoError(t, b.Start(h))
	return app
}

func TestBridge_LifecycleHappyPath(t *testing.T) {
	b := newTestBridge()
	hooks := &recordingHooks{}
	app, err := NewApplication(b, hooks, WithHandle(0x10))
	require.NoError(t, err)
	assert.Equal(t, PhaseUninitialized, app.Phase())

	require.NoError(t, b.Setup(0x10))
	assert.Equal(t, PhaseSetUp, app.Phase())

	require.NoError(t, b.Start(0x10))
	assert.Equal(t, PhaseStarted, app.Phase())
	assert.True(t, b.Initialized())

	require.NoError(t, b.Stop(0x10))
	assert.Equal(t, PhaseStopped, app.Phase())

	assert.Equal(t, []string{"setup", "start", "stop"}, hooks.calls)
}

func TestBridge_OutOfOrderRejected(t *testing.T) {
	tests := []struct {
		name  string
		steps func(b *Bridge) error
		phase Phase
	}{
		{
			name:  "start before setup",
			steps: func(b *Bridge) error { return b.Start(0x10) },
			phase: PhaseUninitialized,
		},
		{
			name:  "stop before start",
			steps: func(b *Bridge) error { _ = b.Setup(0x10); return b.Stop(0x10) },
			phase: PhaseSetUp,
		},
		{
			name:  "setup twice",
			steps: func(b *Bridge) error { _ = b.Setup(0x10); return b.Setup(0x10) },
			phase: PhaseSetUp,
		},
		{
			name: "start after stop",
			steps: func(b *Bridge) error {
				_ = b.Setup(0x10)
				_ = b.Start(0x10)
				_ = b.Stop(0x10)
				return b.Start(0x10)
			},
			phase: PhaseStopped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBridge()
			app, err := NewApplication(b, nil, WithHandle(0x10))
			require.NoError(t, err)

			err = tt.steps(b)
			require.Error(t, err)
			assert.True(t, core.IsLifecycleOrderViolation(err))
			assert.True(t, core.IsFatal(err))
			assert.Equal(t, tt.phase, app.Phase(), "rejected call must not advance the phase")
		})
	}
}

func TestBridge_UnknownHandleRejected(t *testing.T) {
	b := newTestBridge()

	for name, call := range map[string]func(core.Handle) error{
		"setup": b.Setup,
		"start": b.Start,
		"stop":  b.Stop,
	} {
		t.Run(name, func(t *testing.T) {
			err := call(0xdead)
			require.Error(t, err)
			assert.True(t, core.IsLifecycleOrderViolation(err))
			assert.True(t, core.IsHandleNotFound(err), "cause is the registry miss")

			var be *core.BridgeError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, name, be.Phase)
			assert.Equal(t, core.Handle(0xdead), be.Handle)
		})
	}
}

func TestBridge_NonApplicationHandleRejected(t *testing.T) {
	b := newTestBridge()
	require.NoError(t, b.Registry().Register(&Subsystem{handle: 0x77, kind: "scene"}))

	err := b.Setup(0x77)
	assert.True(t, core.IsLifecycleOrderViolation(err))
	assert.False(t, core.IsHandleNotFound(err))
}

func TestBridge_HookErrorLeavesPhase(t *testing.T) {
	b := newTestBridge()
	hooks := &recordingHooks{setupErr: errors.New("missing asset")}
	app, err := NewApplication(b, hooks, WithHandle(0x10))
	require.NoError(t, err)

	err = b.Setup(0x10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing asset")
	assert.Equal(t, PhaseUninitialized, app.Phase())

	hooks.setupErr = nil
	require.NoError(t, b.Setup(0x10), "setup may be retried after a hook failure")
	assert.Equal(t, PhaseSetUp, app.Phase())
}

func TestBridge_InitializeRunsBeforeStartHook(t *testing.T) {
	b := newTestBridge()
	var initializedInHook bool
	var delayErr error
	hooks := &recordingHooks{onStart: func(app *Application) {
		initializedInHook = b.Initialized()
		_, delayErr = b.Delay(1)
	}}

	_, err := b.Delay(1)
	assert.True(t, core.IsLifecycleOrderViolation(err), "Delay has no target before start")

	newStartedApp(t, b, 0x10, hooks)
	assert.True(t, initializedInHook)
	assert.NoError(t, delayErr)
}

func TestBridge_DuplicateApplicationHandle(t *testing.T) {
	b := newTestBridge()
	first, err := NewApplication(b, nil, WithHandle(0x10))
	require.NoError(t, err)

	second, err := NewApplication(b, nil, WithHandle(0x10))
	require.Error(t, err)
	assert.Nil(t, second)
	assert.True(t, core.IsDuplicateHandle(err))
	assert.Same(t, first, b.Current(), "failed construction must not become current")

	got, err := b.Application(0x10)
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestBridge_CurrentIsLastWriterWins(t *testing.T) {
	b := newTestBridge()
	assert.Nil(t, b.Current())

	a1, err := NewApplication(b, nil)
	require.NoError(t, err)
	a2, err := NewApplication(b, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a1.Handle(), a2.Handle(), "managed handles are unique")
	assert.Same(t, a2, b.Current())

	require.NoError(t, a2.Dispose())
	assert.Nil(t, b.Current(), "disposed current is cleared, not rolled back")
}

func TestBridge_FrameTicksRequireStarted(t *testing.T) {
	b := newTestBridge()
	err := b.GlobalUpdate(0.016)
	assert.True(t, core.IsLifecycleOrderViolation(err), "no current application")

	_, err = NewApplication(b, nil, WithHandle(0x10))
	require.NoError(t, err)
	assert.True(t, core.IsLifecycleOrderViolation(b.GlobalUpdate(0.016)))
	assert.True(t, core.IsLifecycleOrderViolation(b.SceneUpdate(0.016, 1)))

	require.NoError(t, b.Setup(0x10))
	require.NoError(t, b.Start(0x10))
	assert.NoError(t, b.GlobalUpdate(0.016))
	assert.NoError(t, b.SceneUpdate(0.016, 1))

	require.NoError(t, b.Stop(0x10))
	assert.True(t, core.IsLifecycleOrderViolation(b.GlobalUpdate(0.016)))
}

func TestApplication_GlobalTickOrder(t *testing.T) {
	b := newTestBridge()
	hooks := &recordingHooks{}
	app := newStartedApp(t, b, 0x10, hooks)
	hooks.calls = nil

	app.SubscribeGlobalUpdate(func(dt float64) { hooks.calls = append(hooks.calls, "subscriber") })
	app.Run(action.CallFunc(func() { hooks.calls = append(hooks.calls, "action") }))
	require.NoError(t, app.Post(func() { hooks.calls = append(hooks.calls, "posted") }))
	require.NoError(t, app.PostScene(func() { hooks.calls = append(hooks.calls, "scene_posted") }))

	require.NoError(t, b.GlobalUpdate(0.1))
	assert.Equal(t, []string{"subscriber", "action", "update", "posted"}, hooks.calls)

	hooks.calls = nil
	require.NoError(t, b.SceneUpdate(0.1, 0x5))
	assert.Equal(t, []string{"scene_update", "scene_posted"}, hooks.calls)
}

func TestApplication_InvalidTimeStepIsRecoverable(t *testing.T) {
	b := newTestBridge()
	app := newStartedApp(t, b, 0x10, nil)

	err := b.GlobalUpdate(-1)
	assert.Equal(t, core.CodeInvalidTimeStep, core.CodeOf(err))
	assert.False(t, core.IsFatal(err))
	assert.Equal(t, PhaseStarted, app.Phase())
}

func TestApplication_PostAfterStop(t *testing.T) {
	b := newTestBridge()
	app := newStartedApp(t, b, 0x10, nil)
	require.NoError(t, b.Stop(0x10))

	err := app.Post(func() {})
	assert.Equal(t, core.CodeQueueClosed, core.CodeOf(err))
	assert.Equal(t, core.CodeQueueClosed, core.CodeOf(app.PostScene(func() {})))
}

func TestApplication_DelayAndCancel(t *testing.T) {
	b := newTestBridge()
	app := newStartedApp(t, b, 0x10, nil)

	f := app.Delay(0.5)
	fired := 0
	id := app.RunSequence(action.Delay(0.5), action.CallFunc(func() { fired++ }))

	require.NoError(t, b.GlobalUpdate(0.25))
	require.NoError(t, app.Cancel(id))
	require.NoError(t, b.GlobalUpdate(0.25))

	assert.True(t, f.Resolved())
	assert.Equal(t, 0, fired)
	assert.True(t, core.IsSchedulerNodeNotFound(app.Cancel(id)))
}

func TestApplication_DelayAsync(t *testing.T) {
	b := newTestBridge()
	app := newStartedApp(t, b, 0x10, nil)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- app.DelayAsync(ctx, 0.5)
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			assert.NoError(t, err)
			return
		case <-deadline:
			t.Fatal("DelayAsync never resolved")
		default:
			require.NoError(t, b.GlobalUpdate(0.25))
			time.Sleep(time.Millisecond)
		}
	}
}

func TestApplication_DelayAsyncCanceledAfterScheduling(t *testing.T) {
	b := newTestBridge()
	app := newStartedApp(t, b, 0x10, nil)

	for range 50 {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- app.DelayAsync(ctx, 10) }()
		require.Eventually(t, func() bool { return app.UpdateContext().Len() == 1 },
			time.Second, time.Millisecond)

		// The delay is scheduled and ctx ends within the same drain.
		require.NoError(t, app.Post(cancel))
		require.NoError(t, b.GlobalUpdate(0))
		assert.ErrorIs(t, <-done, context.Canceled)

		deadline := time.Now().Add(time.Second)
		for app.Scheduler().Len() > 0 && time.Now().Before(deadline) {
			require.NoError(t, b.GlobalUpdate(0))
			time.Sleep(time.Millisecond)
		}
		require.Equal(t, 0, app.Scheduler().Len(), "delay left behind after its context ended")
	}
}

func TestApplication_DelayAsyncContextCanceled(t *testing.T) {
	b := newTestBridge()
	app := newStartedApp(t, b, 0x10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, app.DelayAsync(ctx, 1), context.Canceled)

	require.NoError(t, b.GlobalUpdate(0))
	assert.Equal(t, 0, app.Scheduler().Len(), "a delay posted with a dead context is never scheduled")
}

func TestBridge_CustomCallbacks(t *testing.T) {
	b := newTestBridge()
	_, err := NewApplication(b, nil, WithHandle(0x10))
	require.NoError(t, err)

	def := b.DefaultCallbacks()
	var seen []string
	b.SetCustomCallbacks(CallbackTable{
		Setup: func(h core.Handle) error {
			seen = append(seen, "custom-setup")
			return def.Setup(h)
		},
	})

	require.NoError(t, b.Setup(0x10))
	require.NoError(t, b.Start(0x10), "nil entries fall back to the defaults")
	assert.Equal(t, []string{"custom-setup"}, seen)

	b.SetCustomCallbacks(CallbackTable{
		Stop: func(h core.Handle) error {
			seen = append(seen, "second-stop")
			return def.Stop(h)
		},
	})
	require.NoError(t, b.Callbacks().Stop(0x10))
	assert.Equal(t, []string{"custom-setup", "second-stop"}, seen, "last table wins")
}

func TestApplication_SubsystemCached(t *testing.T) {
	b := newTestBridge()
	resolves := 0
	resolver := SubsystemResolverFunc(func(kind string) (core.Handle, error) {
		resolves++
		switch kind {
		case "scene":
			return 0x200, nil
		default:
			return core.InvalidHandle, errors.New("unknown subsystem")
		}
	})
	app, err := NewApplication(b, nil, WithHandle(0x10), WithSubsystemResolver(resolver))
	require.NoError(t, err)

	s1, err := app.Subsystem("scene")
	require.NoError(t, err)
	s2, err := app.Subsystem("scene")
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, 1, resolves)
	assert.Equal(t, "scene", s1.Kind())
	assert.Same(t, app, s1.Application())

	w, ok := b.Registry().Lookup(0x200)
	require.True(t, ok)
	assert.Same(t, s1, w, "subsystem wrapper is registered under its native handle")

	_, err = app.Subsystem("audio")
	assert.Error(t, err)
}

func TestApplication_SubsystemHandleOwnedByOneApplication(t *testing.T) {
	b := newTestBridge()
	shared := WithSubsystemResolver(SubsystemResolverFunc(func(string) (core.Handle, error) { return 0x200, nil }))
	first, err := NewApplication(b, nil, WithHandle(0x10), shared)
	require.NoError(t, err)
	second, err := NewApplication(b, nil, WithHandle(0x11), shared)
	require.NoError(t, err)

	owned, err := first.Subsystem("scene")
	require.NoError(t, err)

	_, err = second.Subsystem("scene")
	assert.True(t, core.IsDuplicateHandle(err), "another application's wrapper is never shared")

	again, err := first.Subsystem("physics")
	require.NoError(t, err)
	assert.Same(t, owned, again, "same owner reuses its wrapper across kinds")

	require.NoError(t, first.Dispose())
	_, ok := b.Registry().Lookup(0x200)
	assert.False(t, ok)

	taken, err := second.Subsystem("scene")
	require.NoError(t, err)
	assert.Same(t, second, taken.Application())

	third, err := NewApplication(b, nil, WithHandle(0x12), shared)
	require.NoError(t, err)
	_, err = third.Subsystem("scene")
	assert.True(t, core.IsDuplicateHandle(err))

	w, ok := b.Registry().Lookup(0x200)
	require.True(t, ok)
	assert.Same(t, taken, w, "exactly one wrapper for the native handle")
}

func TestApplication_SubsystemWithoutResolver(t *testing.T) {
	b := newTestBridge()
	app, err := NewApplication(b, nil)
	require.NoError(t, err)

	_, err = app.Subsystem("scene")
	assert.Error(t, err)
}

func TestApplication_Dispose(t *testing.T) {
	b := newTestBridge()
	app, err := NewApplication(b, nil, WithHandle(0x10),
		WithSubsystemResolver(SubsystemResolverFunc(func(string) (core.Handle, error) { return 0x200, nil })))
	require.NoError(t, err)
	_, err = app.Subsystem("physics")
	require.NoError(t, err)
	require.Equal(t, 2, b.Registry().Len())

	require.NoError(t, app.Dispose())
	assert.Equal(t, 0, b.Registry().Len())
	assert.True(t, core.IsLifecycleOrderViolation(b.Setup(0x10)))
	assert.NoError(t, app.Dispose(), "second dispose is a no-op")

	again, err := NewApplication(b, nil, WithHandle(0x10))
	require.NoError(t, err, "handle is free after dispose")
	assert.Same(t, again, b.Current())
}

func TestBridge_Reset(t *testing.T) {
	b := newTestBridge()
	newStartedApp(t, b, 0x10, nil)

	b.Reset()
	assert.Nil(t, b.Current())
	assert.Equal(t, 0, b.Registry().Len())
	_, err := b.Delay(1)
	assert.Error(t, err)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "set_up", PhaseSetUp.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
