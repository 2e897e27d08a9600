package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/roach88/framebridge/internal/action"
	"github.com/roach88/framebridge/internal/bridge"
	"github.com/roach88/framebridge/internal/core"
	"github.com/roach88/framebridge/internal/dispatch"
	"github.com/roach88/framebridge/internal/journal"
)

// firstSubsystemHandle is one below the first handle the scripted
// subsystem resolver hands out.
const firstSubsystemHandle core.Handle = 0x2000

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	journal *journal.Journal
	logger  *slog.Logger
}

// WithJournal records every step of the run to j under a new session.
func WithJournal(j *journal.Journal) Option {
	return func(c *runConfig) {
		c.journal = j
	}
}

// WithLogger sets the logger for the run and the bridge under test.
// Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes s against a fresh bridge and evaluates its assertions.
// A failing step or assertion is reported in Result; the returned error is
// reserved for journal failures.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := newRunner(cfg.logger)
	res := &Result{
		Phases: make(map[core.Handle]string),
	}

	if cfg.journal != nil {
		sess, err := beginSession(ctx, cfg.journal, s, r.clock.Current())
		if err != nil {
			return nil, err
		}
		res.SessionID = sess.ID
	}

	for i, step := range s.Steps {
		seq := r.emit(EventCall, step.Call, callDetail(step))
		err := r.exec(step)
		outcome := outcomeOf(err)
		if outcome != OutcomeOK {
			r.emit(EventError, step.Call, outcome)
		}
		cfg.logger.Debug("step executed", "index", i+1, "call", step.Call, "outcome", outcome)

		res.Outcomes = append(res.Outcomes, outcome)
		res.StepSeqs = append(res.StepSeqs, seq)

		want := step.Expect
		if want == "" {
			want = OutcomeOK
		}
		if outcome != want {
			msg := fmt.Sprintf("step %d (%s): expected %s, got %s", i+1, step.Call, want, outcome)
			if err != nil {
				msg += ": " + err.Error()
			}
			res.Errors = append(res.Errors, msg)
		}

		if cfg.journal != nil {
			if _, err := cfg.journal.AppendStep(ctx, res.SessionID, seq, step.Call, step.Payload(), outcome); err != nil {
				return nil, fmt.Errorf("journal step %d: %w", i+1, err)
			}
		}
	}

	for h, app := range r.apps {
		res.Phases[h] = app.Phase().String()
	}
	res.Trace = r.trace
	res.Errors = append(res.Errors, checkAssertions(s.Assertions, res)...)
	res.Pass = len(res.Errors) == 0
	return res, nil
}

func beginSession(ctx context.Context, j *journal.Journal, s *Scenario, seq int64) (journal.Session, error) {
	if s.Session != "" {
		return j.BeginSessionWithID(ctx, s.Session, s.Name, seq)
	}
	return j.BeginSession(ctx, s.Name, seq)
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return string(core.CodeOf(err))
}

// callDetail is the primary argument of a step, shown on its call event.
func callDetail(step Step) string {
	switch {
	case step.Call == CallGlobalUpdate || step.Call == CallSceneUpdate:
		return formatFloat(step.timeStep())
	case step.Handle != 0:
		return core.Handle(step.Handle).String()
	case step.Label != "":
		return step.Label
	default:
		return step.Target
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// scheduled is a labelled future and the application whose scheduler owns it.
type scheduled struct {
	future *action.Future
	app    *bridge.Application
}

type runner struct {
	bridge *bridge.Bridge
	clock  *core.Clock
	trace  []TraceEvent

	apps          map[core.Handle]*bridge.Application
	subs          map[string]*dispatch.Subscription
	actions       map[string]scheduled
	nextSubsystem core.Handle
}

func newRunner(logger *slog.Logger) *runner {
	return &runner{
		bridge:        bridge.New(bridge.WithLogger(logger)),
		clock:         core.NewClock(),
		apps:          make(map[core.Handle]*bridge.Application),
		subs:          make(map[string]*dispatch.Subscription),
		actions:       make(map[string]scheduled),
		nextSubsystem: firstSubsystemHandle,
	}
}

// emit appends an event and returns its seq. Frame thread only.
func (r *runner) emit(kind, label, detail string) int64 {
	seq := r.clock.Next()
	r.trace = append(r.trace, TraceEvent{Seq: seq, Kind: kind, Label: label, Detail: detail})
	return seq
}

func (r *runner) exec(step Step) error {
	h := core.Handle(step.Handle)

	switch step.Call {
	case CallCreateApp:
		opts := []bridge.AppOption{
			bridge.WithSubsystemResolver(bridge.SubsystemResolverFunc(r.resolveSubsystem)),
		}
		if h.Valid() {
			opts = append(opts, bridge.WithHandle(h))
		}
		app, err := bridge.NewApplication(r.bridge, &traceHooks{r: r}, opts...)
		if err != nil {
			return err
		}
		r.apps[app.Handle()] = app
		return nil

	case CallRegister:
		return r.bridge.Registry().Register(nativeObject(h))

	case CallUnregister:
		return r.bridge.Registry().Unregister(h)

	case CallLookup:
		w, err := r.bridge.Registry().Get(h)
		if err != nil {
			return err
		}
		r.emit(EventFound, wrapperKind(w), h.String())
		return nil

	case CallSetup:
		return r.bridge.Setup(h)
	case CallStart:
		return r.bridge.Start(h)
	case CallStop:
		return r.bridge.Stop(h)

	case CallGlobalUpdate:
		return r.bridge.GlobalUpdate(step.timeStep())
	case CallSceneUpdate:
		return r.bridge.SceneUpdate(step.timeStep(), core.Handle(step.Scene))

	case CallSetCallbacks:
		def := r.bridge.DefaultCallbacks()
		r.bridge.SetCustomCallbacks(bridge.CallbackTable{
			Setup: r.traced(CallSetup, def.Setup),
			Start: r.traced(CallStart, def.Start),
			Stop:  r.traced(CallStop, def.Stop),
		})
		return nil

	case CallStaticDelay:
		f, err := r.bridge.Delay(step.Seconds)
		if err != nil {
			return err
		}
		r.watch(step.Label, step.Then, f, nil)
		return nil

	case CallUnsubscribe:
		sub, ok := r.subs[step.Target]
		if !ok {
			return fmt.Errorf("unknown subscription %q", step.Target)
		}
		sub.Unsubscribe()
		delete(r.subs, step.Target)
		return nil
	}

	app, err := r.app(step)
	if err != nil {
		return err
	}
	return r.execApp(app, step)
}

// execApp runs calls that act on one application.
func (r *runner) execApp(app *bridge.Application, step Step) error {
	label := step.Label

	switch step.Call {
	case CallDispose:
		return app.Dispose()

	case CallSubsystem:
		s, err := app.Subsystem(label)
		if err != nil {
			return err
		}
		r.emit(EventFound, label, s.Handle().String())
		return nil

	case CallSubscribeGlobal:
		r.subs[label] = app.SubscribeGlobalUpdate(func(dt float64) {
			r.emit(EventSubscriber, label, formatFloat(dt))
		})
		return nil

	case CallSubscribeScene:
		r.subs[label] = app.SubscribeSceneUpdate(func(_ float64, scene core.Handle) {
			r.emit(EventSubscriber, label, scene.String())
		})
		return nil

	case CallPost:
		return app.Post(r.posted(label))

	case CallPostScene:
		return app.PostScene(r.posted(label))

	case CallPostAsync:
		var wg sync.WaitGroup
		var err error
		wg.Go(func() {
			err = app.Post(r.posted(label))
		})
		wg.Wait()
		return err

	case CallDelay:
		r.watch(label, step.Then, app.Delay(step.Seconds), app)
		return nil

	case CallRunSequence:
		children := make([]action.Spec, 0, len(step.Nodes))
		for _, n := range step.Nodes {
			children = append(children, r.buildSpec(n))
		}
		f := app.Scheduler().Start(action.Sequence(children...))
		r.actions[label] = scheduled{future: f, app: app}
		f.Then(func() {
			r.emit(EventCompleted, label, "")
		})
		return nil

	case CallCancel:
		s, ok := r.actions[step.Target]
		if !ok {
			return fmt.Errorf("unknown action %q", step.Target)
		}
		owner := s.app
		if owner == nil {
			owner = app
		}
		return owner.Cancel(s.future.ID())
	}

	return fmt.Errorf("unknown call %q", step.Call)
}

// app returns the application a step addresses: the one under its handle,
// or the current application.
func (r *runner) app(step Step) (*bridge.Application, error) {
	if step.Handle != 0 {
		return r.bridge.Application(core.Handle(step.Handle))
	}
	if app := r.bridge.Current(); app != nil {
		return app, nil
	}
	return nil, core.NewLifecycleError(core.InvalidHandle, step.Call, "no current application", nil)
}

// watch labels f and traces its resolution. If then is set, the continuation
// also posts a work item labelled then to the current application.
// owner is nil for futures scheduled through the bridge.
func (r *runner) watch(label, then string, f *action.Future, owner *bridge.Application) {
	r.actions[label] = scheduled{future: f, app: owner}
	f.Then(func() {
		r.emit(EventResolved, label, "")
		if then == "" {
			return
		}
		if app := r.bridge.Current(); app != nil {
			_ = app.Post(r.posted(then))
		}
	})
}

func (r *runner) posted(label string) func() {
	return func() {
		r.emit(EventPosted, label, "")
	}
}

func (r *runner) fired(label string) func() {
	return func() {
		r.emit(EventFired, label, "")
	}
}

func (r *runner) buildSpec(n Node) action.Spec {
	switch n.Kind {
	case NodeDelay:
		return action.Delay(n.Seconds)
	case NodeCall:
		return action.CallFunc(r.fired(n.Label))
	case NodeAtomic:
		return action.Atomic(n.Seconds, r.fired(n.Label))
	case NodeInterval:
		label := n.Label
		return action.Interval(n.Seconds, func(p float64) {
			r.emit(EventProgress, label, formatFloat(p))
		})
	}

	children := make([]action.Spec, 0, len(n.Nodes))
	for _, c := range n.Nodes {
		children = append(children, r.buildSpec(c))
	}
	return action.Sequence(children...)
}

func (r *runner) traced(name string, next func(core.Handle) error) func(core.Handle) error {
	return func(h core.Handle) error {
		r.emit(EventCallback, name, h.String())
		return next(h)
	}
}

// resolveSubsystem hands out sequential native handles, one per kind request.
func (r *runner) resolveSubsystem(string) (core.Handle, error) {
	r.nextSubsystem++
	return r.nextSubsystem, nil
}

// traceHooks records lifecycle hooks on the trace.
type traceHooks struct {
	bridge.BaseHooks
	r *runner
}

func (t *traceHooks) Setup(app *bridge.Application) error {
	t.r.emit(EventHook, CallSetup, app.Handle().String())
	return nil
}

func (t *traceHooks) Start(app *bridge.Application) error {
	t.r.emit(EventHook, CallStart, app.Handle().String())
	return nil
}

func (t *traceHooks) Stop(app *bridge.Application) error {
	t.r.emit(EventHook, CallStop, app.Handle().String())
	return nil
}

// nativeObject is a bare native object registered without a managed wrapper type.
type nativeObject core.Handle

func (o nativeObject) Handle() core.Handle {
	return core.Handle(o)
}

func wrapperKind(w core.Wrapper) string {
	switch w.(type) {
	case *bridge.Application:
		return "application"
	case *bridge.Subsystem:
		return "subsystem"
	default:
		return "object"
	}
}
