// Package dispatch raises per-frame events in a fixed order.
//
// GlobalUpdate(dt) runs, in order:
//  1. GlobalUpdate subscribers, in subscription order
//  2. the action scheduler, advanced by dt
//  3. the application update hook
//  4. a drain of the global deferred queue
//
// SceneUpdate(dt, scene) runs its subscribers, the scene hook, and a drain of
// the scene queue. The two families are independent.
//
// Subscriber lists are copy-on-write. A round iterates the list as it was
// when the round began, so subscribing or unsubscribing from inside a
// callback takes effect on the next round.
package dispatch

import (
	"errors"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/roach88/framebridge/internal/action"
	"github.com/roach88/framebridge/internal/core"
	"github.com/roach88/framebridge/internal/syncctx"
)

// ErrReentrantDispatch is returned when a frame event is raised from inside
// a round of the same family on the same dispatcher.
var ErrReentrantDispatch = errors.New("dispatch: frame event raised during dispatch")

// EventKind names a frame event family.
type EventKind int

const (
	GlobalUpdateEvent EventKind = iota + 1
	SceneUpdateEvent
)

// String returns the event family name.
func (k EventKind) String() string {
	switch k {
	case GlobalUpdateEvent:
		return "global_update"
	case SceneUpdateEvent:
		return "scene_update"
	default:
		return "unknown"
	}
}

// GlobalFunc observes a global update tick.
type GlobalFunc func(dt float64)

// SceneFunc observes a scene update tick for the given scene.
type SceneFunc func(dt float64, scene core.Handle)

// Subscription is the owner's token for one subscriber.
type Subscription struct {
	d    *Dispatcher
	kind EventKind
	id   uint64
	once sync.Once
}

// Kind returns the event family the subscription belongs to.
func (s *Subscription) Kind() EventKind {
	return s.kind
}

// Unsubscribe removes the subscriber. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.d.remove(s.kind, s.id)
	})
}

type globalSub struct {
	id uint64
	fn GlobalFunc
}

type sceneSub struct {
	id uint64
	fn SceneFunc
}

// Dispatcher owns the subscriber lists of one application and drives its
// scheduler and queues.
type Dispatcher struct {
	mu     sync.Mutex
	global []globalSub
	scene  []sceneSub
	nextID uint64

	scheduler   *action.Scheduler
	globalQueue *syncctx.Queue
	sceneQueue  *syncctx.Queue

	onUpdate      GlobalFunc
	onSceneUpdate SceneFunc
	logger        *slog.Logger

	// Each family rejects only nesting within itself.
	globalDispatching bool
	sceneDispatching  bool
	frames            int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithUpdateHook sets the application hook run after the scheduler on every global tick.
func WithUpdateHook(fn GlobalFunc) Option {
	return func(d *Dispatcher) {
		d.onUpdate = fn
	}
}

// WithSceneUpdateHook sets the application hook run after scene subscribers.
func WithSceneUpdateHook(fn SceneFunc) Option {
	return func(d *Dispatcher) {
		d.onSceneUpdate = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// New creates a dispatcher driving scheduler and the two queues.
func New(scheduler *action.Scheduler, globalQueue, sceneQueue *syncctx.Queue, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		scheduler:   scheduler,
		globalQueue: globalQueue,
		sceneQueue:  sceneQueue,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SubscribeGlobalUpdate appends fn to the global subscriber list.
func (d *Dispatcher) SubscribeGlobalUpdate(fn GlobalFunc) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	next := make([]globalSub, len(d.global), len(d.global)+1)
	copy(next, d.global)
	d.global = append(next, globalSub{id: d.nextID, fn: fn})
	return &Subscription{d: d, kind: GlobalUpdateEvent, id: d.nextID}
}

// SubscribeSceneUpdate appends fn to the scene subscriber list.
func (d *Dispatcher) SubscribeSceneUpdate(fn SceneFunc) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	next := make([]sceneSub, len(d.scene), len(d.scene)+1)
	copy(next, d.scene)
	d.scene = append(next, sceneSub{id: d.nextID, fn: fn})
	return &Subscription{d: d, kind: SceneUpdateEvent, id: d.nextID}
}

func (d *Dispatcher) remove(kind EventKind, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch kind {
	case GlobalUpdateEvent:
		d.global = slices.DeleteFunc(slices.Clone(d.global), func(s globalSub) bool { return s.id == id })
	case SceneUpdateEvent:
		d.scene = slices.DeleteFunc(slices.Clone(d.scene), func(s sceneSub) bool { return s.id == id })
	}
}

// SubscriberCount returns the number of subscribers of kind.
func (d *Dispatcher) SubscriberCount(kind EventKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch kind {
	case GlobalUpdateEvent:
		return len(d.global)
	case SceneUpdateEvent:
		return len(d.scene)
	default:
		return 0
	}
}

// Frames returns the number of completed global ticks.
func (d *Dispatcher) Frames() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

// GlobalUpdate raises one global tick. An invalid dt is rejected with
// InvalidTimeStep before anything runs.
func (d *Dispatcher) GlobalUpdate(dt float64) error {
	if err := validateTimeStep(dt); err != nil {
		d.logger.Warn("global update skipped", "dt", dt, "error", err)
		return err
	}
	snapshot, err := d.begin(GlobalUpdateEvent)
	if err != nil {
		return err
	}
	defer d.end(GlobalUpdateEvent)

	for _, s := range snapshot.global {
		s.fn(dt)
	}
	// A scheduler failure does not strand the hook or posted work for the frame.
	advanceErr := d.scheduler.Advance(dt)
	if advanceErr != nil {
		d.logger.Error("scheduler advance failed", "dt", dt, "error", advanceErr)
	}
	if d.onUpdate != nil {
		d.onUpdate(dt)
	}
	n := d.globalQueue.Drain()
	if n > 0 {
		d.logger.Debug("global queue drained", "items", n)
	}
	return advanceErr
}

// SceneUpdate raises one scene tick for scene.
func (d *Dispatcher) SceneUpdate(dt float64, scene core.Handle) error {
	if err := validateTimeStep(dt); err != nil {
		d.logger.Warn("scene update skipped", "dt", dt, "scene", scene.String(), "error", err)
		return err
	}
	snapshot, err := d.begin(SceneUpdateEvent)
	if err != nil {
		return err
	}
	defer d.end(SceneUpdateEvent)

	for _, s := range snapshot.scene {
		s.fn(dt, scene)
	}
	if d.onSceneUpdate != nil {
		d.onSceneUpdate(dt, scene)
	}
	n := d.sceneQueue.Drain()
	if n > 0 {
		d.logger.Debug("scene queue drained", "items", n, "scene", scene.String())
	}
	return nil
}

type lists struct {
	global []globalSub
	scene  []sceneSub
}

func (d *Dispatcher) begin(kind EventKind) (lists, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	flag := d.flag(kind)
	if *flag {
		return lists{}, ErrReentrantDispatch
	}
	*flag = true
	return lists{global: d.global, scene: d.scene}, nil
}

func (d *Dispatcher) end(kind EventKind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	*d.flag(kind) = false
	if kind == GlobalUpdateEvent {
		d.frames++
	}
}

func (d *Dispatcher) flag(kind EventKind) *bool {
	if kind == SceneUpdateEvent {
		return &d.sceneDispatching
	}
	return &d.globalDispatching
}

func validateTimeStep(dt float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return core.NewInvalidTimeStepError(dt)
	}
	return nil
}
