package action

import (
	"errors"
	"math"
	"slices"

	"github.com/roach88/framebridge/internal/core"
)

// ID identifies a scheduled root action.
type ID uint64

// ErrReentrantAdvance is returned when an effect calls Advance on its own scheduler.
var ErrReentrantAdvance = errors.New("scheduler: Advance called from inside Advance")

const noParent int32 = -1

// node is one arena slot. Fields not used by a variant stay zero.
type node struct {
	kind     Kind
	duration float64
	elapsed  float64
	effect   func()
	progress func(float64)

	parent   int32
	children []int32
	current  int

	done     bool
	canceled bool
}

// Scheduler owns the active set of action trees and advances them with frame time.
type Scheduler struct {
	nodes []node
	free  []int32

	// roots keeps registration order and is compacted after each Advance.
	roots   []ID
	byID    map[ID]int32
	futures map[ID]*Future
	nextID  ID

	advancing   bool
	pendingFree []int32
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		byID:    make(map[ID]int32),
		futures: make(map[ID]*Future),
		nextID:  1,
	}
}

// Run schedules spec as a new root and returns its ID.
// Nothing runs until the next Advance.
func (s *Scheduler) Run(spec Spec) ID {
	id := s.nextID
	s.nextID++

	idx := s.build(spec, noParent)
	s.byID[id] = idx
	s.roots = append(s.roots, id)
	return id
}

// RunSequence schedules Sequence(specs...) and returns its ID.
func (s *Scheduler) RunSequence(specs ...Spec) ID {
	return s.Run(Sequence(specs...))
}

// Start schedules spec and returns a future resolved when the whole tree completes.
func (s *Scheduler) Start(spec Spec) *Future {
	f := newFuture()
	f.id = s.Run(spec)
	s.futures[f.id] = f
	return f
}

// Delay schedules Sequence(Delay(d), CallFunc(resolve)) and returns the
// future that the trailing CallFunc resolves.
func (s *Scheduler) Delay(d float64) *Future {
	f := newFuture()
	f.id = s.Run(Sequence(Delay(d), CallFunc(func() { f.resolve() })))
	s.futures[f.id] = f
	return f
}

// Cancel removes an active root before it completes. None of its remaining
// effects run, and its future (if any) reports ErrCanceled.
// Returns SchedulerNodeNotFound if id is not active.
func (s *Scheduler) Cancel(id ID) error {
	idx, ok := s.byID[id]
	if !ok {
		return core.NewNodeNotFoundError(uint64(id))
	}
	delete(s.byID, id)
	s.nodes[idx].canceled = true

	if f, ok := s.futures[id]; ok {
		delete(s.futures, id)
		f.cancel()
	}

	// A root may cancel itself from inside one of its own effects; its slots
	// must stay valid until the walk unwinds.
	if s.advancing {
		s.pendingFree = append(s.pendingFree, idx)
	} else {
		s.release(idx)
		s.compact()
	}
	return nil
}

// Active reports whether id is scheduled and not yet complete.
func (s *Scheduler) Active(id ID) bool {
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of active roots.
func (s *Scheduler) Len() int {
	return len(s.byID)
}

// Advance moves every root that was active at entry forward by dt seconds,
// in registration order. Roots that complete are removed before Advance returns.
func (s *Scheduler) Advance(dt float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return core.NewInvalidTimeStepError(dt)
	}
	if s.advancing {
		return ErrReentrantAdvance
	}
	s.advancing = true

	snapshot := slices.Clone(s.roots)
	for _, id := range snapshot {
		idx, ok := s.byID[id]
		if !ok {
			continue
		}
		s.step(idx, dt)
		if s.nodes[idx].done && !s.nodes[idx].canceled {
			s.finish(id, idx)
		}
	}

	s.advancing = false
	for _, idx := range s.pendingFree {
		s.release(idx)
	}
	s.pendingFree = s.pendingFree[:0]
	s.compact()
	return nil
}

// step advances node idx by dt and returns the time it did not consume.
// Effects may grow the arena, so no node pointer is held across a call out.
func (s *Scheduler) step(idx int32, dt float64) float64 {
	switch s.nodes[idx].kind {
	case KindCallFunc, KindAtomic:
		s.nodes[idx].done = true
		if fn := s.nodes[idx].effect; fn != nil {
			fn()
		}
		return dt

	case KindDelay:
		n := &s.nodes[idx]
		n.elapsed += dt
		if n.elapsed < n.duration {
			return 0
		}
		over := n.elapsed - n.duration
		n.elapsed = n.duration
		n.done = true
		return over

	case KindInterval:
		n := &s.nodes[idx]
		n.elapsed += dt
		over := 0.0
		p := 1.0
		if n.elapsed >= n.duration {
			over = n.elapsed - n.duration
			n.elapsed = n.duration
			n.done = true
		} else {
			p = n.elapsed / n.duration
		}
		if fn := n.progress; fn != nil {
			fn(p)
		}
		return over

	case KindSequence:
		remaining := dt
		for s.nodes[idx].current < len(s.nodes[idx].children) {
			if s.canceled(idx) {
				return 0
			}
			child := s.nodes[idx].children[s.nodes[idx].current]
			remaining = s.step(child, remaining)
			if !s.nodes[child].done {
				return 0
			}
			s.nodes[idx].current++
		}
		if s.canceled(idx) {
			return 0
		}
		s.nodes[idx].done = true
		return remaining
	}

	s.nodes[idx].done = true
	return dt
}

// canceled reports whether the root above idx has been cancelled.
func (s *Scheduler) canceled(idx int32) bool {
	for {
		if s.nodes[idx].canceled {
			return true
		}
		p := s.nodes[idx].parent
		if p == noParent {
			return false
		}
		idx = p
	}
}

// finish removes a completed root and resolves its future.
func (s *Scheduler) finish(id ID, idx int32) {
	delete(s.byID, id)
	if f, ok := s.futures[id]; ok {
		delete(s.futures, id)
		f.resolve()
	}
	s.release(idx)
}

// build allocates the tree for spec under parent and returns its root index.
func (s *Scheduler) build(spec Spec, parent int32) int32 {
	idx := s.alloc()
	s.nodes[idx] = node{
		kind:     spec.kind,
		duration: spec.duration,
		effect:   spec.effect,
		progress: spec.progress,
		parent:   parent,
	}
	if spec.kind != KindSequence {
		return idx
	}

	children := make([]int32, 0, len(spec.children))
	for _, c := range spec.children {
		children = append(children, s.build(c, idx))
	}
	s.nodes[idx].children = children
	return idx
}

func (s *Scheduler) alloc() int32 {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		return idx
	}
	s.nodes = append(s.nodes, node{})
	return int32(len(s.nodes) - 1)
}

// release returns idx and its descendants to the free list.
func (s *Scheduler) release(idx int32) {
	for _, c := range s.nodes[idx].children {
		s.release(c)
	}
	s.nodes[idx] = node{}
	s.free = append(s.free, idx)
}

// compact drops finished and cancelled roots from the ordered root list.
func (s *Scheduler) compact() {
	s.roots = slices.DeleteFunc(s.roots, func(id ID) bool {
		_, ok := s.byID[id]
		return !ok
	})
}
