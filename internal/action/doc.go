// Package action implements the time-stepped action scheduler.
//
// Actions are trees of nodes built from four variants plus a timed
// interpolation variant:
//
//	Atomic(d, fn)     runs fn once and completes on the tick it becomes current
//	Delay(d)          accumulates frame time, completes when elapsed >= d
//	CallFunc(fn)      runs fn and completes on the tick it becomes current
//	Sequence(a, b...) runs children strictly in order
//	Interval(d, fn)   reports progress in [0,1] every tick until elapsed >= d
//
// Nodes live in an arena and refer to each other by index. A single driver,
// Advance, walks every active root. Time left over when a child completes
// mid-tick flows to the next sibling, so a Sequence of delays tracks the
// cumulative time exactly regardless of how frames are sliced.
//
// THREADING:
// A Scheduler belongs to the frame thread. Advance, Run, Delay and Cancel
// must only be called there. Other goroutines observe completion through
// Future.Done or Future.Wait, and schedule work by posting to the frame
// thread's deferred queue.
//
// Nodes started while Advance is running (from inside an effect) join the
// active set on the next Advance.
package action
