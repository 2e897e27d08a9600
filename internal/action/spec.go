package action

import "math"

// Kind tags an action node variant.
type Kind uint8

const (
	KindCallFunc Kind = iota + 1
	KindAtomic
	KindDelay
	KindSequence
	KindInterval
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindCallFunc:
		return "call_func"
	case KindAtomic:
		return "atomic"
	case KindDelay:
		return "delay"
	case KindSequence:
		return "sequence"
	case KindInterval:
		return "interval"
	default:
		return "unknown"
	}
}

// Spec describes an action tree before it is scheduled.
// Specs are values; scheduling the same Spec twice creates two independent trees.
type Spec struct {
	kind     Kind
	duration float64
	effect   func()
	progress func(float64)
	children []Spec
}

// Kind returns the variant of the spec's root.
func (s Spec) Kind() Kind {
	return s.kind
}

// Duration returns the nominal duration (zero for CallFunc and Sequence).
func (s Spec) Duration() float64 {
	return s.duration
}

// Children returns the children of a Sequence.
func (s Spec) Children() []Spec {
	return s.children
}

// Atomic runs fn once and completes immediately. d is kept as the nominal
// duration of the effect but no frame time is consumed.
func Atomic(d float64, fn func()) Spec {
	return Spec{kind: KindAtomic, duration: clampDuration(d), effect: fn}
}

// Delay completes once at least d seconds of frame time have accumulated.
func Delay(d float64) Spec {
	return Spec{kind: KindDelay, duration: clampDuration(d)}
}

// CallFunc runs fn and completes on the tick it becomes current.
func CallFunc(fn func()) Spec {
	return Spec{kind: KindCallFunc, effect: fn}
}

// Sequence runs children in order. An empty sequence completes on its first tick.
func Sequence(children ...Spec) Spec {
	return Spec{kind: KindSequence, children: children}
}

// Interval calls fn every tick with progress in [0,1], completing with a final
// call of 1 once d seconds have elapsed. A zero duration reports 1 on its first tick.
func Interval(d float64, fn func(progress float64)) Spec {
	return Spec{kind: KindInterval, duration: clampDuration(d), progress: fn}
}

// clampDuration maps negative and NaN durations to zero.
func clampDuration(d float64) float64 {
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}
