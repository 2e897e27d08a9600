package bridge

// Phase is an application's lifecycle state.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseSetUp
	PhaseStarted
	PhaseStopped
)

// String returns the phase name used in logs and traces.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseSetUp:
		return "set_up"
	case PhaseStarted:
		return "started"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
