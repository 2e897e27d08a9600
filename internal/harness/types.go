package harness

import "github.com/roach88/framebridge/internal/core"

// Trace event kinds.
const (
	EventCall       = "call"
	EventError      = "error"
	EventHook       = "hook"
	EventCallback   = "callback"
	EventSubscriber = "subscriber"
	EventPosted     = "posted"
	EventFired      = "fired"
	EventProgress   = "progress"
	EventResolved   = "resolved"
	EventCompleted  = "completed"
	EventFound      = "found"
)

// TraceEvent is one observable thing that happened during a run.
// Seq comes from a logical clock, so traces are identical across runs.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every step matched its expected outcome and every
	// assertion held.
	Pass bool

	// Trace is every event in emission order.
	Trace []TraceEvent

	// Outcomes holds "ok" or an error code for each step, in step order.
	Outcomes []string

	// StepSeqs holds the seq of each step's call event.
	StepSeqs []int64

	// Phases is the final lifecycle phase of every application created.
	Phases map[core.Handle]string

	// Errors lists outcome mismatches and failed assertions.
	Errors []string

	// SessionID is the journal session the run was recorded under, if any.
	SessionID string
}
