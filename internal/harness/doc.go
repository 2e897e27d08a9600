// Package harness runs scripted scenarios against a fresh bridge and checks
// the resulting trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: delay_resolves_on_fourth_tick
//	description: "Delay(1.0) under 0.3s ticks"
//	session: optional-fixed-session-id
//	steps:
//	  - call: create_app
//	    handle: 16
//	  - call: setup
//	    handle: 16
//	  - call: start
//	    handle: 16
//	  - call: delay
//	    seconds: 1.0
//	    label: timer
//	  - call: global_update
//	    time_step: 0.3
//	assertions:
//	  - type: trace_contains
//	    kind: resolved
//	    label: timer
//
// Native calls (setup, start, stop, global_update, scene_update) go through
// the bridge's callback table and frame entry points exactly as a native
// engine would call them. Managed calls (create_app, register, post, delay,
// run_sequence, cancel, ...) use the managed API of the current application,
// or of the application named by handle.
//
// Every step has an expected outcome: "ok" unless expect names an error
// code such as LIFECYCLE_ORDER_VIOLATION. A mismatch fails the scenario.
//
// # Trace
//
// Each observable effect appends a TraceEvent stamped with a logical seq:
//
//	call        a step began (label = call name)
//	error       a step returned an error (detail = error code)
//	hook        an application hook ran (setup, start, stop, update, scene_update)
//	callback    a custom lifecycle callback ran
//	subscriber  a frame subscriber ran
//	posted      a deferred work item ran
//	fired       a CallFunc or Atomic action ran
//	progress    an Interval action ticked (detail = progress)
//	resolved    a Delay future resolved
//	completed   a run_sequence tree completed
//	found       a lookup or subsystem resolved a wrapper
//
// # Assertion Types
//
//   - trace_contains: an event with the given kind (and label/detail) exists
//   - trace_order: "kind:label" events occur in the given relative order
//   - trace_count: an event occurs exactly count times
//   - outcome: step N (1-based) produced the given code
//   - phase: the application with the given handle ended in the given phase
//
// # Validation
//
// LoadScenario decodes strictly (unknown fields are errors), checks the
// scenario in Go with did-you-mean suggestions for misspelled calls, and
// validates the document against an embedded CUE schema.
//
// # Determinism
//
// A scenario always produces the same trace: there is no wall-clock time and
// no goroutine scheduling in the trace. Runs may be journaled and replayed;
// Replay reruns a journaled session and reports any step whose outcome or
// seq diverges.
package harness
