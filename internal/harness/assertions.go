package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/framebridge/internal/core"
)

// checkAssertions evaluates every assertion and returns one message per failure.
func checkAssertions(assertions []Assertion, res *Result) []string {
	var failures []string
	for i, a := range assertions {
		if err := checkAssertion(a, res); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %v", i+1, a.Type, err))
		}
	}
	return failures
}

func checkAssertion(a Assertion, res *Result) error {
	switch a.Type {
	case AssertTraceContains:
		for _, e := range res.Trace {
			if matches(e, a.Kind, a.Label, a.Detail) {
				return nil
			}
		}
		return fmt.Errorf("no %s event found", describe(a.Kind, a.Label, a.Detail))

	case AssertTraceCount:
		n := 0
		for _, e := range res.Trace {
			if matches(e, a.Kind, a.Label, a.Detail) {
				n++
			}
		}
		if n != a.Count {
			return fmt.Errorf("expected %d %s events, found %d", a.Count, describe(a.Kind, a.Label, a.Detail), n)
		}
		return nil

	case AssertTraceOrder:
		return checkOrder(a.Events, res.Trace)

	case AssertOutcome:
		if a.Step < 1 || a.Step > len(res.Outcomes) {
			return fmt.Errorf("step %d out of range", a.Step)
		}
		if got := res.Outcomes[a.Step-1]; got != a.Code {
			return fmt.Errorf("step %d: expected %s, got %s", a.Step, a.Code, got)
		}
		return nil

	case AssertPhase:
		h := core.Handle(a.Handle)
		got, ok := res.Phases[h]
		if !ok {
			return fmt.Errorf("no application was created with handle %s", h)
		}
		if got != a.Phase {
			return fmt.Errorf("application %s: expected phase %s, got %s", h, a.Phase, got)
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// checkOrder verifies the events occur in the trace in the given relative
// order. Other events may appear between them.
func checkOrder(events []string, trace []TraceEvent) error {
	next := 0
	for _, e := range trace {
		if next == len(events) {
			break
		}
		kind, label, _ := splitEvent(events[next])
		if matches(e, kind, label, "") {
			next++
		}
	}
	if next < len(events) {
		if next == 0 {
			return fmt.Errorf("event %q not found", events[0])
		}
		return fmt.Errorf("event %q not found after %q", events[next], events[next-1])
	}
	return nil
}

// matches reports whether e has the given kind and, when non-empty, label and detail.
func matches(e TraceEvent, kind, label, detail string) bool {
	if e.Kind != kind {
		return false
	}
	if label != "" && e.Label != label {
		return false
	}
	return detail == "" || e.Detail == detail
}

func splitEvent(s string) (kind, label string, ok bool) {
	kind, label, ok = strings.Cut(s, ":")
	return kind, label, ok && kind != ""
}

func describe(kind, label, detail string) string {
	s := kind
	if label != "" {
		s += ":" + label
	}
	if detail != "" {
		s += "(" + detail + ")"
	}
	return s
}
