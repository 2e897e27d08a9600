package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/framebridge/internal/core"
)

func sampleResult() *Result {
	return &Result{
		Trace: []TraceEvent{
			{Seq: 1, Kind: EventCall, Label: CallCreateApp},
			{Seq: 2, Kind: EventCall, Label: CallGlobalUpdate, Detail: "0.5"},
			{Seq: 3, Kind: EventSubscriber, Label: "ui", Detail: "0.5"},
			{Seq: 4, Kind: EventResolved, Label: "wait"},
			{Seq: 5, Kind: EventPosted, Label: "after"},
			{Seq: 6, Kind: EventSubscriber, Label: "ui", Detail: "0.25"},
		},
		Outcomes: []string{"ok", "QUEUE_CLOSED"},
		Phases:   map[core.Handle]string{},
	}
}

func TestCheckAssertion(t *testing.T) {
	res := sampleResult()
	res.Phases[0x1000] = "started"

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{"contains kind", Assertion{Type: AssertTraceContains, Kind: EventPosted}, ""},
		{"contains detail", Assertion{Type: AssertTraceContains, Kind: EventSubscriber, Label: "ui", Detail: "0.25"}, ""},
		{"contains missing", Assertion{Type: AssertTraceContains, Kind: EventFired, Label: "x"}, "no fired:x event found"},
		{"count", Assertion{Type: AssertTraceCount, Kind: EventSubscriber, Label: "ui", Count: 2}, ""},
		{"count zero", Assertion{Type: AssertTraceCount, Kind: EventError}, ""},
		{"count wrong", Assertion{Type: AssertTraceCount, Kind: EventCall, Count: 3}, "expected 3 call events, found 2"},
		{"order", Assertion{Type: AssertTraceOrder, Events: []string{"subscriber:ui", "resolved:wait", "posted:after", "subscriber:ui"}}, ""},
		{"order kind only", Assertion{Type: AssertTraceOrder, Events: []string{"call:", "resolved:"}}, ""},
		{"order reversed", Assertion{Type: AssertTraceOrder, Events: []string{"posted:after", "resolved:wait"}}, `event "resolved:wait" not found after "posted:after"`},
		{"order missing first", Assertion{Type: AssertTraceOrder, Events: []string{"hook:setup", "call:"}}, `event "hook:setup" not found`},
		{"outcome", Assertion{Type: AssertOutcome, Step: 2, Code: "QUEUE_CLOSED"}, ""},
		{"outcome wrong", Assertion{Type: AssertOutcome, Step: 1, Code: "QUEUE_CLOSED"}, "step 1: expected QUEUE_CLOSED, got ok"},
		{"outcome out of range", Assertion{Type: AssertOutcome, Step: 3, Code: "ok"}, "step 3 out of range"},
		{"phase", Assertion{Type: AssertPhase, Handle: 0x1000, Phase: "started"}, ""},
		{"phase wrong", Assertion{Type: AssertPhase, Handle: 0x1000, Phase: "stopped"}, "expected phase stopped, got started"},
		{"phase unknown app", Assertion{Type: AssertPhase, Handle: 0x2000, Phase: "started"}, "no application was created with handle 0x2000"},
		{"unknown type", Assertion{Type: "bogus"}, `unknown assertion type "bogus"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkAssertion(tt.a, res)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCheckAssertions_NumbersFailures(t *testing.T) {
	failures := checkAssertions([]Assertion{
		{Type: AssertTraceContains, Kind: EventPosted},
		{Type: AssertTraceContains, Kind: EventFired},
	}, sampleResult())

	assert.Equal(t, []string{"assertion 2 (trace_contains): no fired event found"}, failures)
}
