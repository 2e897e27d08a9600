package harness

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	"github.com/roach88/framebridge/internal/core"
)

// Scenario is a scripted sequence of bridge calls plus assertions on the trace.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Session is an optional fixed journal session ID.
	Session string `yaml:"session,omitempty"`

	// Steps run in order against a fresh bridge.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated against the final trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one call into the bridge.
// The json tags define the journaled payload; the yaml tags the scenario file.
type Step struct {
	Call     string  `yaml:"call" json:"call"`
	Handle   uint64  `yaml:"handle,omitempty" json:"handle,omitempty"`
	TimeStep float64 `yaml:"time_step,omitempty" json:"time_step,omitempty"`
	Scene    uint64  `yaml:"scene,omitempty" json:"scene,omitempty"`
	Seconds  float64 `yaml:"seconds,omitempty" json:"seconds,omitempty"`
	Label    string  `yaml:"label,omitempty" json:"label,omitempty"`
	Target   string  `yaml:"target,omitempty" json:"target,omitempty"`
	Then     string  `yaml:"then,omitempty" json:"then,omitempty"`
	Expect   string  `yaml:"expect,omitempty" json:"expect,omitempty"`
	Nodes    []Node  `yaml:"nodes,omitempty" json:"nodes,omitempty"`

	// TimeStepText carries non-finite time steps through the journal,
	// which only stores finite numbers.
	TimeStepText string `yaml:"-" json:"time_step_text,omitempty"`
}

// Node describes one action node of a run_sequence step.
type Node struct {
	Kind    string  `yaml:"kind" json:"kind"`
	Seconds float64 `yaml:"seconds,omitempty" json:"seconds,omitempty"`
	Label   string  `yaml:"label,omitempty" json:"label,omitempty"`
	Nodes   []Node  `yaml:"nodes,omitempty" json:"nodes,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind and Label select events (trace_contains, trace_count).
	Kind   string `yaml:"kind,omitempty"`
	Label  string `yaml:"label,omitempty"`
	Detail string `yaml:"detail,omitempty"`

	// Events lists "kind:label" pairs in expected order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the exact number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Step is a 1-based step index and Code its expected outcome (outcome).
	Step int    `yaml:"step,omitempty"`
	Code string `yaml:"code,omitempty"`

	// Handle and Phase check an application's final phase (phase).
	Handle uint64 `yaml:"handle,omitempty"`
	Phase  string `yaml:"phase,omitempty"`
}

// Call names.
const (
	CallSetup        = "setup"
	CallStart        = "start"
	CallStop         = "stop"
	CallGlobalUpdate = "global_update"
	CallSceneUpdate  = "scene_update"

	CallCreateApp       = "create_app"
	CallDispose         = "dispose"
	CallRegister        = "register"
	CallUnregister      = "unregister"
	CallLookup          = "lookup"
	CallSubsystem       = "subsystem"
	CallSubscribeGlobal = "subscribe_global"
	CallSubscribeScene  = "subscribe_scene"
	CallUnsubscribe     = "unsubscribe"
	CallPost            = "post"
	CallPostScene       = "post_scene"
	CallPostAsync       = "post_async"
	CallDelay           = "delay"
	CallStaticDelay     = "static_delay"
	CallRunSequence     = "run_sequence"
	CallCancel          = "cancel"
	CallSetCallbacks    = "set_callbacks"
)

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertOutcome       = "outcome"
	AssertPhase         = "phase"
)

// Node kinds.
const (
	NodeDelay    = "delay"
	NodeCall     = "call"
	NodeAtomic   = "atomic"
	NodeSequence = "sequence"
	NodeInterval = "interval"
)

// OutcomeOK is the outcome of a step that returned no error.
const OutcomeOK = "ok"

var (
	knownCalls = []string{
		CallSetup, CallStart, CallStop, CallGlobalUpdate, CallSceneUpdate,
		CallCreateApp, CallDispose, CallRegister, CallUnregister, CallLookup, CallSubsystem,
		CallSubscribeGlobal, CallSubscribeScene, CallUnsubscribe,
		CallPost, CallPostScene, CallPostAsync,
		CallDelay, CallStaticDelay, CallRunSequence, CallCancel, CallSetCallbacks,
	}
	knownAssertions = []string{AssertTraceContains, AssertTraceOrder, AssertTraceCount, AssertOutcome, AssertPhase}
	knownNodeKinds  = []string{NodeDelay, NodeCall, NodeAtomic, NodeSequence, NodeInterval}
	knownOutcomes   = []string{
		OutcomeOK,
		string(core.CodeDuplicateHandle),
		string(core.CodeHandleNotFound),
		string(core.CodeLifecycleOrderViolation),
		string(core.CodeSchedulerNodeNotFound),
		string(core.CodeInvalidTimeStep),
		string(core.CodeQueueClosed),
		string(core.CodeInvalidHandle),
		"ERROR",
	}
	knownPhases = []string{"uninitialized", "set_up", "started", "stopped"}
)

// LoadScenario reads, decodes and validates a scenario file.
// Unknown fields, unknown calls and schema violations are all errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario decodes and validates scenario YAML. filename is used in
// schema error positions.
func ParseScenario(filename string, data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if err := ValidateSchema(filename, data); err != nil {
		return nil, fmt.Errorf("schema violation: %w", err)
	}
	return &s, nil
}

// Validate checks a decoded scenario. All problems are reported together.
func Validate(s *Scenario) error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.Description == "" {
		errs = append(errs, errors.New("description is required"))
	}
	if len(s.Steps) == 0 {
		errs = append(errs, errors.New("steps list is required and must be non-empty"))
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			errs = append(errs, fmt.Errorf("steps[%d]: %w", i, err))
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, len(s.Steps)); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func validateStep(step Step) error {
	if step.Call == "" {
		return errors.New("call is required")
	}
	if !contains(knownCalls, step.Call) {
		return unknown("call", step.Call, knownCalls)
	}
	if step.Expect != "" && !contains(knownOutcomes, step.Expect) {
		return unknown("expect", step.Expect, knownOutcomes)
	}
	if step.Seconds < 0 {
		return fmt.Errorf("%s: seconds must be >= 0", step.Call)
	}

	switch step.Call {
	case CallSetup, CallStart, CallStop, CallRegister, CallUnregister, CallLookup:
		if step.Handle == 0 {
			return fmt.Errorf("%s: handle is required", step.Call)
		}
	case CallSubscribeGlobal, CallSubscribeScene, CallPost, CallPostScene, CallPostAsync,
		CallDelay, CallStaticDelay, CallSubsystem:
		if step.Label == "" {
			return fmt.Errorf("%s: label is required", step.Call)
		}
	case CallUnsubscribe, CallCancel:
		if step.Target == "" {
			return fmt.Errorf("%s: target is required", step.Call)
		}
	case CallRunSequence:
		if step.Label == "" {
			return fmt.Errorf("%s: label is required", step.Call)
		}
		if len(step.Nodes) == 0 {
			return fmt.Errorf("%s: nodes list is required and must be non-empty", step.Call)
		}
		for i, n := range step.Nodes {
			if err := validateNode(n); err != nil {
				return fmt.Errorf("nodes[%d]: %w", i, err)
			}
		}
	}
	return nil
}

func validateNode(n Node) error {
	if !contains(knownNodeKinds, n.Kind) {
		return unknown("kind", n.Kind, knownNodeKinds)
	}
	if n.Seconds < 0 {
		return errors.New("seconds must be >= 0")
	}
	switch n.Kind {
	case NodeCall, NodeAtomic, NodeInterval:
		if n.Label == "" {
			return fmt.Errorf("%s node: label is required", n.Kind)
		}
	case NodeSequence:
		for i, c := range n.Nodes {
			if err := validateNode(c); err != nil {
				return fmt.Errorf("nodes[%d]: %w", i, err)
			}
		}
	}
	return nil
}

func validateAssertion(a Assertion, steps int) error {
	if a.Type == "" {
		return errors.New("type is required")
	}
	if !contains(knownAssertions, a.Type) {
		return unknown("type", a.Type, knownAssertions)
	}

	switch a.Type {
	case AssertTraceContains, AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("kind is required for %s", a.Type)
		}
		if a.Count < 0 {
			return errors.New("count must be >= 0")
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return errors.New("events must list at least 2 entries for trace_order")
		}
		for _, e := range a.Events {
			if _, _, ok := splitEvent(e); !ok {
				return fmt.Errorf("event %q must be kind:label", e)
			}
		}
	case AssertOutcome:
		if a.Step < 1 || a.Step > steps {
			return fmt.Errorf("step must be between 1 and %d", steps)
		}
		if !contains(knownOutcomes, a.Code) {
			return unknown("code", a.Code, knownOutcomes)
		}
	case AssertPhase:
		if a.Handle == 0 {
			return errors.New("handle is required for phase")
		}
		if !contains(knownPhases, a.Phase) {
			return unknown("phase", a.Phase, knownPhases)
		}
	}
	return nil
}

// unknown reports an unrecognised value with the closest known one, if any is close.
func unknown(field, got string, known []string) error {
	if s := suggest(got, known); s != "" {
		return fmt.Errorf("unknown %s %q (did you mean %q?)", field, got, s)
	}
	return fmt.Errorf("unknown %s %q", field, got)
}

// suggest returns the known value closest to got within an edit distance of 3.
func suggest(got string, known []string) string {
	best, bestDist := "", 4
	for _, k := range known {
		if d := levenshtein.ComputeDistance(got, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Payload returns the step as a canonical-JSON-ready map for the journal.
func (s Step) Payload() map[string]any {
	p := map[string]any{"call": s.Call}
	if s.Handle != 0 {
		p["handle"] = s.Handle
	}
	switch {
	case math.IsNaN(s.TimeStep) || math.IsInf(s.TimeStep, 0):
		p["time_step_text"] = strconv.FormatFloat(s.TimeStep, 'g', -1, 64)
	case s.TimeStep != 0:
		p["time_step"] = s.TimeStep
	}
	if s.Scene != 0 {
		p["scene"] = s.Scene
	}
	if s.Seconds != 0 {
		p["seconds"] = s.Seconds
	}
	for k, v := range map[string]string{"label": s.Label, "target": s.Target, "then": s.Then, "expect": s.Expect} {
		if v != "" {
			p[k] = v
		}
	}
	if len(s.Nodes) > 0 {
		p["nodes"] = nodesPayload(s.Nodes)
	}
	return p
}

func nodesPayload(nodes []Node) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		m := map[string]any{"kind": n.Kind}
		if n.Seconds != 0 {
			m["seconds"] = n.Seconds
		}
		if n.Label != "" {
			m["label"] = n.Label
		}
		if len(n.Nodes) > 0 {
			m["nodes"] = nodesPayload(n.Nodes)
		}
		out[i] = m
	}
	return out
}

// timeStep returns the step's time step, decoding TimeStepText when set.
func (s Step) timeStep() float64 {
	if s.TimeStepText == "" {
		return s.TimeStep
	}
	f, err := strconv.ParseFloat(s.TimeStepText, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
