package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/framebridge/internal/core"
)

// FormatTrace renders a trace as indented canonical JSON for golden files.
// Keys are sorted, so the output is byte-stable across runs.
func FormatTrace(name string, trace []TraceEvent) ([]byte, error) {
	events := make([]any, len(trace))
	for i, e := range trace {
		m := map[string]any{
			"seq":   e.Seq,
			"kind":  e.Kind,
			"label": e.Label,
		}
		if e.Detail != "" {
			m["detail"] = e.Detail
		}
		events[i] = m
	}

	data, err := core.MarshalCanonical(map[string]any{
		"scenario": name,
		"trace":    events,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("indent trace: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// AssertGolden compares a result's trace with testdata/golden/<name>.golden.
// Run the test with -update to rewrite the golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	data, err := FormatTrace(name, result.Trace)
	if err != nil {
		t.Fatalf("format trace: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
