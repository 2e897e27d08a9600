package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/framebridge/internal/journal"
)

// Divergence is a journaled step whose replay did not match the recording.
type Divergence struct {
	// Index is the 1-based step number.
	Index int

	Call        string
	RecordedSeq int64
	ReplayedSeq int64
	Recorded    string
	Replayed    string
}

func (d Divergence) String() string {
	if d.Recorded != d.Replayed {
		return fmt.Sprintf("step %d (%s): recorded outcome %s, replayed %s", d.Index, d.Call, d.Recorded, d.Replayed)
	}
	return fmt.Sprintf("step %d (%s): recorded at seq %d, replayed at seq %d", d.Index, d.Call, d.RecordedSeq, d.ReplayedSeq)
}

// ReplayResult is the outcome of replaying a journaled session.
type ReplayResult struct {
	Session     journal.Session
	Result      *Result
	Divergences []Divergence
}

// Deterministic reports whether the replay matched the recording exactly.
func (r *ReplayResult) Deterministic() bool {
	return len(r.Divergences) == 0
}

// Replay re-executes a journaled session against a fresh bridge and compares
// each step's outcome and seq with what was recorded.
func Replay(ctx context.Context, j *journal.Journal, sessionID string, opts ...Option) (*ReplayResult, error) {
	sess, recorded, err := j.ReadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	s := &Scenario{Name: sess.Name, Steps: make([]Step, 0, len(recorded))}
	for _, rec := range recorded {
		var step Step
		if err := json.Unmarshal(rec.Payload, &step); err != nil {
			return nil, fmt.Errorf("decode step %d: %w", rec.Seq, err)
		}
		s.Steps = append(s.Steps, step)
	}

	// The replay itself must not be journaled.
	opts = append(opts, WithJournal(nil))
	res, err := Run(ctx, s, opts...)
	if err != nil {
		return nil, err
	}

	out := &ReplayResult{Session: sess, Result: res}
	for i, rec := range recorded {
		d := Divergence{
			Index:       i + 1,
			Call:        rec.Call,
			RecordedSeq: rec.Seq,
			ReplayedSeq: res.StepSeqs[i],
			Recorded:    rec.Outcome,
			Replayed:    res.Outcomes[i],
		}
		if d.Recorded != d.Replayed || d.RecordedSeq != d.ReplayedSeq {
			out.Divergences = append(out.Divergences, d)
		}
	}
	return out, nil
}
