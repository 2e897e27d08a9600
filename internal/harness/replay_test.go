package harness

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framebridge/internal/journal"
	"github.com/roach88/framebridge/internal/testutil"
)

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"),
		journal.WithLogger(testutil.DiscardLogger()),
		journal.WithSessionIDGenerator(testutil.NewSequentialSessionGenerator("run")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRun_RecordsJournal(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	s, err := LoadScenario("testdata/scenarios/sequences.yaml")
	require.NoError(t, err)

	res, err := Run(ctx, s, WithJournal(j))
	require.NoError(t, err)
	require.True(t, res.Pass, res.Errors)
	assert.Equal(t, "run-1", res.SessionID)

	sess, steps, err := j.ReadSession(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "sequences", sess.Name)
	require.Len(t, steps, len(s.Steps))

	for i, step := range steps {
		assert.Equal(t, res.StepSeqs[i], step.Seq)
		assert.Equal(t, s.Steps[i].Call, step.Call)
		assert.Equal(t, res.Outcomes[i], step.Outcome)
	}
	assert.Equal(t, "SCHEDULER_NODE_NOT_FOUND", steps[len(steps)-1].Outcome)
}

func TestRun_FixedSessionID(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	s := &Scenario{Name: "fixed", Description: "d", Session: "fixed-session", Steps: []Step{{Call: CallCreateApp}}}
	res, err := Run(ctx, s, WithJournal(j))
	require.NoError(t, err)
	assert.Equal(t, "fixed-session", res.SessionID)

	// Reusing the session ID is a journal failure, not a step failure.
	_, err = Run(ctx, s, WithJournal(j))
	require.Error(t, err)
}

func TestReplay_Deterministic(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err)

		recorded, err := Run(ctx, s, WithJournal(j))
		require.NoError(t, err)

		replayed, err := Replay(ctx, j, recorded.SessionID)
		require.NoError(t, err)
		assert.True(t, replayed.Deterministic(), "%s: %v", s.Name, replayed.Divergences)
		assert.Equal(t, recorded.Trace, replayed.Result.Trace, s.Name)
		assert.True(t, replayed.Result.Pass, replayed.Result.Errors)
	}
}

func TestReplay_NonFiniteTimeStep(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	steps := append(started(), Step{Call: CallGlobalUpdate, TimeStep: math.Inf(-1), Expect: "INVALID_TIME_STEP"})
	recorded, err := Run(ctx, &Scenario{Name: "inf", Description: "d", Steps: steps}, WithJournal(j))
	require.NoError(t, err)
	require.True(t, recorded.Pass, recorded.Errors)

	replayed, err := Replay(ctx, j, recorded.SessionID)
	require.NoError(t, err)
	assert.True(t, replayed.Deterministic(), replayed.Divergences)
	assert.Equal(t, "-Inf", replayed.Result.Trace[len(replayed.Result.Trace)-2].Detail)
}

func TestReplay_ReportsDivergence(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	recorded, err := Run(ctx, &Scenario{Name: "tampered", Description: "d", Steps: started()}, WithJournal(j))
	require.NoError(t, err)

	_, err = j.DB().ExecContext(ctx,
		`UPDATE steps SET outcome = 'QUEUE_CLOSED' WHERE session_id = ? AND seq = ?`,
		recorded.SessionID, recorded.StepSeqs[1])
	require.NoError(t, err)

	replayed, err := Replay(ctx, j, recorded.SessionID)
	require.NoError(t, err)
	assert.False(t, replayed.Deterministic())
	require.Len(t, replayed.Divergences, 1)

	d := replayed.Divergences[0]
	assert.Equal(t, 2, d.Index)
	assert.Equal(t, "QUEUE_CLOSED", d.Recorded)
	assert.Equal(t, "ok", d.Replayed)
	assert.Contains(t, d.String(), "recorded outcome QUEUE_CLOSED, replayed ok")
}

func TestReplay_UnknownSession(t *testing.T) {
	_, err := Replay(context.Background(), openJournal(t), "nope")
	require.ErrorIs(t, err, journal.ErrSessionNotFound)
}
