package cli

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

// record runs a scenario with --journal into a fresh database and returns
// its path and session ID.
func record(t *testing.T, scenario string) (string, string) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "journal.db")
	out, err := execute(t, "run", filepath.Join(scenarioDir, scenario), "--journal", "--db", db, "--format", "json")
	require.NoError(t, err)
	var data RunResult
	decode(t, out, &data)
	require.NotEmpty(t, data.SessionID)
	return db, data.SessionID
}

func TestReplay_Deterministic(t *testing.T) {
	db, id := record(t, "frame_ordering.yaml")

	out, err := execute(t, "replay", "--db", db, "--format", "json")
	require.NoError(t, err, out)

	var data ReplayResult
	decode(t, out, &data)
	assert.Equal(t, id, data.SessionID)
	assert.Equal(t, "frame_ordering", data.Name)
	assert.Equal(t, 9, data.Steps)
	assert.True(t, data.Deterministic)
	assert.Empty(t, data.Divergences)
}

func TestReplay_ExplicitSession(t *testing.T) {
	db, id := record(t, "lifecycle.yaml")

	out, err := execute(t, "replay", "--db", db, "--session", id)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, id)
}

func TestReplay_Diverged(t *testing.T) {
	db, id := record(t, "lifecycle.yaml")

	raw, err := sql.Open("sqlite3", db)
	require.NoError(t, err)
	_, err = raw.Exec(`UPDATE steps SET outcome = 'ok' WHERE session_id = ? AND outcome != 'ok'`, id)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	out, err := execute(t, "replay", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var data ReplayResult
	resp := decode(t, out, &data)
	assert.Equal(t, "E_NONDETERMINISTIC", resp.Error.Code)
	assert.False(t, data.Deterministic)
	assert.NotEmpty(t, data.Divergences)
}

func TestReplay_MissingJournal(t *testing.T) {
	_, err := execute(t, "replay", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}
