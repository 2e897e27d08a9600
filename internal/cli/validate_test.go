package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	out, err := execute(t, "validate",
		filepath.Join(scenarioDir, "lifecycle.yaml"),
		filepath.Join(scenarioDir, "handles.yaml"),
		"--format", "json")
	require.NoError(t, err)

	var data []FileValidation
	decode(t, out, &data)
	require.Len(t, data, 2)
	assert.True(t, data[0].Valid)
	assert.Equal(t, "lifecycle", data[0].Name)
	assert.Equal(t, 6, data[0].Steps)
	assert.True(t, data[1].Valid)
}

func TestValidate_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "typo.yaml", `name: typo
description: misspelled call
steps:
  - call: global_updte
    time_step: 0.1
`)

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, `did you mean "global_update"?`)
}
