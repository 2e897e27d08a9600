package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepID_Deterministic(t *testing.T) {
	payload := []byte(`{"time_step":0.5}`)

	a, err := StepID("session-1", 3, "global_update", payload)
	require.NoError(t, err)
	b, err := StepID("session-1", 3, "global_update", payload)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "hex-encoded SHA-256")
}

func TestStepID_SensitiveToEveryField(t *testing.T) {
	base := MustStepID("s", 1, "setup", []byte(`{}`))

	assert.NotEqual(t, base, MustStepID("t", 1, "setup", []byte(`{}`)))
	assert.NotEqual(t, base, MustStepID("s", 2, "setup", []byte(`{}`)))
	assert.NotEqual(t, base, MustStepID("s", 1, "start", []byte(`{}`)))
	assert.NotEqual(t, base, MustStepID("s", 1, "setup", []byte(`{"handle":1}`)))
}

func TestHashWithDomain_Separation(t *testing.T) {
	data := []byte("payload")
	assert.NotEqual(t, hashWithDomain("a/v1", data), hashWithDomain("b/v1", data))
}
