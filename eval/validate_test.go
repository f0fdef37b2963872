package eval

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRawResult(t *testing.T) {
	valid := []string{
		`{"results":[],"summary":{"numTests":0,"stats":{"successes":0,"failures":0}}}`,
		`{"results":[{"output":"hi","success":true}],"summary":{"numTests":1,"stats":{"successes":1,"failures":0}}}`,
		`{"summary":{"numTests":2,"stats":{"successes":1,"failures":1}},"results":[{},{}],"extra":"ignored"}`,
	}
	for _, payload := range valid {
		assert.True(t, ValidateRawResult([]byte(payload)), "expected valid: %s", payload)
	}

	invalid := []string{
		``,
		`not json`,
		`null`,
		`{}`,
		`{"results":{},"summary":{"numTests":0,"stats":{"successes":0,"failures":0}}}`,
		`{"results":[],"summary":{"stats":{"successes":0,"failures":0}}}`,
		`{"results":[],"summary":{"numTests":"three","stats":{"successes":0,"failures":0}}}`,
		`{"results":[],"summary":{"numTests":"3","stats":{"successes":0,"failures":0}}}`,
		`{"results":[],"summary":{"numTests":3,"stats":{"successes":"2","failures":1}}}`,
		`{"results":[],"summary":{"numTests":0}}`,
		`{"results":[],"summary":{"numTests":0,"stats":{"successes":0}}}`,
		`{"results":"nope","summary":{"numTests":0,"stats":{"successes":0,"failures":0}}}`,
	}
	for _, payload := range invalid {
		assert.False(t, ValidateRawResult([]byte(payload)), "expected invalid: %s", payload)
	}
}

func TestBuildRawResult(t *testing.T) {
	raw := BuildRawResult([]TestOutcome{
		{Success: true, Score: 1},
		{Success: false, Score: 0},
		{Success: true, Score: 0.8},
	})
	assert.Equal(t, 3, raw.Summary.NumTests)
	assert.Equal(t, 2, raw.Summary.Stats.Successes)
	assert.Equal(t, 1, raw.Summary.Stats.Failures)

	// A built result always passes its own boundary check.
	encoded, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.True(t, ValidateRawResult(encoded))
}

func TestBuildRawResultEmpty(t *testing.T) {
	raw := BuildRawResult(nil)
	assert.Equal(t, 0, raw.Summary.NumTests)
	assert.Equal(t, 0, raw.Summary.Stats.Successes)
	assert.Equal(t, 0, raw.Summary.Stats.Failures)
}
