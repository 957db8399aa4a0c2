package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

func TestParseFullParams(t *testing.T) {
	data := []byte(`
algorithm = "TokenPassing"
time_horizon = 250
task_time_horizon = 40
trial_limit = 7
direction_change_frequency = 2
`)
	params, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, core.TokenPassing, params.Algorithm)
	assert.Equal(t, 250, params.TimeHorizon)
	assert.Equal(t, 40, params.TaskTimeHorizon)
	assert.Equal(t, 7, params.TrialLimit)
	assert.Equal(t, 2, params.DirectionChangeFrequency)
}

func TestParseEmptyFallsBackToDefaults(t *testing.T) {
	params, err := Parse([]byte(""))
	require.NoError(t, err)

	defaults := core.DefaultParams()
	assert.Equal(t, defaults.Algorithm, params.Algorithm)
	assert.Equal(t, defaults.TimeHorizon, params.TimeHorizon)
	assert.Equal(t, defaults.TrialLimit, params.TrialLimit)
}

func TestParseUnknownAlgorithm(t *testing.T) {
	_, err := Parse([]byte(`algorithm = "Dijkstra"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown algorithm")
}

func TestParseMalformedTOML(t *testing.T) {
	_, err := Parse([]byte(`algorithm = [unterminated`))
	assert.Error(t, err)
}
