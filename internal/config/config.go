// Package config loads planner tunables (params.toml). File formats
// stay outside the core/algo packages, which only ever see a
// core.Params value.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// FileParams mirrors core.Params with fields TOML can decode
// directly, then is converted to core.Params via ToCoreParams.
type FileParams struct {
	Algorithm                string `toml:"algorithm"`
	TimeHorizon              int    `toml:"time_horizon"`
	TaskTimeHorizon          int    `toml:"task_time_horizon,omitempty"`
	TrialLimit               int    `toml:"trial_limit"`
	DirectionChangeFrequency int    `toml:"direction_change_frequency,omitempty"`
}

// ToCoreParams converts the decoded TOML into core.Params, falling
// back to core.DefaultParams for any zero-value tunable.
func (f FileParams) ToCoreParams() (core.Params, error) {
	defaults := core.DefaultParams()
	p := core.Params{
		TimeHorizon:              f.TimeHorizon,
		TaskTimeHorizon:          f.TaskTimeHorizon,
		TrialLimit:               f.TrialLimit,
		DirectionChangeFrequency: f.DirectionChangeFrequency,
	}
	if p.TimeHorizon == 0 {
		p.TimeHorizon = defaults.TimeHorizon
	}
	if p.TaskTimeHorizon == 0 {
		p.TaskTimeHorizon = defaults.TaskTimeHorizon
	}
	if p.TrialLimit == 0 {
		p.TrialLimit = defaults.TrialLimit
	}

	tag, err := parseAlgorithm(f.Algorithm)
	if err != nil {
		return core.Params{}, err
	}
	p.Algorithm = tag
	return p, nil
}

func parseAlgorithm(s string) (core.AlgorithmTag, error) {
	switch s {
	case "", "CA_STAR":
		return core.CAStar, nil
	case "TokenPassing":
		return core.TokenPassing, nil
	case "EnhancedHierarchicalPlanner":
		return core.EnhancedHierarchicalPlanner, nil
	case "RuntimeReplanner":
		return core.RuntimeReplanner, nil
	case "AlternatingRuntimeReplanner":
		return core.AlternatingRuntimeReplanner, nil
	case "TrafficSimulator":
		return core.TrafficSimulator, nil
	default:
		return 0, fmt.Errorf("config: unknown algorithm %q", s)
	}
}

// Load reads and decodes a params.toml file at path.
func Load(path string) (core.Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Params{}, fmt.Errorf("config: reading %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML bytes into core.Params.
func Parse(data []byte) (core.Params, error) {
	var fp FileParams
	if _, err := toml.Decode(string(data), &fp); err != nil {
		return core.Params{}, fmt.Errorf("config: parsing: %w", err)
	}
	return fp.ToCoreParams()
}
