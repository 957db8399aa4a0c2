package algo

import (
	"fmt"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// Planner is the common shape of every coordinated planner: a name for
// logging/evaluation, and a Solve method taking the scenario, the map
// manager (static or alternating-direction), and a cooperative
// cancellation deadline.
type Planner interface {
	Name() string
	Solve(scenario *core.Scenario, mm *core.MapManager, deadline core.Deadline) (*core.CommonPlan, error)
}

// Mapf dispatches to the planner named by params.Algorithm and runs
// it against the scenario under the given deadline.
func Mapf(scenario *core.Scenario, params core.Params, deadline core.Deadline) (*core.CommonPlan, error) {
	mm := core.NewMapManager(scenario.Map, params.DirectionChangeFrequency)

	planner, err := plannerFor(params)
	if err != nil {
		return nil, err
	}

	logger.Debugw("mapf: dispatching", "algorithm", planner.Name(), "agents", len(scenario.Agents))
	return planner.Solve(scenario, mm, deadline)
}

func plannerFor(params core.Params) (Planner, error) {
	switch params.Algorithm {
	case core.CAStar:
		return NewCooperativeAStar(params.TimeHorizon, params.TrialLimit), nil
	case core.TokenPassing:
		return NewTokenPassing(params.TimeHorizon, params.TaskTimeHorizon), nil
	case core.EnhancedHierarchicalPlanner:
		return NewHierarchicalPlanner(params.TimeHorizon, params.TrialLimit), nil
	case core.RuntimeReplanner:
		return NewRuntimeReplanner(params.TimeHorizon, params.TrialLimit, false), nil
	case core.AlternatingRuntimeReplanner:
		return NewRuntimeReplanner(params.TimeHorizon, params.TrialLimit, true), nil
	case core.TrafficSimulator:
		return NewTrafficSimulator(params.TimeHorizon), nil
	default:
		return nil, fmt.Errorf("algo: unknown algorithm tag %v", params.Algorithm)
	}
}
