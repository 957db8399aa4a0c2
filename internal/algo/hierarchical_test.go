package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// TestHierarchicalPlannerDisjointRows covers the conflict-free path:
// a 10x10 map (split into roughly 3x3 regions by BuildRegions's
// sqrt-dim rule), two agents on adjacent rows whose shortest paths
// share regions but never a cell, so no region ever needs CBS and the
// plans must come back untouched and validator-clean.
func TestHierarchicalPlannerDisjointRows(t *testing.T) {
	m := openGrid(10, 10)
	core.ResetAgentCounter()
	core.ResetTaskCounter()
	scenario := core.NewScenario(m)

	a := core.NewAgent("a", core.Position{X: 0, Y: 5})
	ta := core.NewTask([]core.Position{{X: 9, Y: 5}}, 0)
	a.Task = ta
	b := core.NewAgent("b", core.Position{X: 9, Y: 4})
	tb := core.NewTask([]core.Position{{X: 0, Y: 4}}, 0)
	b.Task = tb
	scenario.Agents = append(scenario.Agents, a, b)
	scenario.Tasks = append(scenario.Tasks, ta, tb)

	mm := core.NewMapManager(m, 0)
	hp := NewHierarchicalPlanner(60, 16)
	cp, err := hp.Solve(scenario, mm, core.NoDeadline())
	require.NoError(t, err)
	require.Equal(t, 2, len(cp.Plans))

	v := NewValidator(false)
	assert.NoError(t, v.Check(scenario, mm, cp), "validator rejected the hierarchical planner's plan")

	for _, agent := range scenario.Agents {
		plan := cp.ByAgent(agent.ID)
		require.NotNilf(t, plan, "agent %d has no plan", agent.ID)
		assert.Equalf(t, agentGoal(agent), plan.Last().Pos(), "agent %d did not end at its goal", agent.ID)
	}
}

// TestHierarchicalPlannerResolvesHeadOnWithinRegion forces real CBS
// work: both agents live inside one region and their shortest paths
// collide head-on at (1,1) on tick 1, so the planner must expand the
// constraint tree and lengthen at least one plan beyond its
// unconstrained shortest path (2 moves each).
func TestHierarchicalPlannerResolvesHeadOnWithinRegion(t *testing.T) {
	m := openGrid(10, 10)
	core.ResetAgentCounter()
	core.ResetTaskCounter()
	scenario := core.NewScenario(m)

	a := core.NewAgent("a", core.Position{X: 0, Y: 1})
	ta := core.NewTask([]core.Position{{X: 2, Y: 1}}, 0)
	a.Task = ta
	b := core.NewAgent("b", core.Position{X: 2, Y: 1})
	tb := core.NewTask([]core.Position{{X: 0, Y: 1}}, 0)
	b.Task = tb
	scenario.Agents = append(scenario.Agents, a, b)
	scenario.Tasks = append(scenario.Tasks, ta, tb)

	mm := core.NewMapManager(m, 0)
	hp := NewHierarchicalPlanner(60, 16)
	cp, err := hp.Solve(scenario, mm, core.NoDeadline())
	require.NoError(t, err)
	require.Equal(t, 2, len(cp.Plans))

	v := NewValidator(false)
	assert.NoError(t, v.Check(scenario, mm, cp), "validator rejected the deconflicted plan")

	for _, agent := range scenario.Agents {
		plan := cp.ByAgent(agent.ID)
		require.NotNilf(t, plan, "agent %d has no plan", agent.ID)
		assert.Equalf(t, agentGoal(agent), plan.Last().Pos(), "agent %d did not end at its goal", agent.ID)
	}

	assert.Greater(t, cp.SumOfCosts(), 6,
		"both unconstrained shortest plans have 3 entries; deconfliction must have cost extra ticks")
}

// TestBuildRegionsSqrtDimSizing checks BuildRegions's sqrt-dim sizing
// rule on a 10x10 map: side length round(sqrt(10))=3, so every region
// index must be reachable from RegionIndexOf and every cell maps to
// exactly one region.
func TestBuildRegionsSqrtDimSizing(t *testing.T) {
	m := openGrid(10, 10)
	rs := BuildRegions(m)
	assert.NotEmpty(t, rs.Regions)

	seen := make(map[int]bool)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			ri := rs.RegionIndexOf(core.Position{X: x, Y: y})
			seen[ri] = true
		}
	}
	assert.Equal(t, len(rs.Regions), len(seen), "every region should contain at least one cell")
}
