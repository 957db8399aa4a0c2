package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// TestTrafficSimulatorStraightRunsNoConflict exercises the greedy,
// no-deadlock path: two agents on parallel rows never contend for a
// cell, so every tick should be a plain greedy advance.
func TestTrafficSimulatorStraightRunsNoConflict(t *testing.T) {
	m := openGrid(5, 2)
	core.ResetAgentCounter()
	core.ResetTaskCounter()
	scenario := core.NewScenario(m)

	a := core.NewAgent("a", core.Position{X: 0, Y: 0})
	ta := core.NewTask([]core.Position{{X: 4, Y: 0}}, 0)
	a.Task = ta
	b := core.NewAgent("b", core.Position{X: 0, Y: 1})
	tb := core.NewTask([]core.Position{{X: 4, Y: 1}}, 0)
	b.Task = tb
	scenario.Agents = append(scenario.Agents, a, b)
	scenario.Tasks = append(scenario.Tasks, ta, tb)

	mm := core.NewMapManager(m, 0)
	ts := NewTrafficSimulator(20)
	cp, err := ts.Solve(scenario, mm, core.NoDeadline())
	require.NoError(t, err)

	for _, agent := range scenario.Agents {
		plan := cp.ByAgent(agent.ID)
		require.NotNilf(t, plan, "agent %d has no plan", agent.ID)
		assert.Equalf(t, agentGoal(agent), plan.Last().Pos(), "agent %d did not reach its goal", agent.ID)
	}
}

// TestTrafficSimulatorResolvesHeadOnCycle is a two-agent, single-edge
// corridor where each agent's goal is the other's start: a pure 2-cycle
// deadlock that only resolveCycles's synchronous rotation can clear,
// since neither agent can ever see a free next cell on its own.
func TestTrafficSimulatorResolvesHeadOnCycle(t *testing.T) {
	m := openGrid(2, 1)
	core.ResetAgentCounter()
	core.ResetTaskCounter()
	scenario := core.NewScenario(m)

	a := core.NewAgent("a", core.Position{X: 0, Y: 0})
	ta := core.NewTask([]core.Position{{X: 1, Y: 0}}, 0)
	a.Task = ta
	b := core.NewAgent("b", core.Position{X: 1, Y: 0})
	tb := core.NewTask([]core.Position{{X: 0, Y: 0}}, 0)
	b.Task = tb
	scenario.Agents = append(scenario.Agents, a, b)
	scenario.Tasks = append(scenario.Tasks, ta, tb)

	mm := core.NewMapManager(m, 0)
	ts := NewTrafficSimulator(10)
	cp, err := ts.Solve(scenario, mm, core.NoDeadline())
	require.NoError(t, err)

	for _, agent := range scenario.Agents {
		plan := cp.ByAgent(agent.ID)
		require.NotNilf(t, plan, "agent %d has no plan", agent.ID)
		assert.Equalf(t, agentGoal(agent), plan.Last().Pos(), "agent %d never escaped the head-on cycle", agent.ID)
	}
}
