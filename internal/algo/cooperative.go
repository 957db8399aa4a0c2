package algo

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// CooperativeAStar plans agents sequentially over a shared
// ReservationTable: each agent's path is frozen into the table before
// the next agent plans. The agent order is shuffled and retried up to
// TrialLimit times when an ordering proves unsolvable.
type CooperativeAStar struct {
	TimeHorizon int
	TrialLimit  int
	Rand        *rand.Rand // nil uses a fresh source seeded with 1 on each Solve
}

// NewCooperativeAStar creates a CA* planner.
func NewCooperativeAStar(timeHorizon, trialLimit int) *CooperativeAStar {
	return &CooperativeAStar{TimeHorizon: timeHorizon, TrialLimit: trialLimit}
}

func (c *CooperativeAStar) Name() string { return "CA_STAR" }

// Solve attempts, up to TrialLimit shuffled orderings, to plan every
// agent's path sequentially against a shared reservation table.
func (c *CooperativeAStar) Solve(scenario *core.Scenario, mm *core.MapManager, deadline core.Deadline) (*core.CommonPlan, error) {
	rng := c.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	tried := make(map[string]bool)
	var lastErr error = core.ErrUnsolvable

	for trial := 0; trial < c.TrialLimit; trial++ {
		if deadline.Expired() {
			return nil, core.ErrTimeout
		}
		order := shuffledOrder(scenario.Agents, rng)
		fp := orderFingerprint(order)
		if tried[fp] {
			continue
		}
		tried[fp] = true

		cp, err := c.planOrder(scenario, mm, order, deadline)
		if err == nil {
			return cp, nil
		}
		lastErr = err
		logger.Debugw("ca* trial failed", "trial", trial, "err", err)
	}
	return nil, lastErr
}

func (c *CooperativeAStar) planOrder(scenario *core.Scenario, mm *core.MapManager, order []*core.Agent, deadline core.Deadline) (*core.CommonPlan, error) {
	table := NewReservationTable()
	cp := core.NewCommonPlan()

	for _, agent := range order {
		if deadline.Expired() {
			return nil, core.ErrTimeout
		}

		plan, err := c.planAgent(table, mm, agent, deadline)
		if err != nil {
			return nil, err
		}
		cp.Plans = append(cp.Plans, plan)
	}
	return cp, nil
}

// planAgent plans one agent across every sub-target of its task (or
// its single goal for classic MAPF), reserving the path as it goes.
func (c *CooperativeAStar) planAgent(table *ReservationTable, mm *core.MapManager, agent *core.Agent, deadline core.Deadline) (*core.Plan, error) {
	goals := agentGoals(agent)
	if len(goals) == 0 {
		plan := core.NewPlan(agent.ID, agent.Start, 0)
		table.ReservePath(agent.ID, plan, false, true)
		return plan, nil
	}

	var full *core.Plan
	cursorTime := 0
	cursorPos := agent.Start

	legality := caLegality(table, mm)

	for i, goal := range goals {
		leg, err := Search(SearchRequest{
			Agent:     agent.ID,
			Start:     core.AtTime(cursorPos, cursorTime),
			Goal:      goal,
			Legality:  legality,
			Heuristic: manhattanHeuristic(goal),
			Horizon:   c.TimeHorizon,
			GoalAccept: func(pos core.Position, t int) bool {
				return table.IsFreeForever(pos, t)
			},
			Deadline: deadline,
		})
		if err != nil {
			table.CancelAgentReservations(agent.ID)
			return nil, err
		}

		// The prior sub-target's last timed position duplicates leg's
		// first entry; skip it when concatenating. Only the final
		// leg's end is a permanent rest.
		table.ReservePath(agent.ID, leg, i > 0, i == len(goals)-1)

		if i == 0 {
			full = leg
		} else {
			full.AppendPlan(leg)
		}
		cursorTime = full.EndTime()
		cursorPos = full.Last().Pos()
	}

	return full, nil
}

// caLegality is the reservation-table legality shared by cooperative
// A* and token-passing: not reserved as a cell, not reserved as an
// edge (including the reverse-direction swap), and passable under the
// map's direction rule. A wait (from == to) needs only the
// destination cell free.
func caLegality(table *ReservationTable, mm *core.MapManager) Legality {
	return func(from, to core.Position, t int) bool {
		if table.IsCellReserved(to, t+1) {
			return false
		}
		if from == to {
			return true
		}
		if table.IsEdgeReserved(from, to, t) {
			return false
		}
		return mm.PassagePermitted(core.TimedEdge{Edge: core.Edge{From: from, To: to}, Time: t})
	}
}

func manhattanHeuristic(goal core.Position) Heuristic {
	return func(pos core.Position) int {
		return pos.Manhattan(goal)
	}
}

// agentGoals returns the ordered sub-targets for an agent: its task's
// target list if it has one, otherwise none (idle agent).
func agentGoals(agent *core.Agent) []core.Position {
	if agent.Task == nil {
		return nil
	}
	return agent.Task.Targets
}

func shuffledOrder(agents []*core.Agent, rng *rand.Rand) []*core.Agent {
	order := make([]*core.Agent, len(agents))
	copy(order, agents)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// orderFingerprint renders an agent order as a stable string key, used
// to skip already-tried shuffles.
func orderFingerprint(order []*core.Agent) string {
	var b strings.Builder
	for _, a := range order {
		b.WriteString(strconv.FormatInt(int64(a.ID), 10))
		b.WriteByte(',')
	}
	return b.String()
}
