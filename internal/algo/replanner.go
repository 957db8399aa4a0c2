package algo

import (
	"math/rand"
	"sort"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// RuntimeReplanner performs per-tick claim-based step coordination
// with backtracking deconfliction. Set Alternating to use the
// time-folded search (modulo 2f) for both the initial per-agent plan
// and any off-plan replans; otherwise plain Manhattan-heuristic A* is
// used throughout.
type RuntimeReplanner struct {
	TimeHorizon int
	TrialLimit  int
	Alternating bool
	Rand        *rand.Rand
}

// NewRuntimeReplanner creates a replanner. alternating selects between
// the static and direction-alternating variants.
func NewRuntimeReplanner(timeHorizon, trialLimit int, alternating bool) *RuntimeReplanner {
	return &RuntimeReplanner{TimeHorizon: timeHorizon, TrialLimit: trialLimit, Alternating: alternating}
}

func (r *RuntimeReplanner) Name() string {
	if r.Alternating {
		return "AlternatingRuntimeReplanner"
	}
	return "RuntimeReplanner"
}

type agentPlanState struct {
	agent *core.Agent
	plan  *core.Plan // independently-planned reference plan, advanced as ticks pass
}

// Solve runs the full per-tick coordination loop until every agent
// reaches its goal or TimeHorizon is exceeded.
func (r *RuntimeReplanner) Solve(scenario *core.Scenario, mm *core.MapManager, deadline core.Deadline) (*core.CommonPlan, error) {
	states := make([]*agentPlanState, len(scenario.Agents))
	for i, agent := range scenario.Agents {
		goal := agentGoal(agent)
		plan, err := r.planIndependent(mm, agent, agent.Start, goal, 0, deadline)
		if err != nil {
			return nil, err
		}
		states[i] = &agentPlanState{agent: agent, plan: plan}
	}

	cp := core.NewCommonPlan()
	realized := make([]*core.Plan, len(states))
	for i, st := range states {
		realized[i] = core.NewPlan(st.agent.ID, st.agent.Start, 0)
	}

	order := make([]int, len(states))
	for i := range order {
		order[i] = i
	}
	rng := r.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	for t := 0; t < r.TimeHorizon; t++ {
		if deadline.Expired() {
			return nil, core.ErrTimeout
		}
		if allAtGoal(states, realized, t) {
			break
		}

		nextPositions, ok := r.tick(states, order, realized, t, mm, deadline, rng)
		if !ok {
			return nil, core.ErrUnsolvable
		}

		for i, st := range states {
			realized[i].AppendPosition(nextPositions[i])
			planned, _ := st.plan.Position(t+1, true)
			if nextPositions[i] != planned {
				if err := r.replanOffTrack(st, realized[i], t+1, mm, deadline); err != nil {
					return nil, err
				}
			}
		}
	}

	if len(states) > 0 && !allAtGoal(states, realized, realized[0].EndTime()) {
		return nil, core.ErrHorizonExceeded
	}

	for i := range states {
		cp.Plans = append(cp.Plans, realized[i])
	}
	return cp, nil
}

// tick runs one tick's claim-based backtracking coordination, trying
// up to TrialLimit shuffled agent orders if the fixed order fails.
func (r *RuntimeReplanner) tick(states []*agentPlanState, order []int, realized []*core.Plan, t int, mm *core.MapManager, deadline core.Deadline, rng *rand.Rand) ([]core.Position, bool) {
	wanted := make([]core.Position, len(states))
	for i, st := range states {
		wanted[i] = planNextOrGoal(st, realized[i], t)
	}

	for trial := 0; trial < r.TrialLimit; trial++ {
		claims := NewClaimContainer()
		result := make([]core.Position, len(states))
		cur := make([]core.Position, len(states))
		for i := range states {
			p, _ := realized[i].Position(t, true)
			cur[i] = p
		}

		if r.step(0, order, states, cur, wanted, result, claims, t, mm) {
			return result, true
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return nil, false
}

// step recursively claims a next position for the agent at idx in the
// order, backtracking through alternatives when later agents cannot be
// placed.
func (r *RuntimeReplanner) step(idx int, order []int, states []*agentPlanState, cur, wanted, result []core.Position, claims *ClaimContainer, t int, mm *core.MapManager) bool {
	if idx >= len(order) {
		return true
	}
	agentIdx := order[idx]
	agentID := states[agentIdx].agent.ID
	from := cur[agentIdx]

	if claims.TryClaim(agentID, from, wanted[agentIdx]) {
		result[agentIdx] = wanted[agentIdx]
		if r.step(idx+1, order, states, cur, wanted, result, claims, t, mm) {
			return true
		}
		claims.ReleaseClaims(agentID)
	}

	for _, alt := range r.alternatives(states[agentIdx], from, wanted[agentIdx], claims, agentID, t, mm) {
		if claims.TryClaim(agentID, from, alt) {
			result[agentIdx] = alt
			if r.step(idx+1, order, states, cur, wanted, result, claims, t, mm) {
				return true
			}
			claims.ReleaseClaims(agentID)
		}
	}

	return false
}

// alternatives returns the four orthogonal neighbours plus wait,
// filtered by passage legality and by absence of competing claims,
// sorted ascending by Manhattan distance to the agent's goal with wait
// appended last.
func (r *RuntimeReplanner) alternatives(st *agentPlanState, from, primary core.Position, claims *ClaimContainer, agentID core.AgentID, t int, mm *core.MapManager) []core.Position {
	goal := agentGoal(st.agent)

	type cand struct {
		pos  core.Position
		dist int
		wait bool
	}
	var cands []cand
	for _, n := range core.Neighbors4(from) {
		if n == primary {
			continue
		}
		if !mm.PassagePermitted(core.TimedEdge{Edge: core.Edge{From: from, To: n}, Time: t}) {
			continue
		}
		if claims.PositionClaimed(n, agentID) || claims.EdgeClaimed(from, n, agentID) {
			continue
		}
		cands = append(cands, cand{pos: n, dist: n.Manhattan(goal)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	out := make([]core.Position, 0, len(cands)+1)
	for _, c := range cands {
		out = append(out, c.pos)
	}
	if from != primary && !claims.PositionClaimed(from, agentID) {
		out = append(out, from) // wait, appended last
	}
	return out
}

func (r *RuntimeReplanner) planIndependent(mm *core.MapManager, agent *core.Agent, start, goal core.Position, startTime int, deadline core.Deadline) (*core.Plan, error) {
	req := SearchRequest{
		Agent:     agent.ID,
		Start:     core.AtTime(start, startTime),
		Goal:      goal,
		Legality:  staticLegality(mm),
		Heuristic: manhattanHeuristic(goal),
		Horizon:   r.TimeHorizon,
		Deadline:  deadline,
	}
	if r.Alternating && mm.DirectionChangeFrequency > 0 {
		req.FoldMod = 2 * mm.DirectionChangeFrequency
	}
	return Search(req)
}

// replanOffTrack cuts the agent's reference plan at t-1, fills it up,
// extends it with the realized position at t, and replans from there.
// The replan starts at the real tick so the alternating variant's
// parity-dependent legality holds.
func (r *RuntimeReplanner) replanOffTrack(st *agentPlanState, realized *core.Plan, t int, mm *core.MapManager, deadline core.Deadline) error {
	st.plan.CutAfter(t - 1)
	st.plan.FillUpTo(t - 1)
	realizedPos, _ := realized.Position(t, true)
	st.plan.AppendPosition(realizedPos)

	goal := agentGoal(st.agent)
	replanned, err := r.planIndependent(mm, st.agent, realizedPos, goal, t, deadline)
	if err != nil {
		if err == core.ErrTimeout {
			return err
		}
		if r.Alternating {
			// An off-track agent that cannot replan under the
			// alternation rule is incapable; the scenario fails.
			logger.Debugw("alternating replanner: agent incapable", "agent", st.agent.ID)
			return core.ErrUnsolvable
		}
		// The static variant carries on without a replan: the cut
		// plan now ends at the realized cell, so later ticks ask the
		// agent to stay there.
		return nil
	}
	st.plan.AppendPlan(replanned)
	return nil
}

func agentGoal(agent *core.Agent) core.Position {
	if agent.Task == nil {
		return agent.Start
	}
	return agent.Task.Delivery()
}

func planNextOrGoal(st *agentPlanState, realized *core.Plan, t int) core.Position {
	if next, ok := st.plan.Position(t+1, true); ok {
		return next
	}
	cur, _ := realized.Position(t, true)
	return cur
}

func allAtGoal(states []*agentPlanState, realized []*core.Plan, t int) bool {
	for i, st := range states {
		cur, _ := realized[i].Position(t, true)
		if cur != agentGoal(st.agent) {
			return false
		}
	}
	return true
}

// staticLegality gates moves purely on the map's passage rule; waits
// are always legal.
func staticLegality(mm *core.MapManager) Legality {
	return func(from, to core.Position, t int) bool {
		if from == to {
			return true
		}
		return mm.PassagePermitted(core.TimedEdge{Edge: core.Edge{From: from, To: to}, Time: t})
	}
}
