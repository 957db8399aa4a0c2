package algo

import (
	"sort"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// TokenPassing is the online, tick-driven lifelong MAPD planner: free
// agents bid for available tasks by true distance, idle agents retreat
// to a resting endpoint, and the whole schedule is advanced one tick
// at a time. One TokenState owns all mutable scheduling state and is
// passed by ownership through the tick loop, never aliased.
type TokenPassing struct {
	TimeHorizon     int
	TaskTimeHorizon int // settle-time floor before a completed run is trusted
}

// NewTokenPassing creates a TP planner with the given tick horizon and
// task-settle floor. "Every task complete and every agent idle" is
// trusted as done only on a tick strictly after taskTimeHorizon; with
// 0 it is accepted from tick 1 on.
func NewTokenPassing(timeHorizon, taskTimeHorizon int) *TokenPassing {
	return &TokenPassing{TimeHorizon: timeHorizon, TaskTimeHorizon: taskTimeHorizon}
}

func (tp *TokenPassing) Name() string { return "TokenPassing" }

// TokenState is the mutable per-run state the Token owns: the shared
// reservation table, every agent's committed plan, the free-agent set,
// the availability-ordered task queue, and the derived available/
// claimed/delivery-cell sets.
type TokenState struct {
	table *ReservationTable

	plans map[core.AgentID]*core.Plan
	pos   map[core.AgentID]core.Position

	free map[core.AgentID]bool

	pending   []*core.Task // not yet available, ordered by Availability
	available map[core.TaskID]*core.Task
	claimed   map[core.TaskID]core.AgentID
	availDeliveryCells map[core.Position]bool
	pickupArrival      map[core.TaskID]int // claimed task -> tick its agent reaches the pickup

	oracle  *core.DistanceOracle
	horizon int
}

// Solve runs the Token-Passing main loop until every task is complete
// and the tick horizon has elapsed, or TimeHorizon ticks pass.
func (tp *TokenPassing) Solve(scenario *core.Scenario, mm *core.MapManager, deadline core.Deadline) (*core.CommonPlan, error) {
	st := newTokenState(scenario)
	st.horizon = tp.TimeHorizon
	if err := st.oracle.Precompute(deadline); err != nil {
		return nil, err
	}

	completed := make(map[core.TaskID]int) // completion tick

	for now := 0; now < tp.TimeHorizon; now++ {
		if deadline.Expired() {
			return nil, core.ErrTimeout
		}

		st.admitAvailableTasks(now)

		for _, agentID := range st.freeSnapshot() {
			if err := st.planForTask(scenario, mm, agentID, now, deadline); err != nil {
				return nil, err
			}
		}

		for _, agentID := range st.freeSnapshot() {
			if err := st.planForEndpoint(scenario, mm, agentID, now, deadline); err != nil {
				return nil, err
			}
		}

		st.step(scenario, now, completed)

		if len(completed) == len(scenario.Tasks) && now > tp.TaskTimeHorizon && st.allIdleSince(now) {
			break
		}
	}

	cp := core.NewCommonPlan()
	for _, agent := range scenario.Agents {
		cp.Plans = append(cp.Plans, st.plans[agent.ID])
	}
	return cp, nil
}

func newTokenState(scenario *core.Scenario) *TokenState {
	var endpoints []core.Position
	seen := make(map[core.Position]bool)
	add := func(p core.Position) {
		if !seen[p] {
			seen[p] = true
			endpoints = append(endpoints, p)
		}
	}
	for _, a := range scenario.Agents {
		add(a.Start)
	}
	for p := range scenario.Map.Parking {
		add(p)
	}
	for _, t := range scenario.Tasks {
		add(t.Pickup())
		add(t.Delivery())
	}

	st := &TokenState{
		table:              NewReservationTable(),
		plans:              make(map[core.AgentID]*core.Plan),
		pos:                make(map[core.AgentID]core.Position),
		free:               make(map[core.AgentID]bool),
		available:          make(map[core.TaskID]*core.Task),
		claimed:            make(map[core.TaskID]core.AgentID),
		availDeliveryCells: make(map[core.Position]bool),
		pickupArrival:      make(map[core.TaskID]int),
		oracle:             core.NewDistanceOracle(scenario.Map, endpoints),
	}

	pending := make([]*core.Task, len(scenario.Tasks))
	copy(pending, scenario.Tasks)
	sort.Slice(pending, func(i, j int) bool { return pending[i].Availability < pending[j].Availability })
	st.pending = pending

	for _, a := range scenario.Agents {
		st.plans[a.ID] = core.NewPlan(a.ID, a.Start, 0)
		st.pos[a.ID] = a.Start
		st.free[a.ID] = true
		st.table.ReserveCell(a.ID, a.Start, 0, true)
	}
	return st
}

// admitAvailableTasks moves every task whose availability time has
// arrived into the available set.
func (st *TokenState) admitAvailableTasks(now int) {
	for len(st.pending) > 0 && st.pending[0].Availability <= now {
		t := st.pending[0]
		st.pending = st.pending[1:]
		st.available[t.ID] = t
		st.availDeliveryCells[t.Delivery()] = true
	}
}

func (st *TokenState) freeSnapshot() []core.AgentID {
	var out []core.AgentID
	for id, isFree := range st.free {
		if isFree {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// planForTask ranks the available, unclaimed tasks whose
// pickup/delivery cell is not another agent's plan terminal by true
// distance to pickup, then tries each until one fully plans (pickup
// leg then delivery leg), committing and claiming on success.
func (st *TokenState) planForTask(scenario *core.Scenario, mm *core.MapManager, agentID core.AgentID, now int, deadline core.Deadline) error {
	if !st.free[agentID] {
		return nil
	}
	agentPos := st.pos[agentID]

	type candidate struct {
		task *core.Task
		dist int
	}
	agent := scenario.AgentByID(agentID)

	var cands []candidate
	for _, task := range st.available {
		if _, claimed := st.claimed[task.ID]; claimed {
			continue
		}
		if agent != nil && !agent.CanPerform(task) {
			continue
		}
		if st.isPlanTerminal(task.Pickup(), agentID) || st.isPlanTerminal(task.Delivery(), agentID) {
			continue
		}
		d, err := st.oracle.Distance(agentPos, task.Pickup())
		if err == core.ErrDistanceTableMiss {
			return err
		}
		if err != nil {
			continue
		}
		cands = append(cands, candidate{task: task, dist: d})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if len(cands) == 0 {
		return nil
	}

	// Release the agent's own claims (including its permanent rest)
	// before searching, so they cannot block its own replan; restore
	// the rest claim if no candidate works out.
	full := st.releaseAndKeepPrefix(agentID, now)

	for _, c := range cands {
		toPickup, err := Search(SearchRequest{
			Agent:     agentID,
			Start:     core.AtTime(agentPos, now),
			Goal:      c.task.Pickup(),
			Legality:  caLegality(st.table, mm),
			Heuristic: trueDistanceHeuristic(st.oracle, c.task.Pickup()),
			Horizon:   st.horizon,
			Deadline:  deadline,
		})
		if err != nil {
			continue
		}

		toDelivery, err := Search(SearchRequest{
			Agent:     agentID,
			Start:     toPickup.Last(),
			Goal:      c.task.Delivery(),
			Legality:  caLegality(st.table, mm),
			Heuristic: trueDistanceHeuristic(st.oracle, c.task.Delivery()),
			Horizon:   st.horizon,
			GoalAccept: func(pos core.Position, t int) bool {
				return st.table.IsFreeForever(pos, t)
			},
			Deadline: deadline,
		})
		if err != nil {
			continue
		}

		full.AppendPlan(toPickup)
		full.AppendPlan(toDelivery)
		st.table.ReservePath(agentID, toPickup, true, false)
		st.table.ReservePath(agentID, toDelivery, true, true)

		st.claimTask(c.task, agentID)
		st.pickupArrival[c.task.ID] = toPickup.EndTime()
		return nil
	}

	st.restoreRest(agentID, agentPos, now)
	return nil
}

// releaseAndKeepPrefix cancels every reservation held by agentID, cuts
// its plan at now, and re-reserves just the realized prefix without a
// permanent tail. The returned plan is ready for new legs to be
// appended; if none are, call restoreRest to reinstate the agent's
// resting claim.
func (st *TokenState) releaseAndKeepPrefix(agentID core.AgentID, now int) *core.Plan {
	st.table.CancelAgentReservations(agentID)
	full := st.plans[agentID]
	full.CutAfter(now)
	full.FillUpTo(now)
	st.table.ReservePath(agentID, full, false, false)
	return full
}

// restoreRest reinstates a permanent-from claim on the cell the agent
// keeps resting at after a failed replan attempt.
func (st *TokenState) restoreRest(agentID core.AgentID, pos core.Position, now int) {
	st.table.ReserveCell(agentID, pos, now, true)
}

// planForEndpoint sends a task-less free agent to a resting endpoint
// chosen by true distance, excluding delivery cells of available tasks
// and cells where resting is not allowed; falls back to waiting one
// tick in place.
func (st *TokenState) planForEndpoint(scenario *core.Scenario, mm *core.MapManager, agentID core.AgentID, now int, deadline core.Deadline) error {
	if !st.free[agentID] {
		return nil
	}
	agentPos := st.pos[agentID]
	full := st.releaseAndKeepPrefix(agentID, now)

	type candidate struct {
		pos  core.Position
		dist int
	}
	var cands []candidate
	for _, ep := range st.oracle.Endpoints() {
		if st.availDeliveryCells[ep] {
			continue
		}
		if !st.table.RestingAllowed(ep, now) {
			continue
		}
		d, err := st.oracle.Distance(agentPos, ep)
		if err == core.ErrDistanceTableMiss {
			return err
		}
		if err != nil {
			continue
		}
		cands = append(cands, candidate{pos: ep, dist: d})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	for _, c := range cands {
		plan, err := Search(SearchRequest{
			Agent:     agentID,
			Start:     core.AtTime(agentPos, now),
			Goal:      c.pos,
			Legality:  caLegality(st.table, mm),
			Heuristic: trueDistanceHeuristic(st.oracle, c.pos),
			Horizon:   st.horizon,
			GoalAccept: func(pos core.Position, t int) bool {
				return st.table.IsFreeForever(pos, t)
			},
			Deadline: deadline,
		})
		if err != nil {
			continue
		}
		full.AppendPlan(plan)
		st.table.ReservePath(agentID, plan, true, true)
		return nil
	}

	// Fall back to waiting one tick in place.
	if st.table.IsCellFree(agentPos, now+1) {
		full.FillUpTo(now + 1)
		st.table.ReserveCell(agentID, agentPos, now+1, false)
		return nil
	}
	return core.ErrUnsolvable
}

// isPlanTerminal reports whether pos is another agent's current
// committed plan's final (permanent-rest) position. excluding is the
// querying agent's own id: an agent already resting on a task's cell
// is still free to bid on that task itself.
func (st *TokenState) isPlanTerminal(pos core.Position, excluding core.AgentID) bool {
	for agentID, p := range st.plans {
		if agentID == excluding {
			continue
		}
		if p.Last().Pos() == pos {
			return true
		}
	}
	return false
}

// claimTask moves task from available to claimed, drops agentID from
// the free set, and removes its delivery cell from the available-
// delivery-cells set.
func (st *TokenState) claimTask(task *core.Task, agentID core.AgentID) {
	delete(st.available, task.ID)
	delete(st.availDeliveryCells, task.Delivery())
	st.claimed[task.ID] = agentID
	st.free[agentID] = false
}

// setTaskComplete records completion, releases the claim, and frees
// the agent.
func (st *TokenState) setTaskComplete(task *core.Task, agentID core.AgentID, now int) {
	task.MarkCompleted(now)
	delete(st.claimed, task.ID)
	delete(st.pickupArrival, task.ID)
	st.free[agentID] = true
}

// step advances every agent one tick: update position, mark the task
// started when its agent reaches the pickup, and complete the task on
// delivery-arrival.
func (st *TokenState) step(scenario *core.Scenario, now int, completed map[core.TaskID]int) {
	for agentID, plan := range st.plans {
		pos, _ := plan.Position(now, true)
		st.pos[agentID] = pos

		for taskID, owner := range st.claimed {
			if owner != agentID {
				continue
			}
			task := scenario.TaskByID(taskID)
			if task == nil {
				continue
			}
			if arrival, ok := st.pickupArrival[taskID]; ok && now == arrival {
				task.MarkStarted(now)
			}
			if pos == task.Delivery() && now >= plan.EndTime() {
				st.setTaskComplete(task, agentID, now)
				completed[taskID] = now
			}
		}
	}
}

// allIdleSince reports whether every agent is currently free (used to
// decide when a completed MAPD run has settled).
func (st *TokenState) allIdleSince(now int) bool {
	for _, isFree := range st.free {
		if !isFree {
			return false
		}
	}
	return true
}

// trueDistanceHeuristic wraps the oracle as a Heuristic, which has no
// error return; goal is always a registered endpoint here, so the only
// possible miss is ErrUnsolvable (pos cannot reach goal), for which
// falling back to the Manhattan lower bound keeps the search admissible
// rather than aborting on an unreachable intermediate node.
func trueDistanceHeuristic(oracle *core.DistanceOracle, goal core.Position) Heuristic {
	return func(pos core.Position) int {
		d, err := oracle.Distance(pos, goal)
		if err != nil {
			return pos.Manhattan(goal)
		}
		return d
	}
}
