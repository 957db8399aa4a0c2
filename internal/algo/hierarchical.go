package algo

import (
	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// HierarchicalPlanner partitions the map into regions and plans at two
// levels: each agent's untimed shortest path is split into per-region
// Traversals, then conflicts are resolved region-by-region via CBS,
// splicing corrected sub-plans back into every agent's low-level plan.
type HierarchicalPlanner struct {
	TimeHorizon int
	TrialLimit  int // per-region CBS safety bound on resolution rounds
}

// NewHierarchicalPlanner creates a planner with the given horizon.
func NewHierarchicalPlanner(timeHorizon, trialLimit int) *HierarchicalPlanner {
	return &HierarchicalPlanner{TimeHorizon: timeHorizon, TrialLimit: trialLimit}
}

func (p *HierarchicalPlanner) Name() string { return "EnhancedHierarchicalPlanner" }

// Solve builds each agent's untimed path, slices it into region
// traversals, then iteratively resolves the first conflicting region
// via CBS until no region has a conflict or TrialLimit rounds pass.
func (p *HierarchicalPlanner) Solve(scenario *core.Scenario, mm *core.MapManager, deadline core.Deadline) (*core.CommonPlan, error) {
	rs := BuildRegions(mm.Map)

	plans := make([]*HighLevelPlan, len(scenario.Agents))
	nextID := TraversalID(0)
	for i, agent := range scenario.Agents {
		goal := agentGoal(agent)
		cells, err := untimedShortestPath(mm.Map, agent.Start, goal)
		if err != nil {
			return nil, err
		}
		hp, used := buildHighLevelPlan(agent, cells, rs, nextID)
		nextID = used
		plans[i] = hp
	}

	for round := 0; round < p.TrialLimit; round++ {
		if deadline.Expired() {
			return nil, core.ErrTimeout
		}
		ri, travs, initial, ok := findConflictingRegion(plans, rs)
		if !ok {
			break
		}
		resolved, err := SolveRegionCBS(ri, travs, initial, rs, p.TimeHorizon, deadline)
		if err != nil {
			logger.Debugw("hierarchical: region CBS failed", "region", ri, "err", err)
			return nil, err
		}
		spliceResolution(plans, travs, resolved)
	}

	cp := core.NewCommonPlan()
	for _, hp := range plans {
		cp.Plans = append(cp.Plans, hp.LowLevelPlan())
	}
	return cp, nil
}

// buildHighLevelPlan slices an agent's untimed cell path into
// contiguous per-region Traversals, assigning globally-unique
// TraversalIDs starting at startID. Returns the next free id.
func buildHighLevelPlan(agent *core.Agent, cells []core.Position, rs *RegionSet, startID TraversalID) (*HighLevelPlan, TraversalID) {
	hp := &HighLevelPlan{Agent: agent.ID, Arena: make(map[TraversalID]*Traversal)}
	id := startID

	type run struct {
		region int
		cells  []core.Position
		t0     int
	}
	var runs []run
	for i, c := range cells {
		ri := rs.RegionIndexOf(c)
		if len(runs) > 0 && runs[len(runs)-1].region == ri {
			runs[len(runs)-1].cells = append(runs[len(runs)-1].cells, c)
			continue
		}
		t0 := i
		runs = append(runs, run{region: ri, cells: []core.Position{c}, t0: t0})
	}

	var prev TraversalID = noTraversal
	for ri, r := range runs {
		tid := id
		id++
		plan := core.NewPlan(agent.ID, r.cells[0], r.t0)
		for _, c := range r.cells[1:] {
			plan.AppendPosition(c)
		}
		trav := &Traversal{
			Agent:        agent.ID,
			Region:       r.region,
			Start:        r.cells[0],
			Target:       r.cells[len(r.cells)-1],
			StartTime:    r.t0,
			IsGoalRegion: ri == len(runs)-1,
			Predecessor:  prev,
			Successor:    noTraversal,
			Plan:         plan,
		}
		hp.Arena[tid] = trav
		hp.Order = append(hp.Order, tid)
		if prev != noTraversal {
			hp.Arena[prev].Successor = tid
		}
		prev = tid
	}
	return hp, id
}

// findConflictingRegion scans every region for a conflict among the
// traversals currently assigned to it and returns the region whose
// first conflict happens earliest, so resolution proceeds in tick
// order.
func findConflictingRegion(plans []*HighLevelPlan, rs *RegionSet) (int, map[TraversalID]*Traversal, map[TraversalID]*core.Plan, bool) {
	byRegion := make(map[int]map[TraversalID]*Traversal)
	for _, hp := range plans {
		for tid, trav := range hp.Arena {
			if byRegion[trav.Region] == nil {
				byRegion[trav.Region] = make(map[TraversalID]*Traversal)
			}
			byRegion[trav.Region][tid] = trav
		}
	}

	bestTime := -1
	var bestRegion int
	var bestTravs map[TraversalID]*Traversal
	var bestSol map[TraversalID]*core.Plan

	for _, r := range rs.Regions {
		travs := byRegion[r.Index]
		if len(travs) < 2 {
			continue
		}
		sol := make(map[TraversalID]*core.Plan, len(travs))
		for tid, trav := range travs {
			sol[tid] = trav.Plan
		}
		if c := findFirstRegionConflict(travs, sol); c != nil {
			if bestTime == -1 || c.time < bestTime {
				bestTime = c.time
				bestRegion = r.Index
				bestTravs = travs
				bestSol = sol
			}
		}
	}
	if bestTime == -1 {
		return 0, nil, nil, false
	}
	return bestRegion, bestTravs, bestSol, true
}

// spliceResolution writes the CBS-resolved plans back into each
// traversal, then re-anchors every touched agent's traversal sequence
// so subsequent traversals shift by the resulting length delta.
func spliceResolution(plans []*HighLevelPlan, travs map[TraversalID]*Traversal, resolved map[TraversalID]*core.Plan) {
	touched := make(map[core.AgentID]bool)
	for tid, newPlan := range resolved {
		trav := travs[tid]
		trav.Plan = newPlan
		touched[trav.Agent] = true
	}
	for _, hp := range plans {
		if touched[hp.Agent] {
			hp.Reanchor()
		}
	}
}

// untimedShortestPath finds a shortest directed cell path from start
// to goal over m's edge set via breadth-first search (unit edge
// weights), ignoring time entirely.
func untimedShortestPath(m *core.Map, start, goal core.Position) ([]core.Position, error) {
	if start == goal {
		return []core.Position{start}, nil
	}
	prev := map[core.Position]core.Position{start: start}
	queue := []core.Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == goal {
			break
		}
		for _, n := range m.Neighbors(cur) {
			if _, seen := prev[n]; seen {
				continue
			}
			prev[n] = cur
			queue = append(queue, n)
		}
	}
	if _, reached := prev[goal]; !reached {
		return nil, core.ErrUnsolvable
	}
	var path []core.Position
	for cur := goal; ; {
		path = append(path, cur)
		if cur == start {
			break
		}
		cur = prev[cur]
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
