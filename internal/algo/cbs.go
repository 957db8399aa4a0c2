package algo

import (
	"container/heap"
	"sort"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// ConstraintKind tags a CBS constraint's variant.
type ConstraintKind int

const (
	VertexConstraintKind ConstraintKind = iota
	EdgeConstraintKind
)

// CBSConstraint forbids a traversal from occupying a cell at a tick
// (vertex) or using an edge (and its reverse) at a tick (edge).
// Value-equal by (traversal, timed value).
type CBSConstraint struct {
	Kind      ConstraintKind
	Traversal TraversalID
	Pos       core.Position // vertex constraint payload
	Edge      core.Edge     // edge constraint payload
	Time      int
}

// cbsConflict is the first detected collision between two traversals.
type cbsConflict struct {
	t1, t2 TraversalID
	isEdge bool
	pos    core.Position
	edge1  core.Edge // traversal t1's direction
	time   int
}

// cbsNode is one node of the constraint tree. seq keeps expansion
// insertion-order-stable on equal cost.
type cbsNode struct {
	constraints []CBSConstraint
	solution    map[TraversalID]*core.Plan
	cost        int
	seq         int
	index       int
}

type cbsHeap []*cbsNode

func (h cbsHeap) Len() int { return len(h) }
func (h cbsHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].seq < h[j].seq
}
func (h cbsHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *cbsHeap) Push(x any) {
	n := x.(*cbsNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *cbsHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// SolveRegionCBS runs conflict-based search restricted to the given
// traversal set within one region. travs maps a
// TraversalID to its Traversal struct (for goal-region/legality info);
// initial gives each traversal's starting plan (already computed up
// to the fixed prefix). rs and horizon feed the per-traversal re-plan
// search.
func SolveRegionCBS(ri int, travs map[TraversalID]*Traversal, initial map[TraversalID]*core.Plan, rs *RegionSet, horizon int, deadline core.Deadline) (map[TraversalID]*core.Plan, error) {
	root := &cbsNode{solution: cloneSolution(initial)}
	root.cost = sumOfCosts(root.solution)

	open := &cbsHeap{}
	heap.Init(open)
	heap.Push(open, root)
	nextSeq := 1

	for open.Len() > 0 {
		if deadline.Expired() {
			return nil, core.ErrTimeout
		}
		node := heap.Pop(open).(*cbsNode)

		conflict := findFirstRegionConflict(travs, node.solution)
		if conflict == nil {
			return node.solution, nil
		}

		for _, tid := range []TraversalID{conflict.t1, conflict.t2} {
			child := &cbsNode{
				constraints: append(append([]CBSConstraint{}, node.constraints...), constraintFor(conflict, tid)),
				solution:    cloneSolution(node.solution),
			}
			trav := travs[tid]
			replanned, err := replanTraversal(trav, tid, ri, rs, child.constraints, horizon, deadline)
			if err != nil {
				logger.Debugw("cbs child replan failed", "region", ri, "traversal", tid, "err", err)
				continue
			}
			child.solution[tid] = replanned
			child.cost = sumOfCosts(child.solution)
			child.seq = nextSeq
			nextSeq++
			heap.Push(open, child)
		}
	}

	return nil, core.ErrUnsolvable
}

func cloneSolution(sol map[TraversalID]*core.Plan) map[TraversalID]*core.Plan {
	out := make(map[TraversalID]*core.Plan, len(sol))
	for k, v := range sol {
		out[k] = v.Clone()
	}
	return out
}

func sumOfCosts(sol map[TraversalID]*core.Plan) int {
	sum := 0
	for _, p := range sol {
		sum += p.Len()
	}
	return sum
}

func constraintFor(c *cbsConflict, tid TraversalID) CBSConstraint {
	if !c.isEdge {
		return CBSConstraint{Kind: VertexConstraintKind, Traversal: tid, Pos: c.pos, Time: c.time}
	}
	edge := c.edge1
	if tid == c.t2 {
		edge = edge.Reverse()
	}
	return CBSConstraint{Kind: EdgeConstraintKind, Traversal: tid, Edge: edge, Time: c.time}
}

// replanTraversal re-plans just the given traversal under the CBS
// legality predicate: the constraints addressed to this traversal plus
// region edge membership.
func replanTraversal(trav *Traversal, travID TraversalID, ri int, rs *RegionSet, constraints []CBSConstraint, horizon int, deadline core.Deadline) (*core.Plan, error) {
	var mine []CBSConstraint
	for _, c := range constraints {
		if c.Traversal == travID {
			mine = append(mine, c)
		}
	}

	legality := cbsLegality(ri, rs, mine)
	return Search(SearchRequest{
		Agent:     trav.Agent,
		Start:     core.AtTime(trav.Start, trav.StartTime),
		Goal:      trav.Target,
		Legality:  legality,
		Heuristic: manhattanHeuristic(trav.Target),
		Horizon:   horizon,
		Deadline:  deadline,
	})
}

// cbsLegality permits a move iff no vertex constraint matches the
// destination at arrival, no edge constraint matches the edge (in
// either direction) at departure, and the edge belongs to the region's
// pruned edge set.
func cbsLegality(ri int, rs *RegionSet, constraints []CBSConstraint) Legality {
	return func(from, to core.Position, t int) bool {
		if from == to {
			// Wait: only vertex constraints at t+1 apply.
			for _, c := range constraints {
				if c.Kind == VertexConstraintKind && c.Pos == to && c.Time == t+1 {
					return false
				}
			}
			return true
		}
		if !rs.HasEdge(ri, from, to) {
			return false
		}
		for _, c := range constraints {
			switch c.Kind {
			case VertexConstraintKind:
				if c.Pos == to && c.Time == t+1 {
					return false
				}
			case EdgeConstraintKind:
				if c.Time == t && (c.Edge == (core.Edge{From: from, To: to}) || c.Edge == (core.Edge{From: to, To: from})) {
					return false
				}
			}
		}
		return true
	}
}

// findFirstRegionConflict scans every pair of traversals touching the
// same region from their earliest start tick to the max plan end,
// returning the first vertex or edge conflict.
func findFirstRegionConflict(travs map[TraversalID]*Traversal, sol map[TraversalID]*core.Plan) *cbsConflict {
	ids := make([]TraversalID, 0, len(travs))
	for id := range travs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	maxT := 0
	minT := -1
	for _, id := range ids {
		p := sol[id]
		if p == nil {
			continue
		}
		if p.EndTime() > maxT {
			maxT = p.EndTime()
		}
		if minT == -1 || p.StartTime() < minT {
			minT = p.StartTime()
		}
	}
	if minT == -1 {
		return nil
	}

	// Tick-outermost scan so the earliest conflict (vertex before edge
	// at the same tick) is always the one returned.
	for t := minT; t <= maxT; t++ {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				p1, ok1 := positionInRegion(travs[ids[i]], sol[ids[i]], t)
				p2, ok2 := positionInRegion(travs[ids[j]], sol[ids[j]], t)
				if ok1 && ok2 && p1 == p2 {
					return &cbsConflict{t1: ids[i], t2: ids[j], pos: p1, time: t}
				}
			}
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				a0, ok1 := positionInRegion(travs[ids[i]], sol[ids[i]], t)
				a1, ok1b := positionInRegion(travs[ids[i]], sol[ids[i]], t+1)
				b0, ok2 := positionInRegion(travs[ids[j]], sol[ids[j]], t)
				b1, ok2b := positionInRegion(travs[ids[j]], sol[ids[j]], t+1)
				if ok1 && ok1b && ok2 && ok2b && a0 == b1 && a1 == b0 && a0 != a1 {
					return &cbsConflict{t1: ids[i], t2: ids[j], isEdge: true, edge1: core.Edge{From: a0, To: a1}, time: t}
				}
			}
		}
	}

	return nil
}

// positionInRegion returns the traversal's position at t. For
// goal-region traversals, past-end means the agent stays at its target
// forever; for others, past-end means it has left the region.
func positionInRegion(trav *Traversal, plan *core.Plan, t int) (core.Position, bool) {
	if plan == nil {
		return core.Position{}, false
	}
	if t < plan.StartTime() {
		return core.Position{}, false
	}
	if t > plan.EndTime() {
		if trav.IsGoalRegion {
			return plan.Last().Pos(), true
		}
		return core.Position{}, false
	}
	return plan.Position(t, true)
}
