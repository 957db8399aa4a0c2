package algo

import (
	"math"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// Region is an axis-aligned rectangle of the grid with inclusive
// bounds. A region owns the set of edges both of whose endpoints lie
// inside it, held in the RegionSet.
type Region struct {
	Index                  int
	MinX, MinY, MaxX, MaxY int
}

// Contains reports whether p falls within the region's bounds.
func (r Region) Contains(p core.Position) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// HasEdge reports whether the region's pruned edge set contains the
// directed edge from->to. This is exposed on RegionSet, not Region
// itself, since the edge set is computed once over the whole map.

// RegionSet partitions a map into regions sized so that both the
// number of regions per row and the size of each region are
// approximately sqrt(dim).
type RegionSet struct {
	Regions []Region
	edgesIn map[int]map[core.Edge]bool // region index -> edges wholly inside it
	side    int
	perRow  int
}

// BuildRegions partitions m into a grid of roughly-square regions and
// computes, for each region, the subset of m's edges with both
// endpoints inside it. When m was undirected by copy, edges flagged
// as copies that straddle a region boundary are removed from m first,
// restoring directional asymmetry at region borders.
func BuildRegions(m *core.Map) *RegionSet {
	dim := m.Width
	if m.Height > dim {
		dim = m.Height
	}
	side := int(math.Round(math.Sqrt(float64(dim))))
	if side < 1 {
		side = 1
	}

	rs := &RegionSet{
		edgesIn: make(map[int]map[core.Edge]bool),
		side:    side,
		perRow:  (m.Width + side - 1) / side,
	}

	idx := 0
	for y0 := 0; y0 < m.Height; y0 += side {
		for x0 := 0; x0 < m.Width; x0 += side {
			x1 := min(x0+side-1, m.Width-1)
			y1 := min(y0+side-1, m.Height-1)
			rs.Regions = append(rs.Regions, Region{Index: idx, MinX: x0, MinY: y0, MaxX: x1, MaxY: y1})
			idx++
		}
	}

	m.RemoveCopyEdgesCrossing(func(p core.Position) int { return rs.RegionIndexOf(p) })

	for _, e := range m.Edges() {
		ri := rs.RegionIndexOf(e.From)
		if ri == rs.RegionIndexOf(e.To) {
			if rs.edgesIn[ri] == nil {
				rs.edgesIn[ri] = make(map[core.Edge]bool)
			}
			rs.edgesIn[ri][e] = true
		}
	}
	return rs
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// RegionIndexOf returns the region index containing p. Regions are
// laid out row-major, so the index is computed directly from the side
// length.
func (rs *RegionSet) RegionIndexOf(p core.Position) int {
	return (p.Y/rs.side)*rs.perRow + p.X/rs.side
}

// HasEdge reports whether the directed edge from->to belongs to
// region ri's pruned edge set.
func (rs *RegionSet) HasEdge(ri int, from, to core.Position) bool {
	return rs.edgesIn[ri][core.Edge{From: from, To: to}]
}

// TraversalID indexes into a HighLevelPlan's traversal arena, avoiding
// pointer cycles between predecessor/successor links.
type TraversalID int

// Traversal is one agent's pass through one region: start/target
// cells within the region, the tick it starts at, whether this region
// is the agent's goal region, and its slice of the agent's low-level
// plan.
type Traversal struct {
	Agent       core.AgentID
	Region      int
	Start       core.Position
	Target      core.Position
	StartTime   int
	IsGoalRegion bool
	Predecessor TraversalID // -1 if none
	Successor   TraversalID // -1 if none
	Plan        *core.Plan  // this traversal's slice of the low-level plan
}

const noTraversal TraversalID = -1

// HighLevelPlan is one agent's ordered sequence of traversals plus a
// cached concatenated low-level plan. Arena is keyed by TraversalID
// rather than sliced by it so that the hierarchical planner can hand
// out globally-unique ids across agents (needed when several agents'
// traversals must be grouped together for a single region's CBS run).
type HighLevelPlan struct {
	Agent core.AgentID
	Arena map[TraversalID]*Traversal
	Order []TraversalID // traversal visiting order
}

// LowLevelPlan concatenates the traversals' plans in order. Traversal
// k+1's first tick equals traversal k's last tick plus one, so each
// traversal contributes all of its entries.
func (hp *HighLevelPlan) LowLevelPlan() *core.Plan {
	if len(hp.Order) == 0 {
		return nil
	}
	full := hp.Arena[hp.Order[0]].Plan.Clone()
	for _, tid := range hp.Order[1:] {
		for _, s := range hp.Arena[tid].Plan.Steps() {
			full.AppendPosition(s.Pos())
		}
	}
	return full
}

// Reanchor restores the concatenation invariant after a region CBS
// replaced some traversal plans: each traversal's plan must begin one
// tick after its predecessor's last, so later traversals are shifted
// by the accumulated length delta.
func (hp *HighLevelPlan) Reanchor() {
	for i := 1; i < len(hp.Order); i++ {
		prev := hp.Arena[hp.Order[i-1]]
		trav := hp.Arena[hp.Order[i]]
		expected := prev.Plan.EndTime() + 1
		if delta := expected - trav.Plan.StartTime(); delta != 0 {
			shiftTraversal(trav, delta)
		}
	}
}

func shiftTraversal(trav *Traversal, delta int) {
	steps := trav.Plan.Steps()
	shifted := core.NewPlan(trav.Agent, steps[0].Pos(), steps[0].T+delta)
	for _, s := range steps[1:] {
		shifted.AppendPosition(s.Pos())
	}
	trav.Plan = shifted
	trav.StartTime += delta
}
