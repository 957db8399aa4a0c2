package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// crossingTraversals builds two goal-region traversals confined to
// region 0 of a 10x10 open grid (cells x,y in [0,2] under the
// sqrt-dim sizing rule) whose shortest paths collide head-on: both
// occupy (1,1) at tick 1, and the one-tick-wait repairs then swap
// across the (0,1)-(1,1) edge, so resolution needs both vertex and
// edge constraints.
func crossingTraversals() (*RegionSet, map[TraversalID]*Traversal, map[TraversalID]*core.Plan) {
	m := openGrid(10, 10)
	rs := BuildRegions(m)

	planA := core.NewPlan(1, core.Position{X: 0, Y: 1}, 0)
	planA.AppendPosition(core.Position{X: 1, Y: 1})
	planA.AppendPosition(core.Position{X: 2, Y: 1})
	planB := core.NewPlan(2, core.Position{X: 2, Y: 1}, 0)
	planB.AppendPosition(core.Position{X: 1, Y: 1})
	planB.AppendPosition(core.Position{X: 0, Y: 1})

	travs := map[TraversalID]*Traversal{
		0: {
			Agent: 1, Region: 0,
			Start: core.Position{X: 0, Y: 1}, Target: core.Position{X: 2, Y: 1},
			StartTime: 0, IsGoalRegion: true,
			Predecessor: noTraversal, Successor: noTraversal,
			Plan: planA,
		},
		1: {
			Agent: 2, Region: 0,
			Start: core.Position{X: 2, Y: 1}, Target: core.Position{X: 0, Y: 1},
			StartTime: 0, IsGoalRegion: true,
			Predecessor: noTraversal, Successor: noTraversal,
			Plan: planB,
		},
	}
	initial := map[TraversalID]*core.Plan{0: planA, 1: planB}
	return rs, travs, initial
}

// TestSolveRegionCBSResolvesHeadOnCrossing drives the constraint tree
// through real expansions: the initial solution has a vertex conflict
// at (1,1) tick 1, so the root cannot be returned as-is and at least
// one traversal must be re-planned under added constraints.
func TestSolveRegionCBSResolvesHeadOnCrossing(t *testing.T) {
	rs, travs, initial := crossingTraversals()

	require.NotNil(t, findFirstRegionConflict(travs, initial),
		"fixture must start with a genuine conflict")
	initialCost := sumOfCosts(initial)

	resolved, err := SolveRegionCBS(0, travs, initial, rs, 50, core.NoDeadline())
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	assert.Nil(t, findFirstRegionConflict(travs, resolved),
		"resolved solution must be conflict-free, including goal-region rest semantics")
	assert.Greater(t, sumOfCosts(resolved), initialCost,
		"deconfliction must have lengthened at least one plan, proving constraints were applied")

	for tid, trav := range travs {
		plan := resolved[tid]
		require.NotNilf(t, plan, "traversal %d has no plan", tid)
		assert.Equalf(t, trav.Start, plan.At(0).Pos(), "traversal %d start moved", tid)
		assert.Equalf(t, trav.Target, plan.Last().Pos(), "traversal %d does not end at its target", tid)
		assert.Equalf(t, trav.StartTime, plan.StartTime(), "traversal %d start tick moved", tid)
	}
}

// TestCBSLegalityEnforcesConstraints pins the per-variant rules: a
// vertex constraint blocks arrival at its tick only, an edge
// constraint blocks both directions at its tick, and moves must stay
// on the region's own edges.
func TestCBSLegalityEnforcesConstraints(t *testing.T) {
	rs, _, _ := crossingTraversals()

	constraints := []CBSConstraint{
		{Kind: VertexConstraintKind, Traversal: 0, Pos: core.Position{X: 1, Y: 1}, Time: 1},
		{Kind: EdgeConstraintKind, Traversal: 0, Edge: core.Edge{From: core.Position{X: 0, Y: 1}, To: core.Position{X: 0, Y: 0}}, Time: 2},
	}
	legal := cbsLegality(0, rs, constraints)

	assert.False(t, legal(core.Position{X: 0, Y: 1}, core.Position{X: 1, Y: 1}, 0),
		"move arriving at the constrained vertex on its tick must be illegal")
	assert.True(t, legal(core.Position{X: 0, Y: 1}, core.Position{X: 1, Y: 1}, 1),
		"same move one tick later must be legal")
	assert.False(t, legal(core.Position{X: 0, Y: 1}, core.Position{X: 0, Y: 0}, 2),
		"constrained edge must be illegal at its tick")
	assert.False(t, legal(core.Position{X: 0, Y: 0}, core.Position{X: 0, Y: 1}, 2),
		"constrained edge must be illegal in the reverse direction too")
	assert.True(t, legal(core.Position{X: 0, Y: 1}, core.Position{X: 0, Y: 0}, 3),
		"constrained edge must be legal at other ticks")
	assert.False(t, legal(core.Position{X: 2, Y: 1}, core.Position{X: 3, Y: 1}, 0),
		"a move leaving the region's edge set must be illegal")
}
