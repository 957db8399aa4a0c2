package algo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/mapf-core/internal/core"
)

func openGrid(w, h int) *core.Map {
	m := core.NewMap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := core.Position{X: x, Y: y}
			for _, n := range core.Neighbors4(p) {
				if m.InBounds(n) {
					m.AddEdge(p, n)
				}
			}
		}
	}
	return m
}

func alwaysLegal(core.Position, core.Position, int) bool { return true }

// testAStarMaze builds a 9x5 map whose free
// cells are the interior 7x3 rectangle (x in [1,7], y in [1,3]) and
// whose border (the outermost ring) is 24 obstacle cells, wired with
// exactly 32 directed edges (16 undirected): a 5-edge forced detour
// from (1,1) to (2,1) via row y=3 (since no direct (1,1)-(2,1) edge
// exists), plus an 11-edge side corridor touching unrelated free cells
// so the total edge count matches the fixture without providing any
// shortcut back to (2,1).
func testAStarMaze() *core.Map {
	m := core.NewMap(9, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 9; x++ {
			if x < 1 || x > 7 || y < 1 || y > 3 {
				m.Obstacles[core.Position{X: x, Y: y}] = true
			}
		}
	}

	detour := []core.Position{
		{X: 1, Y: 1}, {X: 1, Y: 2}, {X: 1, Y: 3},
		{X: 2, Y: 3}, {X: 2, Y: 2}, {X: 2, Y: 1},
	}
	for i := 0; i < len(detour)-1; i++ {
		m.AddEdgeBothWays(detour[i], detour[i+1])
	}

	sideCorridor := []core.Position{
		{X: 3, Y: 1}, {X: 3, Y: 2}, {X: 3, Y: 3},
		{X: 4, Y: 3}, {X: 4, Y: 2}, {X: 4, Y: 1},
		{X: 5, Y: 1}, {X: 5, Y: 2}, {X: 5, Y: 3},
		{X: 6, Y: 3}, {X: 6, Y: 2}, {X: 6, Y: 1},
	}
	for i := 0; i < len(sideCorridor)-1; i++ {
		m.AddEdgeBothWays(sideCorridor[i], sideCorridor[i+1])
	}

	return m
}

// TestSearchMazeForcedDetour: on the 9x5 maze fixture (32 edges, 24
// obstacles), from (1,1) to (2,1), the timed A* min-cost is 5 (the
// direct adjacency is walled off, forcing the detour through row y=3).
func TestSearchMazeForcedDetour(t *testing.T) {
	m := testAStarMaze()
	mm := core.NewMapManager(m, 0)
	start, goal := core.Position{X: 1, Y: 1}, core.Position{X: 2, Y: 1}

	plan, err := Search(SearchRequest{
		Start:     core.AtTime(start, 0),
		Goal:      goal,
		Legality:  staticLegality(mm),
		Heuristic: manhattanHeuristic(goal),
		Horizon:   100,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, plan.EndTime(), "expected min-cost 5 through the forced detour")
	assert.Equal(t, 6, plan.Len())
}

// TestSearchOpenGridCornerToCorner: on a 5x5 open grid from (0,0) to
// (4,4), the returned plan has length 9 (start + 8 moves).
func TestSearchOpenGridCornerToCorner(t *testing.T) {
	goal := core.Position{X: 4, Y: 4}
	plan, err := Search(SearchRequest{
		Start:     core.AtTime(core.Position{X: 0, Y: 0}, 0),
		Goal:      goal,
		Legality:  alwaysLegal,
		Heuristic: manhattanHeuristic(goal),
		Horizon:   100,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, plan.Len())
	assert.Equal(t, 8, plan.EndTime())
	assert.Equal(t, goal, plan.Last().Pos())
}

func TestSearchHorizonZeroStartEqualsGoal(t *testing.T) {
	start := core.Position{X: 2, Y: 2}
	plan, err := Search(SearchRequest{
		Start:     core.AtTime(start, 0),
		Goal:      start,
		Legality:  alwaysLegal,
		Heuristic: manhattanHeuristic(start),
		Horizon:   0,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Len(), "time horizon = 0, start = goal")
}

func TestSearchHorizonExceeded(t *testing.T) {
	goal := core.Position{X: 4, Y: 4}
	_, err := Search(SearchRequest{
		Start:     core.AtTime(core.Position{X: 0, Y: 0}, 0),
		Goal:      goal,
		Legality:  alwaysLegal,
		Heuristic: manhattanHeuristic(goal),
		Horizon:   2,
	})
	assert.ErrorIs(t, err, core.ErrHorizonExceeded)
}

// TestAlternatingAStarFoldsClosedSetKey: on a 10x10 map alternating
// with f=2, from (0,0) to (9,0), the folded search still finds a
// length-10 plan. Moving right from column t at tick t keeps
// t/f + x/f even, so each rightward edge is open when the agent
// reaches it and the plan has no waits.
func TestAlternatingAStarFoldsClosedSetKey(t *testing.T) {
	m := openGrid(10, 10)
	mm := core.NewMapManager(m, 2)
	goal := core.Position{X: 9, Y: 0}

	plan, err := Search(SearchRequest{
		Start:     core.AtTime(core.Position{X: 0, Y: 0}, 0),
		Goal:      goal,
		Legality:  staticLegality(mm),
		Heuristic: manhattanHeuristic(goal),
		Horizon:   100,
		FoldMod:   2 * mm.DirectionChangeFrequency,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, plan.Len())
}

// TestAlternatingAStarFZeroBehavesLikeStatic substitutes f=0 and
// expects a pure-moves length-10 plan, same as the static case.
func TestAlternatingAStarFZeroBehavesLikeStatic(t *testing.T) {
	m := openGrid(10, 10)
	mm := core.NewMapManager(m, 0)
	goal := core.Position{X: 9, Y: 0}

	plan, err := Search(SearchRequest{
		Start:     core.AtTime(core.Position{X: 0, Y: 0}, 0),
		Goal:      goal,
		Legality:  staticLegality(mm),
		Heuristic: manhattanHeuristic(goal),
		Horizon:   100,
	})
	require.NoError(t, err)
	require.Equal(t, 10, plan.Len())
	for i := 1; i < plan.Len(); i++ {
		assert.NotEqualf(t, plan.At(i-1).Pos(), plan.At(i).Pos(), "f=0 plan should contain no waits, found one at step %d", i)
	}
}

func TestSearchTieBreakIsDeterministic(t *testing.T) {
	goal := core.Position{X: 3, Y: 3}
	req := SearchRequest{
		Start:     core.AtTime(core.Position{X: 0, Y: 0}, 0),
		Goal:      goal,
		Legality:  alwaysLegal,
		Heuristic: manhattanHeuristic(goal),
		Horizon:   50,
	}
	first, err := Search(req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Search(req)
		require.NoError(t, err)
		require.Equal(t, first.Len(), again.Len(), "plan length diverged across repeated identical searches")
		for j := range first.Steps() {
			assert.Equalf(t, first.At(j), again.At(j), "search is not deterministic: step %d diverged", j)
		}
	}
}
