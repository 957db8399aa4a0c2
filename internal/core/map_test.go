package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildOpenGrid(w, h int) *Map {
	m := NewMap(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := Position{X: x, Y: y}
			for _, n := range Neighbors4(p) {
				if m.InBounds(n) {
					m.AddEdge(p, n)
				}
			}
		}
	}
	return m
}

func TestUndirectIdempotent(t *testing.T) {
	m := NewMap(3, 3)
	m.AddEdge(Position{0, 0}, Position{1, 0})

	m.Undirect()
	first := len(m.Edges())

	m.Undirect()
	second := len(m.Edges())

	assert.Equal(t, first, second, "Undirect should be idempotent")
}

func TestRemoveCopyEdgesCrossing(t *testing.T) {
	m := NewMap(4, 1)
	m.AddEdge(Position{0, 0}, Position{1, 0})
	m.Undirect()

	region := func(p Position) int {
		if p.X < 1 {
			return 0
		}
		return 1
	}
	m.RemoveCopyEdgesCrossing(region)

	assert.False(t, m.HasEdge(Position{1, 0}, Position{0, 0}), "cross-region copy edge should have been removed")
	assert.True(t, m.HasEdge(Position{0, 0}, Position{1, 0}), "original directed edge must survive")
}

func TestMapManagerStaticAlwaysPermitted(t *testing.T) {
	m := buildOpenGrid(3, 3)
	mm := NewMapManager(m, 0)
	te := TimedEdge{Edge: Edge{From: Position{0, 0}, To: Position{1, 0}}, Time: 5}
	assert.True(t, mm.PassagePermitted(te), "static map manager (f=0) should always permit an existing edge")
}

func TestMapManagerDynamicBehavesLikeStaticWhenFZero(t *testing.T) {
	m := buildOpenGrid(4, 4)
	static := NewMapManager(m, 0)
	dynamic := NewMapManager(m, 0)

	for t0 := 0; t0 < 6; t0++ {
		for _, e := range m.Edges() {
			te := TimedEdge{Edge: e, Time: t0}
			require.Equalf(t, static.PassagePermitted(te), dynamic.PassagePermitted(te), "f=0 manager diverged from itself at %v,%d", e, t0)
		}
	}
}

func TestMapManagerAlternatesDirection(t *testing.T) {
	m := buildOpenGrid(4, 4)
	mm := NewMapManager(m, 2)
	e := Edge{From: Position{0, 0}, To: Position{1, 0}}
	rev := e.Reverse()

	permittedTicks := 0
	for tick := 0; tick < 8; tick++ {
		fwd := mm.PassagePermitted(TimedEdge{Edge: e, Time: tick})
		back := mm.PassagePermitted(TimedEdge{Edge: rev, Time: tick})
		assert.Falsef(t, fwd && back, "tick %d: both directions permitted simultaneously", tick)
		if fwd {
			permittedTicks++
		}
	}
	assert.NotZero(t, permittedTicks, "expected the horizontal direction to alternate")
	assert.NotEqual(t, 8, permittedTicks, "expected the horizontal direction to alternate")
}
