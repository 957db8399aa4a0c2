package core

import "sort"

// Map is a set of directed edges over a bounded grid, plus the cells
// that are obstacles or parking spots. Adjacency is keyed by source
// cell.
type Map struct {
	Width, Height int
	edges         map[Position]map[Position]bool
	// copyEdges marks edges that were added by Undirect as the reverse
	// of an existing directed edge, so the hierarchical layer can strip
	// them back out at region borders.
	copyEdges map[Edge]bool
	Obstacles map[Position]bool
	Parking   map[Position]bool
}

// NewMap creates an empty map of the given dimensions.
func NewMap(width, height int) *Map {
	return &Map{
		Width:     width,
		Height:    height,
		edges:     make(map[Position]map[Position]bool),
		copyEdges: make(map[Edge]bool),
		Obstacles: make(map[Position]bool),
		Parking:   make(map[Position]bool),
	}
}

// AddEdge adds a single directed edge from -> to.
func (m *Map) AddEdge(from, to Position) {
	if m.edges[from] == nil {
		m.edges[from] = make(map[Position]bool)
	}
	m.edges[from][to] = true
}

// AddEdgeBothWays adds the edge and its reverse as ordinary (non-copy) edges.
func (m *Map) AddEdgeBothWays(a, b Position) {
	m.AddEdge(a, b)
	m.AddEdge(b, a)
}

// HasEdge reports whether the directed edge from->to is present.
func (m *Map) HasEdge(from, to Position) bool {
	return m.edges[from] != nil && m.edges[from][to]
}

// Edges returns every directed edge in the map.
func (m *Map) Edges() []Edge {
	var out []Edge
	for from, tos := range m.edges {
		for to := range tos {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}

// Neighbors returns the cells reachable by one directed edge from p,
// in a stable (x, y) order so untimed searches are deterministic.
func (m *Map) Neighbors(p Position) []Position {
	var out []Position
	for to := range m.edges[p] {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

// IsCopy reports whether e was added by Undirect as a reverse copy.
func (m *Map) IsCopy(e Edge) bool {
	return m.copyEdges[e]
}

// Undirect adds, for every directed edge, its reverse if absent,
// marking each added reverse as a copy. Idempotent: calling it again
// on an already-undirected map adds no new edges (every reverse is
// already present).
func (m *Map) Undirect() {
	for _, e := range m.Edges() {
		rev := e.Reverse()
		if !m.HasEdge(rev.From, rev.To) {
			m.AddEdge(rev.From, rev.To)
			m.copyEdges[rev] = true
		}
	}
}

// RemoveCopyEdgesCrossing removes copy-marked edges whose endpoints
// fall in different regions, restoring directional asymmetry at
// region borders. regionOf maps a cell to its region index.
func (m *Map) RemoveCopyEdgesCrossing(regionOf func(Position) int) {
	for e := range m.copyEdges {
		if regionOf(e.From) != regionOf(e.To) {
			if m.edges[e.From] != nil {
				delete(m.edges[e.From], e.To)
			}
			delete(m.copyEdges, e)
		}
	}
}

// InBounds reports whether p lies within the map's dimensions.
func (m *Map) InBounds(p Position) bool {
	return p.X >= 0 && p.X < m.Width && p.Y >= 0 && p.Y < m.Height
}

// MapManager wraps a Map and a direction-change frequency, answering
// whether a directed edge is passable at a given time. f=0 is the
// static case; f>0 alternates edge direction over time per the parity
// rule below.
type MapManager struct {
	Map                      *Map
	DirectionChangeFrequency int // f
}

// NewMapManager creates a manager over m with the given alternation
// frequency (0 = static).
func NewMapManager(m *Map, f int) *MapManager {
	return &MapManager{Map: m, DirectionChangeFrequency: f}
}

// PassagePermitted reports whether the directed edge te.Edge may be
// traversed at tick te.Time.
func (mm *MapManager) PassagePermitted(te TimedEdge) bool {
	if !mm.Map.HasEdge(te.Edge.From, te.Edge.To) {
		return false
	}
	if mm.DirectionChangeFrequency <= 0 {
		return true
	}
	return mm.dynamicParityAllows(te.Edge, te.Time)
}

// dynamicParityAllows implements the alternating-direction rule:
// period = timeframe + section + axis + orientationFlag, horizontal
// edges permitted iff period is odd, vertical iff even. Directions
// flip globally every f ticks and checkerboard between adjacent
// rows/columns.
func (mm *MapManager) dynamicParityAllows(e Edge, t int) bool {
	f := mm.DirectionChangeFrequency
	timeframe := t / f

	var section int
	var orientationFlag int
	switch {
	case e.Horizontal():
		minAxis := e.From.X
		if e.To.X < minAxis {
			minAxis = e.To.X
		}
		section = minAxis / f
		if e.To.X > e.From.X {
			orientationFlag = 1
		}
	case e.Vertical():
		minAxis := e.From.Y
		if e.To.Y < minAxis {
			minAxis = e.To.Y
		}
		section = minAxis / f
		if e.To.Y > e.From.Y {
			orientationFlag = 1
		}
	default:
		// Wait "edge" (From == To): always permitted; the parity rule
		// only governs genuine moves.
		return true
	}

	period := timeframe + section + section2Axis(e) + orientationFlag
	if e.Horizontal() {
		return period%2 != 0
	}
	return period%2 == 0
}

// section2Axis is the row-or-column component of the period sum: for a
// horizontal edge the row (Y), for a vertical edge the column (X).
func section2Axis(e Edge) int {
	if e.Horizontal() {
		return e.From.Y
	}
	return e.From.X
}
