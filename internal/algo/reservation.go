package algo

import "github.com/elektrokombinacija/mapf-core/internal/core"

// cellKey and edgeKey index reservations by (position, time) and
// (edge, time) respectively.
type cellKey struct {
	pos core.Position
	t   int
}

type edgeKey struct {
	edge core.Edge
	t    int
}

// ReservationTable is the shared space-time occupancy substrate used
// by cooperative A* and token-passing, exclusively owned by one
// planner run. It records three claim kinds (per-tick cell, directed
// edge, permanent-from) plus the secondary indices needed for
// per-agent rollback and the resting/free-forever predicates.
type ReservationTable struct {
	cells     map[cellKey]core.AgentID
	edges     map[edgeKey]core.AgentID
	permanent map[core.Position]permanentClaim

	// Secondary indices.
	byAgent    map[core.AgentID][]reservationRecord
	cellTicks  map[core.Position]map[int]bool // per-cell set of reserved ticks
}

type permanentClaim struct {
	agent core.AgentID
	from  int
}

type recordKind int

const (
	recordCell recordKind = iota
	recordEdge
	recordPermanent
)

type reservationRecord struct {
	kind recordKind
	pos  core.Position
	edge core.Edge
	t    int
}

// NewReservationTable creates an empty table.
func NewReservationTable() *ReservationTable {
	return &ReservationTable{
		cells:     make(map[cellKey]core.AgentID),
		edges:     make(map[edgeKey]core.AgentID),
		permanent: make(map[core.Position]permanentClaim),
		byAgent:   make(map[core.AgentID][]reservationRecord),
		cellTicks: make(map[core.Position]map[int]bool),
	}
}

// IsCellFree reports that no cell reservation exists at (p,t) and that
// no permanent-from reservation on p starts at or before t.
func (rt *ReservationTable) IsCellFree(p core.Position, t int) bool {
	if _, ok := rt.cells[cellKey{p, t}]; ok {
		return false
	}
	if perm, ok := rt.permanent[p]; ok && perm.from <= t {
		return false
	}
	return true
}

// IsFreeForever reports IsCellFree(p,t) AND no reservation on p at any
// t' > t (cell or permanent-from starting after t).
func (rt *ReservationTable) IsFreeForever(p core.Position, t int) bool {
	if !rt.IsCellFree(p, t) {
		return false
	}
	if perm, ok := rt.permanent[p]; ok && perm.from > t {
		return false
	}
	for tick := range rt.cellTicks[p] {
		if tick > t {
			return false
		}
	}
	return true
}

// RestingAllowed reports that no cell reservation on p exists at any
// t' > t. A permanent-from claim on p covers every later tick
// whenever it starts, so any such claim forbids resting, as it does
// for IsFreeForever.
func (rt *ReservationTable) RestingAllowed(p core.Position, t int) bool {
	for tick := range rt.cellTicks[p] {
		if tick > t {
			return false
		}
	}
	if _, ok := rt.permanent[p]; ok {
		return false
	}
	return true
}

// IsEdgeFree reports that neither (from->to, t) nor its reverse
// (to->from, t) is reserved — edge conflict detection is symmetric.
func (rt *ReservationTable) IsEdgeFree(from, to core.Position, t int) bool {
	if _, ok := rt.edges[edgeKey{core.Edge{From: from, To: to}, t}]; ok {
		return false
	}
	if _, ok := rt.edges[edgeKey{core.Edge{From: to, To: from}, t}]; ok {
		return false
	}
	return true
}

// IsCellReserved reports whether p is reserved (by anyone) at t,
// including by an earlier permanent-from claim.
func (rt *ReservationTable) IsCellReserved(p core.Position, t int) bool {
	return !rt.IsCellFree(p, t)
}

// IsEdgeReserved reports whether from->to at t is reserved (by anyone),
// considering the reverse-direction swap rule.
func (rt *ReservationTable) IsEdgeReserved(from, to core.Position, t int) bool {
	return !rt.IsEdgeFree(from, to, t)
}

// ReserveCell records a cell reservation for agent at (p,t). If
// permanent is true, it is recorded as a permanent-from-t claim
// instead of a single-tick cell claim; a permanent claim does not
// retroactively invalidate queries at t' < t.
func (rt *ReservationTable) ReserveCell(agent core.AgentID, p core.Position, t int, permanent bool) {
	if permanent {
		rt.permanent[p] = permanentClaim{agent: agent, from: t}
		rt.byAgent[agent] = append(rt.byAgent[agent], reservationRecord{kind: recordPermanent, pos: p, t: t})
		return
	}
	rt.cells[cellKey{p, t}] = agent
	if rt.cellTicks[p] == nil {
		rt.cellTicks[p] = make(map[int]bool)
	}
	rt.cellTicks[p][t] = true
	rt.byAgent[agent] = append(rt.byAgent[agent], reservationRecord{kind: recordCell, pos: p, t: t})
}

// ReserveEdge records an edge reservation for agent on from->to at t.
func (rt *ReservationTable) ReserveEdge(agent core.AgentID, from, to core.Position, t int) {
	e := core.Edge{From: from, To: to}
	rt.edges[edgeKey{e, t}] = agent
	rt.byAgent[agent] = append(rt.byAgent[agent], reservationRecord{kind: recordEdge, edge: e, t: t})
}

// CancelAgentReservations removes every reservation recorded under
// agent from all three indices.
func (rt *ReservationTable) CancelAgentReservations(agent core.AgentID) {
	for _, rec := range rt.byAgent[agent] {
		switch rec.kind {
		case recordCell:
			delete(rt.cells, cellKey{rec.pos, rec.t})
			if ticks := rt.cellTicks[rec.pos]; ticks != nil {
				delete(ticks, rec.t)
			}
		case recordEdge:
			delete(rt.edges, edgeKey{rec.edge, rec.t})
		case recordPermanent:
			if perm, ok := rt.permanent[rec.pos]; ok && perm.agent == agent {
				delete(rt.permanent, rec.pos)
			}
		}
	}
	delete(rt.byAgent, agent)
}

// ReservePath reserves every cell on plan's steps at their ticks and
// every edge used between consecutive steps.
// skipFirst drops the plan's first entry's cell claim, used when
// concatenating sub-goal legs to avoid double-reserving the shared
// junction cell (the junction's outgoing edge is still reserved).
// permanentLast additionally marks the final cell as a permanent-from
// reservation; set it only on the terminal leg of a path, never on an
// intermediate sub-target the agent moves on from.
func (rt *ReservationTable) ReservePath(agent core.AgentID, plan *core.Plan, skipFirst, permanentLast bool) {
	steps := plan.Steps()
	start := 0
	if skipFirst {
		start = 1
	}
	for i := start; i < len(steps); i++ {
		rt.ReserveCell(agent, steps[i].Pos(), steps[i].T, false)
	}
	for i := 1; i < len(steps); i++ {
		rt.ReserveEdge(agent, steps[i-1].Pos(), steps[i].Pos(), steps[i-1].T)
	}
	if permanentLast && len(steps) > 0 {
		last := steps[len(steps)-1]
		rt.ReserveCell(agent, last.Pos(), last.T, true)
	}
}
