package algo

import "github.com/elektrokombinacija/mapf-core/internal/core"

// ClaimContainer is the single-tick claim structure used by the
// runtime replanner: at most one position claim and one (commutative)
// edge claim per agent per tick.
type ClaimContainer struct {
	positions map[core.Position]core.AgentID
	edges     map[undirectedEdge]core.AgentID
	byAgent   map[core.AgentID]claimed
}

type undirectedEdge struct {
	a, b core.Position
}

// newUndirectedEdge normalizes (p,q) so edge equality is commutative
// on endpoints.
func newUndirectedEdge(p, q core.Position) undirectedEdge {
	if p.X < q.X || (p.X == q.X && p.Y <= q.Y) {
		return undirectedEdge{p, q}
	}
	return undirectedEdge{q, p}
}

type claimed struct {
	hasPos  bool
	pos     core.Position
	hasEdge bool
	edge    undirectedEdge
}

// NewClaimContainer creates an empty claim container for one tick.
func NewClaimContainer() *ClaimContainer {
	return &ClaimContainer{
		positions: make(map[core.Position]core.AgentID),
		edges:     make(map[undirectedEdge]core.AgentID),
		byAgent:   make(map[core.AgentID]claimed),
	}
}

// TryClaim attempts to claim the position `to` and the undirected edge
// (from,to) for agent. Succeeds only if neither is already claimed by
// another agent; an agent holds at most one claim, so a successful
// re-claim replaces its previous one.
func (c *ClaimContainer) TryClaim(agent core.AgentID, from, to core.Position) bool {
	ue := newUndirectedEdge(from, to)
	if owner, ok := c.positions[to]; ok && owner != agent {
		return false
	}
	if owner, ok := c.edges[ue]; ok && owner != agent {
		return false
	}
	c.ReleaseClaims(agent)
	c.positions[to] = agent
	c.edges[ue] = agent
	c.byAgent[agent] = claimed{hasPos: true, pos: to, hasEdge: true, edge: ue}
	return true
}

// ReleaseClaims removes agent's claims for this tick.
func (c *ClaimContainer) ReleaseClaims(agent core.AgentID) {
	cl, ok := c.byAgent[agent]
	if !ok {
		return
	}
	if cl.hasPos {
		delete(c.positions, cl.pos)
	}
	if cl.hasEdge {
		delete(c.edges, cl.edge)
	}
	delete(c.byAgent, agent)
}

// PositionClaimed reports whether pos is claimed by any agent other
// than exempt.
func (c *ClaimContainer) PositionClaimed(pos core.Position, exempt core.AgentID) bool {
	owner, ok := c.positions[pos]
	return ok && owner != exempt
}

// EdgeClaimed reports whether the undirected edge (from,to) is claimed
// by any agent other than exempt.
func (c *ClaimContainer) EdgeClaimed(from, to core.Position, exempt core.AgentID) bool {
	owner, ok := c.edges[newUndirectedEdge(from, to)]
	return ok && owner != exempt
}

// ClaimedPosition returns agent's claimed position for this tick, if any.
func (c *ClaimContainer) ClaimedPosition(agent core.AgentID) (core.Position, bool) {
	cl, ok := c.byAgent[agent]
	if !ok || !cl.hasPos {
		return core.Position{}, false
	}
	return cl.pos, true
}
