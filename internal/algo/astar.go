// Package algo implements the shared space-time search substrate
// (timed A*, reservation table, region/constraint machinery) and the
// five coordinated planners built on top of it: cooperative A*,
// token-passing, the hierarchical planner with per-region CBS, the
// runtime replanner (static and alternating), and the traffic
// simulator.
package algo

import (
	"container/heap"

	"github.com/elektrokombinacija/mapf-core/internal/core"
	"go.uber.org/zap"
)

var logger = zap.NewNop().Sugar()

// SetLogger installs a structured logger used for failed planner
// trials, timed A* horizon-exceeded and unsolvable outcomes, and
// failed CBS child replans. Nop by default.
func SetLogger(l *zap.SugaredLogger) {
	if l != nil {
		logger = l
	}
}

// Legality is the (from, to, t) predicate gating a move at tick t.
// Each planner supplies its own: reservation-table checks for
// cooperative A* and token-passing, constraint-set checks for CBS,
// plain passage checks for the replanners.
type Legality func(from, to core.Position, t int) bool

// Heuristic estimates remaining cost from pos to the search's goal.
type Heuristic func(pos core.Position) int

// GoalAccept is an additional acceptance test evaluated once a node
// at the goal position is popped (e.g. CA*/TP's isFreeForever check).
// A nil GoalAccept always accepts.
type GoalAccept func(pos core.Position, t int) bool

// SearchRequest bundles the timed A* parameters. Kept as one value
// rather than positional arguments because GoalAccept, Deadline, and
// FoldMod are optional and this keeps call sites readable.
type SearchRequest struct {
	Agent      core.AgentID
	Start      core.TimedPosition
	Goal       core.Position
	Legality   Legality
	Heuristic  Heuristic
	Horizon    int
	GoalAccept GoalAccept
	Deadline   core.Deadline

	// FoldMod, when > 0, collapses the closed-set key's time
	// coordinate modulo FoldMod. On a map alternating with frequency f,
	// folding by 2f bounds the state space to |cells|*2f. The
	// reconstructed plan still carries real ascending ticks; only state
	// deduplication is folded.
	FoldMod int
}

func (req SearchRequest) closedKey(state core.TimedPosition) core.TimedPosition {
	if req.FoldMod <= 0 {
		return state
	}
	return core.TimedPosition{X: state.X, Y: state.Y, T: state.T % req.FoldMod}
}

type astarNode struct {
	state  core.TimedPosition
	g      int
	f      int
	parent *astarNode
	index  int
}

type astarHeap []*astarNode

func (h astarHeap) Len() int { return len(h) }
func (h astarHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.f != b.f {
		return a.f < b.f
	}
	// Deterministic tie-break: lexicographic on (t, x, y).
	if a.state.T != b.state.T {
		return a.state.T < b.state.T
	}
	if a.state.X != b.state.X {
		return a.state.X < b.state.X
	}
	return a.state.Y < b.state.Y
}
func (h astarHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *astarHeap) Push(x any) {
	n := x.(*astarNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *astarHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return x
}

// Search runs timed A* over a 4-connected grid with waiting.
// Returns core.ErrHorizonExceeded if every path to the
// goal was pruned by the time horizon, core.ErrUnsolvable if the open
// set emptied for any other reason, or core.ErrTimeout if the deadline
// was hit mid-search.
func Search(req SearchRequest) (*core.Plan, error) {
	goalAccept := req.GoalAccept
	if goalAccept == nil {
		goalAccept = func(core.Position, int) bool { return true }
	}

	open := &astarHeap{}
	heap.Init(open)
	heap.Push(open, &astarNode{
		state: req.Start,
		g:     0,
		f:     req.Start.T + req.Heuristic(req.Start.Pos()),
	})

	closed := make(map[core.TimedPosition]bool)
	horizonHit := false

	for open.Len() > 0 {
		if req.Deadline.Expired() {
			return nil, core.ErrTimeout
		}

		current := heap.Pop(open).(*astarNode)
		if closed[req.closedKey(current.state)] {
			continue
		}

		if current.state.Pos() == req.Goal && goalAccept(current.state.Pos(), current.state.T) {
			return reconstruct(req.Agent, current), nil
		}
		closed[req.closedKey(current.state)] = true

		nextT := current.state.T + 1
		if nextT > req.Horizon {
			horizonHit = true
			continue
		}

		for _, succ := range successors(current.state.Pos()) {
			if closed[req.closedKey(core.AtTime(succ, nextT))] {
				continue
			}
			if !req.Legality(current.state.Pos(), succ, current.state.T) {
				continue
			}
			node := &astarNode{
				state:  core.AtTime(succ, nextT),
				g:      current.g + 1,
				f:      nextT + req.Heuristic(succ),
				parent: current,
			}
			heap.Push(open, node)
		}
	}

	if horizonHit {
		logger.Debugw("timed a* horizon exceeded", "agent", req.Agent, "goal", req.Goal, "horizon", req.Horizon)
		return nil, core.ErrHorizonExceeded
	}
	logger.Debugw("timed a* unsolvable", "agent", req.Agent, "goal", req.Goal)
	return nil, core.ErrUnsolvable
}

// successors returns the four orthogonal neighbours plus "wait"
// (stay at the same cell), i.e. up to five successor positions.
func successors(p core.Position) []core.Position {
	return append(core.Neighbors4(p), p)
}

func reconstruct(agent core.AgentID, node *astarNode) *core.Plan {
	var states []core.TimedPosition
	for n := node; n != nil; n = n.parent {
		states = append(states, n.state)
	}
	// states is currently goal-to-start; reverse in place.
	for i, j := 0, len(states)-1; i < j; i, j = i+1, j-1 {
		states[i], states[j] = states[j], states[i]
	}
	plan := core.NewPlan(agent, states[0].Pos(), states[0].T)
	for _, s := range states[1:] {
		plan.AppendPosition(s.Pos())
	}
	return plan
}
