package algo

import (
	"github.com/elektrokombinacija/mapf-core/internal/core"
)

// TrafficSimulator is the decentralized planner: every agent computes
// one untimed route (forbidden to cross any other agent's goal cell),
// then agents advance greedily tick by tick, resolving deadlock
// cycles via synchronous rotation instead of backtracking search.
type TrafficSimulator struct {
	TimeHorizon int
}

// NewTrafficSimulator creates a simulator with the given tick horizon.
func NewTrafficSimulator(timeHorizon int) *TrafficSimulator {
	return &TrafficSimulator{TimeHorizon: timeHorizon}
}

func (s *TrafficSimulator) Name() string { return "TrafficSimulator" }

type trafficAgent struct {
	agent   *core.Agent
	route   []core.Position // untimed route, route[0] == start
	cursor  int             // index of the cell this agent currently occupies
	plan    *core.Plan
}

// Solve computes each agent's untimed route then runs the tick-driven
// greedy-then-cycle-resolution execution loop until every agent
// reaches its goal or TimeHorizon elapses.
func (s *TrafficSimulator) Solve(scenario *core.Scenario, mm *core.MapManager, deadline core.Deadline) (*core.CommonPlan, error) {
	goals := make(map[core.AgentID]core.Position, len(scenario.Agents))
	for _, a := range scenario.Agents {
		goals[a.ID] = agentGoal(a)
	}

	tAgents := make([]*trafficAgent, len(scenario.Agents))
	for i, a := range scenario.Agents {
		forbidden := make(map[core.Position]bool)
		for otherID, g := range goals {
			if otherID == a.ID {
				continue
			}
			forbidden[g] = true
		}
		route, err := untimedShortestPathAvoiding(scenario.Map, a.Start, goals[a.ID], forbidden)
		if err != nil {
			return nil, err
		}
		tAgents[i] = &trafficAgent{
			agent:  a,
			route:  route,
			cursor: 0,
			plan:   core.NewPlan(a.ID, a.Start, 0),
		}
	}

	occupied := make(map[core.Position]core.AgentID, len(tAgents))
	for _, ta := range tAgents {
		occupied[ta.route[ta.cursor]] = ta.agent.ID
	}

	for t := 0; t < s.TimeHorizon; t++ {
		if deadline.Expired() {
			return nil, core.ErrTimeout
		}
		if allAtRouteEnd(tAgents) {
			break
		}

		moved := make(map[core.AgentID]bool)
		for {
			anyMoved := false
			for _, ta := range tAgents {
				if moved[ta.agent.ID] || atRouteEnd(ta) {
					continue
				}
				next := ta.route[ta.cursor+1]
				if _, taken := occupied[next]; taken {
					continue
				}
				delete(occupied, ta.route[ta.cursor])
				ta.cursor++
				occupied[next] = ta.agent.ID
				moved[ta.agent.ID] = true
				anyMoved = true
			}
			if !anyMoved {
				break
			}
		}

		resolveCycles(tAgents, occupied, moved)

		for _, ta := range tAgents {
			ta.plan.AppendPosition(ta.route[ta.cursor])
		}
	}

	cp := core.NewCommonPlan()
	for _, ta := range tAgents {
		cp.Plans = append(cp.Plans, ta.plan)
	}
	return cp, nil
}

// resolveCycles finds, among agents that did not move this tick,
// deadlock cycles by following the "blocked-by" chain (who occupies my
// next cell) and rotates every member of a found cycle synchronously
// one step.
func resolveCycles(tAgents []*trafficAgent, occupied map[core.Position]core.AgentID, moved map[core.AgentID]bool) {
	byID := make(map[core.AgentID]*trafficAgent, len(tAgents))
	for _, ta := range tAgents {
		byID[ta.agent.ID] = ta
	}

	resolved := make(map[core.AgentID]bool)
	for _, start := range tAgents {
		if moved[start.agent.ID] || atRouteEnd(start) || resolved[start.agent.ID] {
			continue
		}

		chain := []core.AgentID{start.agent.ID}
		seen := map[core.AgentID]bool{start.agent.ID: true}
		cur := start
		var cycle []core.AgentID
		for {
			if moved[cur.agent.ID] {
				break // chain reaches an agent that already advanced: no cycle
			}
			next := cur.route[cur.cursor+1]
			blocker, ok := occupied[next]
			if !ok {
				break
			}
			if seen[blocker] {
				// The chain closed on one of its own members; the cycle
				// is the suffix from that member onward.
				for i, id := range chain {
					if id == blocker {
						cycle = chain[i:]
						break
					}
				}
				break
			}
			blockerAgent, ok := byID[blocker]
			if !ok || atRouteEnd(blockerAgent) {
				break
			}
			chain = append(chain, blocker)
			seen[blocker] = true
			cur = blockerAgent
		}

		if len(cycle) == 0 {
			continue
		}

		// Synchronous rotation: every member advances one step; no
		// position is freed mid-rotation since each is simultaneously
		// reclaimed by the next member in the chain.
		for _, id := range cycle {
			ta := byID[id]
			delete(occupied, ta.route[ta.cursor])
			ta.cursor++
		}
		for _, id := range cycle {
			ta := byID[id]
			occupied[ta.route[ta.cursor]] = id
			moved[id] = true
			resolved[id] = true
		}
	}
}

func atRouteEnd(ta *trafficAgent) bool {
	return ta.cursor >= len(ta.route)-1
}

func allAtRouteEnd(tAgents []*trafficAgent) bool {
	for _, ta := range tAgents {
		if !atRouteEnd(ta) {
			return false
		}
	}
	return true
}

// untimedShortestPathAvoiding is untimedShortestPath with a set of
// forbidden cells the route may never pass through. The agent's own
// goal is exempted since a route must be able to end there.
func untimedShortestPathAvoiding(m *core.Map, start, goal core.Position, forbidden map[core.Position]bool) ([]core.Position, error) {
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
			if forbidden[n] && n != goal {
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
