package algo

import (
	"fmt"

	"github.com/elektrokombinacija/mapf-core/internal/core"
	"go.uber.org/multierr"
)

// Validator checks a CommonPlan against the universal plan invariants
// (contiguity, passage legality, obstacle avoidance, cell and swap
// conflicts, goal/task completion), aggregating every violation found
// rather than stopping at the first so a single run surfaces every
// offending agent and tick.
type Validator struct {
	Dynamic bool // classic vs dynamic mode: dynamic also checks mm's passagePermitted under alternation
}

// NewValidator creates a validator in classic (dynamic=false) or
// dynamic mode.
func NewValidator(dynamic bool) *Validator {
	return &Validator{Dynamic: dynamic}
}

// Check validates cp against scenario and mm, returning a
// core.ErrInvalidPlan-wrapped aggregate of every violation found, or
// nil if cp is fully valid.
func (v *Validator) Check(scenario *core.Scenario, mm *core.MapManager, cp *core.CommonPlan) error {
	var err error

	// Classic mode checks passage against the plain edge set even if
	// the manager carries an alternation frequency.
	if !v.Dynamic && mm.DirectionChangeFrequency != 0 {
		mm = core.NewMapManager(mm.Map, 0)
	}

	if len(cp.Plans) != len(scenario.Agents) {
		err = multierr.Append(err, fmt.Errorf("plan count %d does not match agent count %d", len(cp.Plans), len(scenario.Agents)))
	}

	for _, agent := range scenario.Agents {
		plan := cp.ByAgent(agent.ID)
		err = multierr.Append(err, v.checkPlan(scenario, mm, agent, plan))
	}

	err = multierr.Append(err, v.checkCrossPlan(cp))

	if scenario.IsMAPD() {
		err = multierr.Append(err, v.checkMAPDCompletion(scenario, cp))
	}

	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidPlan, err)
	}
	return nil
}

func (v *Validator) checkPlan(scenario *core.Scenario, mm *core.MapManager, agent *core.Agent, plan *core.Plan) error {
	if plan == nil {
		return fmt.Errorf("agent %d: no plan", agent.ID)
	}
	var err error

	goal := agentGoal(agent)

	if plan.Len() == 1 && agent.Start != goal {
		err = multierr.Append(err, fmt.Errorf("agent %d: length-1 plan but start %v != goal %v", agent.ID, agent.Start, goal))
	}

	first := plan.At(0)
	if first.Pos() != agent.Start || first.T != 0 {
		err = multierr.Append(err, fmt.Errorf("agent %d: first entry %v is not (start,0)", agent.ID, first))
	}

	if !scenario.IsMAPD() && plan.Last().Pos() != goal {
		err = multierr.Append(err, fmt.Errorf("agent %d: last position %v != goal %v", agent.ID, plan.Last().Pos(), goal))
	}

	steps := plan.Steps()
	for i, s := range steps {
		if scenario.Map.Obstacles[s.Pos()] {
			err = multierr.Append(err, fmt.Errorf("agent %d: step %d lands on obstacle %v", agent.ID, i, s.Pos()))
		}
		if s.T != i {
			err = multierr.Append(err, fmt.Errorf("agent %d: step %d has non-contiguous time %d", agent.ID, i, s.T))
		}
		if i == 0 {
			continue
		}
		prev := steps[i-1]
		if prev.Pos() == s.Pos() {
			continue // wait: no passage check required
		}
		if !mm.PassagePermitted(core.TimedEdge{Edge: core.Edge{From: prev.Pos(), To: s.Pos()}, Time: prev.T}) {
			err = multierr.Append(err, fmt.Errorf("agent %d: tick %d transition %v->%v not passage-permitted", agent.ID, prev.T, prev.Pos(), s.Pos()))
		}
	}

	return err
}

// checkCrossPlan checks that no two agents share a cell at the same
// tick and that no two agents swap along the same undirected edge at
// the same tick.
func (v *Validator) checkCrossPlan(cp *core.CommonPlan) error {
	var err error

	makespan := cp.Makespan()
	for t := 0; t < makespan; t++ {
		occupants := make(map[core.Position]core.AgentID)
		for _, p := range cp.Plans {
			pos, ok := p.Position(t, true)
			if !ok {
				continue
			}
			if owner, taken := occupants[pos]; taken {
				err = multierr.Append(err, fmt.Errorf("tick %d: agents %d and %d both occupy %v", t, owner, p.AgentID, pos))
				continue
			}
			occupants[pos] = p.AgentID
		}
	}

	for t := 0; t < makespan-1; t++ {
		moves := make(map[undirectedEdge]core.AgentID)
		for _, p := range cp.Plans {
			from, ok1 := p.Position(t, true)
			to, ok2 := p.Position(t+1, true)
			if !ok1 || !ok2 || from == to {
				continue
			}
			ue := newUndirectedEdge(from, to)
			if owner, taken := moves[ue]; taken {
				err = multierr.Append(err, fmt.Errorf("tick %d: agents %d and %d swap across %v<->%v", t, owner, p.AgentID, from, to))
				continue
			}
			moves[ue] = p.AgentID
		}
	}

	return err
}

// checkMAPDCompletion checks that every task's ordered target list
// appears as a subsequence of positions in some plan.
func (v *Validator) checkMAPDCompletion(scenario *core.Scenario, cp *core.CommonPlan) error {
	var err error
	for _, task := range scenario.Tasks {
		satisfied := false
		for _, p := range cp.Plans {
			if subsequenceOf(task.Targets, p.Steps()) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			err = multierr.Append(err, fmt.Errorf("task %d: target sequence %v not found as a subsequence of any plan", task.ID, task.Targets))
		}
	}
	return err
}

func subsequenceOf(targets []core.Position, steps []core.TimedPosition) bool {
	idx := 0
	for _, s := range steps {
		if idx >= len(targets) {
			break
		}
		if s.Pos() == targets[idx] {
			idx++
		}
	}
	return idx == len(targets)
}
