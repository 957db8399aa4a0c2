package core

import "sync/atomic"

// AgentID is a stable integer handle, unique within a process run and
// preserved across deep copies so it can be used as a map key. Ids come
// from a monotonic counter with an explicit reset between runs.
type AgentID int64

var agentCounter int64

// NextAgentID returns the next agent id from the process-local
// monotonic counter.
func NextAgentID() AgentID {
	return AgentID(atomic.AddInt64(&agentCounter, 1))
}

// ResetAgentCounter zeroes the counter; call between independent runs
// that need ids starting fresh (e.g. isolated test cases).
func ResetAgentCounter() {
	atomic.StoreInt64(&agentCounter, 0)
}

// AgentClass is an optional capability tag for heterogeneous fleets.
// It defaults to ClassAny, under which every agent can perform every
// task.
type AgentClass int

const (
	ClassAny AgentClass = iota
	ClassGround
	ClassAerial
)

// Agent is a participant in the scenario: a stable id, a display
// name, a current position, and an optional current task.
type Agent struct {
	ID       AgentID
	Name     string
	Start    Position
	Class    AgentClass // ClassAny unless the scenario restricts it
	Task     *Task      // nullable
}

// NewAgent creates an agent with the next id.
func NewAgent(name string, start Position) *Agent {
	return &Agent{ID: NextAgentID(), Name: name, Start: start, Class: ClassAny}
}

// CanPerform reports whether this agent's class may serve the task's
// class. ClassAny on either side matches everything, so scenarios that
// never set a class behave as unrestricted MAPF/MAPD.
func (a *Agent) CanPerform(t *Task) bool {
	return a.Class == ClassAny || t.Class == ClassAny || a.Class == t.Class
}
