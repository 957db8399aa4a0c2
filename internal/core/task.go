package core

import "sync/atomic"

// TaskID is a unique, stable integer handle for a task (see AgentID).
type TaskID int64

var taskCounter int64

// NextTaskID returns the next task id from the process-local counter.
func NextTaskID() TaskID {
	return TaskID(atomic.AddInt64(&taskCounter, 1))
}

// ResetTaskCounter zeroes the counter; call between independent runs.
func ResetTaskCounter() {
	atomic.StoreInt64(&taskCounter, 0)
}

// TaskClass is the optional capability tag paired with AgentClass.
// ClassAny means any agent may perform the task.
type TaskClass = AgentClass

// Task is an immutable ordered sequence of target positions: length 1
// for classic MAPF (single goal), length 2 for MAPD (pickup then
// delivery). Once set, completedAt >= startedAt >= Availability.
type Task struct {
	ID            TaskID
	Targets       []Position // length 1 (MAPF) or 2 (MAPD: pickup, delivery)
	Availability  int        // tick at which the task enters the available pool
	Class         TaskClass  // ClassAny unless restricted

	startedAt   int // -1 until set
	completedAt int // -1 until set
}

// NewTask creates a task with the given targets and availability time.
// Panics if targets is empty: a task with no target is not meaningful.
func NewTask(targets []Position, availability int) *Task {
	if len(targets) == 0 {
		panic("core: NewTask requires at least one target")
	}
	return &Task{
		ID:           NextTaskID(),
		Targets:      targets,
		Availability: availability,
		Class:        ClassAny,
		startedAt:    -1,
		completedAt:  -1,
	}
}

// IsPickupDelivery reports whether this is a two-leg MAPD task.
func (t *Task) IsPickupDelivery() bool { return len(t.Targets) == 2 }

// Pickup returns the pickup location for a two-leg task (or the only
// target for a classic MAPF task).
func (t *Task) Pickup() Position { return t.Targets[0] }

// Delivery returns the delivery (final) location.
func (t *Task) Delivery() Position { return t.Targets[len(t.Targets)-1] }

// StartedAt returns the tick the task was started, or -1.
func (t *Task) StartedAt() int { return t.startedAt }

// CompletedAt returns the tick the task was completed, or -1.
func (t *Task) CompletedAt() int { return t.completedAt }

// MarkStarted records the start tick. Invariant:
// completionTime >= startedTime >= availabilityTime once both are set.
func (t *Task) MarkStarted(tick int) {
	t.startedAt = tick
}

// MarkCompleted records the completion tick.
func (t *Task) MarkCompleted(tick int) {
	t.completedAt = tick
}

// ServiceTime returns completedAt - Availability, or -1 if not
// completed yet.
func (t *Task) ServiceTime() int {
	if t.completedAt < 0 {
		return -1
	}
	return t.completedAt - t.Availability
}
