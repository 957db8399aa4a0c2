package core

import "errors"

// Unsolvable and HorizonExceeded are recovered locally by each
// planner's own trial loop; Timeout propagates immediately;
// DistanceTableMiss and InvalidPlan are fatal to the call that
// produced them.
var (
	// ErrUnsolvable: search exhausted, backtracking exhausted, or trial
	// budget exhausted. Never retried by the core itself.
	ErrUnsolvable = errors.New("core: scenario unsolvable")

	// ErrHorizonExceeded: the open set contained only nodes past the
	// time horizon. Treated as unsolvable for the current attempt; a
	// planner may retry with a different agent order.
	ErrHorizonExceeded = errors.New("core: time horizon exceeded")

	// ErrTimeout: the cooperative deadline was reached at a checkpoint.
	ErrTimeout = errors.New("core: deadline exceeded")

	// ErrDistanceTableMiss: the true-distance oracle was queried for a
	// cell that is not a registered endpoint. Programmer error, never
	// masked.
	ErrDistanceTableMiss = errors.New("core: distance table miss on non-endpoint cell")

	// ErrInvalidPlan: the validator detected a violation.
	ErrInvalidPlan = errors.New("core: invalid plan")
)
