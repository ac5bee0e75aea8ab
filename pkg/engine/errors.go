package engine

import "errors"

// Traversal failures. Each one marks the execution failed and is recorded
// on the last log row; none of them propagate as a Go error from the entry
// points, which report the execution's terminal status instead.
var (
	// ErrMaxStepsExceeded trips the cycle guard: the graph format permits
	// cycles, so a step ceiling distinguishes authoring loops from
	// legitimate long flows.
	ErrMaxStepsExceeded = errors.New("max steps exceeded")

	// ErrNoMatchingEdge means a node produced a branch handle with no
	// corresponding outgoing edge.
	ErrNoMatchingEdge = errors.New("no matching edge")

	// ErrNodeTimeout means a single node executor exceeded the configured
	// per-node deadline.
	ErrNodeTimeout = errors.New("node execution timed out")
)

// ErrExecutionLocked is returned when another worker currently holds the
// execution's single-writer lock.
var ErrExecutionLocked = errors.New("execution is locked by another worker")

// ErrNotPaused is returned by Resume for executions that are not in the
// paused state.
var ErrNotPaused = errors.New("execution is not paused")
