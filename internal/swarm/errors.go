package swarm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrAgentUnavailable indicates the pool is at its role cap with no idle
// agent. Callers retry with backoff rather than block.
var ErrAgentUnavailable = errors.New("no agent available for role")

// ErrConsensusInconclusive indicates no strategy threshold could be applied,
// such as a weighted tie. The caller decides the fallback.
var ErrConsensusInconclusive = errors.New("consensus inconclusive")

// ErrBusClosed indicates the message bus has been shut down.
var ErrBusClosed = errors.New("message bus closed")

// ValidationError rejects a goal graph before any task runs.
type ValidationError struct {
	// Reason describes what is wrong with the graph.
	Reason string
	// TaskID is the offending task, when one can be identified.
	TaskID string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ValidationError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("invalid task graph: task %s: %s", e.TaskID, e.Reason)
	}
	return fmt.Sprintf("invalid task graph: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DeadlockError reports a non-terminal graph with no runnable work.
type DeadlockError struct {
	// StuckTaskIDs lists the tasks that can never become ready.
	StuckTaskIDs []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("scheduler deadlock: no progress possible, stuck tasks: %s",
		strings.Join(e.StuckTaskIDs, ", "))
}

// TaskExecutionError attaches a worker, skill, or completion-service failure
// to the task it originated from.
type TaskExecutionError struct {
	// TaskID is the failing task.
	TaskID string
	// AgentID is the agent that was executing it, if any.
	AgentID string
	// Err is the underlying failure.
	Err error
}

func (e *TaskExecutionError) Error() string {
	if e.AgentID != "" {
		return fmt.Sprintf("task %s failed on agent %s: %v", e.TaskID, e.AgentID, e.Err)
	}
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }
