package models

import "time"

// TaskStatus represents the current state of a task in the graph.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting on dependencies.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady indicates all dependencies succeeded and the task is eligible to run.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusRunning indicates the task has been dispatched to an agent.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusSucceeded indicates the task completed successfully.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the task was skipped because a dependency failed or was skipped.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusRunning,
		TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Resolved returns true if the status is a terminal state for a task.
func (s TaskStatus) Resolved() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Task represents a unit of work in the swarm.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id" yaml:"id"`
	// Title is the short description of the task.
	Title string `json:"title" yaml:"title"`
	// Description provides detailed instructions for the assigned agent.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Role is the agent role this task should be dispatched to.
	Role Role `json:"role" yaml:"role"`
	// DependsOn lists task IDs that must succeed before this task runs.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status" yaml:"-"`
	// AssignedTo is the ID of the agent working on this task.
	AssignedTo string `json:"assigned_to,omitempty" yaml:"-"`
	// Candidates is the number of speculative executions requested.
	// Zero or one means a single execution; higher values trigger a
	// consensus round over the competing results.
	Candidates int `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	// Result holds the task output. Opaque to the scheduler.
	Result string `json:"result,omitempty" yaml:"-"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty" yaml:"-"`
	// SkipReason explains why the task was skipped, chaining back to the
	// originating failure.
	SkipReason string `json:"skip_reason,omitempty" yaml:"-"`
	// DispatchAttempts is the number of times this task was handed to an
	// agent, the first dispatch included.
	DispatchAttempts int `json:"dispatch_attempts,omitempty" yaml:"-"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	// StartedAt is when the task was first dispatched, if ever.
	StartedAt *time.Time `json:"started_at,omitempty" yaml:"-"`
	// CompletedAt is when the task reached a resolved status, if ever.
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"-"`
}

// TaskSnapshot is a read-only view of a task for monitoring surfaces.
type TaskSnapshot struct {
	// ID is the task identifier.
	ID string `json:"id"`
	// Role is the agent role assigned to the task.
	Role Role `json:"role"`
	// Status is the task status at snapshot time.
	Status TaskStatus `json:"status"`
	// StartedAt is when the task was dispatched, if it has been.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task resolved, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
