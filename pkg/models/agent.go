package models

import "time"

// Role is the behavioral category of an agent.
type Role string

const (
	// RolePlanner decomposes goals into task graphs.
	RolePlanner Role = "planner"
	// RoleResearcher gathers and summarizes information.
	RoleResearcher Role = "researcher"
	// RoleExecutor performs concrete work, including skill invocations.
	RoleExecutor Role = "executor"
	// RoleCritic reviews the output of other agents.
	RoleCritic Role = "critic"
	// RoleCoordinator evaluates goals and synthesizes final answers.
	RoleCoordinator Role = "coordinator"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RolePlanner, RoleResearcher, RoleExecutor, RoleCritic, RoleCoordinator:
		return true
	default:
		return false
	}
}

// AgentState represents the lifecycle state of a pooled agent.
type AgentState string

const (
	// AgentStateIdle indicates the agent is available for work.
	AgentStateIdle AgentState = "idle"
	// AgentStateBusy indicates the agent is executing a task.
	AgentStateBusy AgentState = "busy"
	// AgentStateTerminating indicates the agent is being retired and
	// accepts no new work.
	AgentStateTerminating AgentState = "terminating"
)

// Valid returns true if the state is a known value.
func (s AgentState) Valid() bool {
	switch s {
	case AgentStateIdle, AgentStateBusy, AgentStateTerminating:
		return true
	default:
		return false
	}
}

// Agent is a leased worker instance tracked by the pool.
// The pool owns all mutation; callers hold a borrowed reference for the
// duration of a dispatch.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Role is the behavioral category of this agent.
	Role Role `json:"role"`
	// State is the current lifecycle state.
	State AgentState `json:"state"`
	// TaskID is the task currently assigned, if any.
	TaskID string `json:"task_id,omitempty"`
	// SpawnedAt is when the agent was created.
	SpawnedAt time.Time `json:"spawned_at"`
	// TasksCompleted counts tasks this agent has finished.
	TasksCompleted int `json:"tasks_completed"`
}

// AgentSnapshot is a read-only view of an agent for monitoring surfaces.
type AgentSnapshot struct {
	// ID is the agent identifier.
	ID string `json:"id"`
	// Role is the agent's role.
	Role Role `json:"role"`
	// State is the agent state at snapshot time.
	State AgentState `json:"state"`
	// TaskID is the task assigned at snapshot time, if any.
	TaskID string `json:"task_id,omitempty"`
}
