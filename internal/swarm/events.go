// Package swarm implements the orchestration core: the task graph, the
// message bus, the agent pool, the consensus engine, and the orchestrator
// that drives wave-by-wave goal execution.
package swarm

import (
	"time"

	"github.com/nexusswarm/nexus/pkg/models"
)

// EventType represents the type of swarm event.
type EventType string

const (
	// EventGoalStarted indicates a goal graph was accepted for execution.
	EventGoalStarted EventType = "goal_started"
	// EventWaveStarted indicates a new wave of ready tasks is dispatching.
	EventWaveStarted EventType = "wave_started"
	// EventTaskStarted indicates a task was dispatched to an agent.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a task succeeded.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a task failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a task was skipped due to an upstream failure.
	EventTaskSkipped EventType = "task_skipped"
	// EventTaskRetrying indicates a dispatch will be retried after backoff.
	EventTaskRetrying EventType = "task_retrying"
	// EventAgentSpawned indicates the pool created a new agent.
	EventAgentSpawned EventType = "agent_spawned"
	// EventAgentRetired indicates an agent was removed from the pool.
	EventAgentRetired EventType = "agent_retired"
	// EventConsensusResolved indicates a consensus round finished.
	EventConsensusResolved EventType = "consensus_resolved"
	// EventGoalDone indicates synthesis finished and the outcome is available.
	EventGoalDone EventType = "goal_done"
	// EventGoalCancelled indicates the goal-level cancellation signal fired.
	EventGoalCancelled EventType = "goal_cancelled"
)

// Event represents a progress notification emitted by the orchestrator.
// Monitoring surfaces consume these without the core depending on them.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// TaskTitle is the title of the related task, if applicable.
	TaskTitle string
	// AgentID is the ID of the related agent, if applicable.
	AgentID string
	// Role is the role of the related agent or task, if applicable.
	Role models.Role
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
