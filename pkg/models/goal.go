package models

import "time"

// GoalGraph is a goal together with its decomposed task graph.
// It is the payload accepted by the submission boundary: either built by
// the planner or supplied pre-built by the caller.
type GoalGraph struct {
	// Goal is the top-level objective being pursued.
	Goal string `json:"goal" yaml:"goal"`
	// Tasks are the subtasks with their dependency edges (Task.DependsOn).
	Tasks []*Task `json:"tasks" yaml:"tasks"`
	// TerminalTasks designates the tasks whose success decides the goal.
	// Empty means every sink of the graph is terminal.
	TerminalTasks []string `json:"terminal_tasks,omitempty" yaml:"terminal_tasks,omitempty"`
}

// Outcome is the synthesized result of a goal execution.
// A goal is overall-successful when its terminal tasks succeeded, even if
// unrelated branches failed.
type Outcome struct {
	// Goal is the objective that was executed.
	Goal string `json:"goal"`
	// Success reports whether all terminal tasks succeeded.
	Success bool `json:"success"`
	// Summary is the synthesized answer, when a coordinator produced one.
	Summary string `json:"summary,omitempty"`
	// Review is the critic's assessment of the combined results, if one ran.
	Review string `json:"review,omitempty"`
	// Results maps succeeded task IDs to their result payloads.
	Results map[string]string `json:"results,omitempty"`
	// Failures maps failed task IDs to their error details.
	Failures map[string]string `json:"failures,omitempty"`
	// Skips maps skipped task IDs to their reason chains.
	Skips map[string]string `json:"skips,omitempty"`
	// Counts tallies tasks per final status.
	Counts map[TaskStatus]int `json:"counts"`
	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when synthesis finished.
	CompletedAt time.Time `json:"completed_at"`
}

// Duration returns the wall-clock time of the execution.
func (o *Outcome) Duration() time.Duration {
	return o.CompletedAt.Sub(o.StartedAt)
}
