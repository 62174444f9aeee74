package swarm

import (
	"context"

	"github.com/nexusswarm/nexus/pkg/models"
)

// WorkerResult is a worker's output for one task execution.
type WorkerResult struct {
	// Output is the task result payload. Opaque to the scheduler.
	Output string
	// Confidence is the worker's self-assessed confidence in [0, 1].
	// Consensus rounds over speculative candidates use it as vote weight.
	Confidence float64
}

// Worker executes tasks for one role. Implementations observe ctx
// cooperatively and stop at their next checkpoint when it is cancelled.
//
// The closed set of role variants sits behind this single interface,
// selected by the task's role tag.
type Worker interface {
	Execute(ctx context.Context, task models.Task, taskContext string) (WorkerResult, error)
}

// WorkerProvider resolves the worker for a role.
type WorkerProvider interface {
	Worker(role models.Role) (Worker, error)
}

// Synthesizer turns the per-task results of a goal into one coherent
// answer. Typically backed by a coordinator-role agent.
type Synthesizer interface {
	Synthesize(ctx context.Context, goal string, results map[string]string) (string, error)
}

// Reviewer critiques the combined results of a goal before synthesis is
// reported. Typically backed by a critic-role agent.
type Reviewer interface {
	Review(ctx context.Context, goal, combined string) (string, error)
}
