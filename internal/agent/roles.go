package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nexusswarm/nexus/internal/llm"
	"github.com/nexusswarm/nexus/internal/memory"
	"github.com/nexusswarm/nexus/internal/swarm"
	"github.com/nexusswarm/nexus/pkg/models"
)

const researcherSystemPrompt = `You are a researcher agent in a multi-agent swarm.
You gather, organize, and summarize the information a task needs.

Be thorough but structured: lead with the key findings, then supporting
detail. Note uncertainty explicitly instead of guessing. Your output will be
consumed by other agents, so keep it self-contained.`

// Researcher gathers and summarizes information for downstream tasks.
type Researcher struct {
	base
}

// NewResearcher creates a researcher over the completion service.
func NewResearcher(svc llm.CompletionService, mem *memory.Manager) *Researcher {
	return &Researcher{base: base{
		svc:        svc,
		mem:        mem,
		system:     researcherSystemPrompt,
		complexity: llm.ComplexityComplex,
	}}
}

// Execute implements swarm.Worker.
func (r *Researcher) Execute(ctx context.Context, task models.Task, taskContext string) (swarm.WorkerResult, error) {
	resp, err := r.think(ctx, taskPrompt(task), taskContext)
	if err != nil {
		return swarm.WorkerResult{}, err
	}
	r.remember(task, resp.Text)
	return r.result(resp), nil
}

const criticSystemPrompt = `You are a critic agent in a multi-agent swarm.
You review the output of other agents against the task it was meant to
accomplish.

Assess correctness, completeness, and clarity. Name concrete problems and
concrete fixes; do not pad the review with praise. If the output is sound,
say so briefly.`

// Critic reviews agent output. It serves critic-role tasks and implements
// swarm.Reviewer for the final outcome review.
type Critic struct {
	base
}

// NewCritic creates a critic over the completion service.
func NewCritic(svc llm.CompletionService, mem *memory.Manager) *Critic {
	return &Critic{base: base{
		svc:        svc,
		mem:        mem,
		system:     criticSystemPrompt,
		complexity: llm.ComplexityMedium,
	}}
}

// Execute implements swarm.Worker.
func (c *Critic) Execute(ctx context.Context, task models.Task, taskContext string) (swarm.WorkerResult, error) {
	resp, err := c.think(ctx, taskPrompt(task), taskContext)
	if err != nil {
		return swarm.WorkerResult{}, err
	}
	c.remember(task, resp.Text)
	return c.result(resp), nil
}

// Review implements swarm.Reviewer: it assesses the combined output of a
// finished goal.
func (c *Critic) Review(ctx context.Context, goal, combined string) (string, error) {
	prompt := fmt.Sprintf("Original goal:\n%s\n\nOutput to review:\n%s", goal, combined)
	resp, err := c.think(ctx, prompt, "")
	if err != nil {
		return "", fmt.Errorf("review outcome: %w", err)
	}
	return resp.Text, nil
}

const coordinatorSystemPrompt = `You are a coordinator agent in a multi-agent swarm.
You decide how goals are handled and you merge the swarm's work into final
answers.

When asked to evaluate a goal, respond with ONLY a JSON object:
  {"strategy": "direct", "reason": "..."} for goals one agent can answer
  {"strategy": "swarm", "reason": "..."} for goals needing decomposition`

const synthesisSystemPrompt = `You are a coordinator agent merging the results of a
multi-agent swarm into one coherent answer.

Write the final answer to the goal, not a report about the tasks. Resolve
overlaps and contradictions between task results; do not mention task ids or
the swarm itself.`

// Strategy values returned by goal evaluation.
const (
	// StrategyDirect answers the goal with a single executor task.
	StrategyDirect = "direct"
	// StrategySwarm decomposes the goal into a task graph first.
	StrategySwarm = "swarm"
)

// Evaluation is the coordinator's judgment of how to handle a goal.
type Evaluation struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// Coordinator evaluates goals and synthesizes final answers. It serves
// coordinator-role tasks and implements swarm.Synthesizer.
type Coordinator struct {
	base
}

// NewCoordinator creates a coordinator over the completion service.
func NewCoordinator(svc llm.CompletionService, mem *memory.Manager) *Coordinator {
	return &Coordinator{base: base{
		svc:        svc,
		mem:        mem,
		system:     coordinatorSystemPrompt,
		complexity: llm.ComplexityComplex,
	}}
}

// Execute implements swarm.Worker.
func (c *Coordinator) Execute(ctx context.Context, task models.Task, taskContext string) (swarm.WorkerResult, error) {
	resp, err := c.think(ctx, taskPrompt(task), taskContext)
	if err != nil {
		return swarm.WorkerResult{}, err
	}
	c.remember(task, resp.Text)
	return c.result(resp), nil
}

// EvaluateGoal decides whether a goal needs the full swarm or a single
// direct execution. Unparseable replies default to direct, the cheaper
// path.
func (c *Coordinator) EvaluateGoal(ctx context.Context, goal string) (Evaluation, error) {
	resp, err := c.svc.Complete(ctx, llm.CompletionRequest{
		System:     coordinatorSystemPrompt,
		Prompt:     "Evaluate this goal: " + goal,
		Complexity: llm.ComplexitySimple,
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate goal: %w", err)
	}

	eval, err := parseEvaluation(resp.Text)
	if err != nil {
		return Evaluation{Strategy: StrategyDirect, Reason: "evaluation unparseable"}, nil
	}
	return eval, nil
}

func parseEvaluation(text string) (Evaluation, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Evaluation{}, fmt.Errorf("no JSON object in reply")
	}
	var eval Evaluation
	if err := json.Unmarshal([]byte(text[start:end+1]), &eval); err != nil {
		return Evaluation{}, fmt.Errorf("parse evaluation: %w", err)
	}
	if eval.Strategy != StrategyDirect && eval.Strategy != StrategySwarm {
		return Evaluation{}, fmt.Errorf("unknown strategy %q", eval.Strategy)
	}
	return eval, nil
}

// Synthesize implements swarm.Synthesizer: it merges per-task results into
// the final answer to the goal. Tasks are rendered in a stable order so
// identical runs produce identical prompts.
func (c *Coordinator) Synthesize(ctx context.Context, goal string, results map[string]string) (string, error) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "Goal:\n%s\n\nTask results:\n", goal)
	for _, id := range ids {
		fmt.Fprintf(&b, "\n### Task %s:\n%s\n", id, results[id])
	}
	b.WriteString("\nSynthesize these into the final answer to the goal.")

	resp, err := c.svc.Complete(ctx, llm.CompletionRequest{
		System:     synthesisSystemPrompt,
		Prompt:     b.String(),
		Complexity: llm.ComplexityComplex,
	})
	if err != nil {
		return "", fmt.Errorf("synthesize results: %w", err)
	}
	return resp.Text, nil
}
