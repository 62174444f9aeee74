package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/nexusswarm/nexus/internal/llm"
	"github.com/nexusswarm/nexus/internal/memory"
	"github.com/nexusswarm/nexus/internal/swarm"
	"github.com/nexusswarm/nexus/pkg/models"
)

// maxPlannedTasks bounds how many subtasks a decomposition may produce.
const maxPlannedTasks = 6

const plannerSystemPrompt = `You are a planning agent in a multi-agent swarm.
Your job is to decompose a goal into a small set of concrete subtasks.

Respond with ONLY a JSON array of task objects, no prose. Each object has:
  "id": short unique identifier (e.g. "t1")
  "title": short task title
  "description": detailed instructions for the agent doing the task
  "depends_on": array of task ids that must complete first (may be empty)
  "preferred_role": one of "researcher", "executor", "critic"

Rules:
- Produce at most 6 tasks. Prefer fewer, larger tasks over many tiny ones.
- Only add a dependency when the task genuinely needs the other's output.
- Independent tasks must not depend on each other, so they can run in parallel.`

// Planner decomposes goals into task graphs. It also serves planner-role
// tasks as a regular worker.
type Planner struct {
	base
}

// NewPlanner creates a planner over the completion service.
func NewPlanner(svc llm.CompletionService, mem *memory.Manager) *Planner {
	return &Planner{base: base{
		svc:        svc,
		mem:        mem,
		system:     plannerSystemPrompt,
		complexity: llm.ComplexityComplex,
	}}
}

// Execute implements swarm.Worker.
func (p *Planner) Execute(ctx context.Context, task models.Task, taskContext string) (swarm.WorkerResult, error) {
	resp, err := p.think(ctx, taskPrompt(task), taskContext)
	if err != nil {
		return swarm.WorkerResult{}, err
	}
	p.remember(task, resp.Text)
	return p.result(resp), nil
}

// plannedTask is the JSON shape the planner model replies with.
type plannedTask struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	DependsOn     []string `json:"depends_on"`
	PreferredRole string   `json:"preferred_role"`
}

// Decompose asks the model to break a goal into subtasks and returns the
// resulting graph. When the reply cannot be parsed, it degrades to a single
// executor task carrying the whole goal rather than failing the run.
func (p *Planner) Decompose(ctx context.Context, goal string) (*models.GoalGraph, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, fmt.Errorf("goal is empty")
	}

	resp, err := p.think(ctx, "Goal: "+goal, "")
	if err != nil {
		return nil, fmt.Errorf("decompose goal: %w", err)
	}

	tasks, err := parsePlan(resp.Text)
	if err != nil {
		log.Printf("[agent] WARNING: plan unparseable, falling back to a single task: %v", err)
		return singleTaskGraph(goal), nil
	}
	return &models.GoalGraph{Goal: goal, Tasks: tasks}, nil
}

// parsePlan extracts the JSON array from the model reply. Models sometimes
// wrap it in markdown fences or prose; everything outside the outermost
// brackets is discarded.
func parsePlan(text string) ([]*models.Task, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in reply")
	}

	var planned []plannedTask
	if err := json.Unmarshal([]byte(text[start:end+1]), &planned); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if len(planned) == 0 {
		return nil, fmt.Errorf("plan is empty")
	}
	if len(planned) > maxPlannedTasks {
		planned = planned[:maxPlannedTasks]
	}

	tasks := make([]*models.Task, 0, len(planned))
	for i, pt := range planned {
		if pt.ID == "" {
			pt.ID = fmt.Sprintf("t%d", i+1)
		}
		tasks = append(tasks, &models.Task{
			ID:          pt.ID,
			Title:       pt.Title,
			Description: pt.Description,
			Role:        planRole(pt.PreferredRole),
			DependsOn:   pt.DependsOn,
		})
	}
	return tasks, nil
}

// planRole maps the model's preferred_role to a known role, defaulting to
// executor for anything unrecognized.
func planRole(s string) models.Role {
	role := models.Role(strings.ToLower(strings.TrimSpace(s)))
	if role.Valid() {
		return role
	}
	return models.RoleExecutor
}

func singleTaskGraph(goal string) *models.GoalGraph {
	return &models.GoalGraph{
		Goal: goal,
		Tasks: []*models.Task{{
			ID:          "t1",
			Title:       "Complete the goal",
			Description: goal,
			Role:        models.RoleExecutor,
		}},
	}
}

// taskPrompt renders a task as the user prompt for a role worker.
func taskPrompt(task models.Task) string {
	if task.Description == "" {
		return task.Title
	}
	return fmt.Sprintf("Task: %s\n\n%s", task.Title, task.Description)
}
