// Package agent implements the role workers that execute swarm tasks:
// planner, researcher, executor, critic, and coordinator. All of them sit
// behind the swarm.Worker interface; the Provider hands the right one out
// per role.
package agent

import (
	"context"
	"fmt"

	"github.com/nexusswarm/nexus/internal/llm"
	"github.com/nexusswarm/nexus/internal/memory"
	"github.com/nexusswarm/nexus/internal/skill"
	"github.com/nexusswarm/nexus/internal/swarm"
	"github.com/nexusswarm/nexus/pkg/models"
)

// Confidence reported with worker results, by completion quality.
const (
	confidenceComplete  = 0.8
	confidenceTruncated = 0.5
)

// base carries what every role worker shares: the completion service, the
// optional memory manager, and the role's system prompt.
type base struct {
	svc        llm.CompletionService
	mem        *memory.Manager
	system     string
	complexity llm.Complexity
}

// think runs one completion: system prompt, recalled experience, dependency
// context, then the prompt itself.
func (b *base) think(ctx context.Context, prompt, taskContext string) (llm.CompletionResponse, error) {
	system := b.system
	if b.mem != nil {
		if recalled, err := b.mem.Recall(prompt, 3); err == nil && recalled != "" {
			system += "\n\n" + recalled
		}
	}
	if taskContext != "" {
		system += "\n\nContext:\n" + taskContext
	}

	return b.svc.Complete(ctx, llm.CompletionRequest{
		System:     system,
		Prompt:     prompt,
		Complexity: b.complexity,
	})
}

// result converts a completion into a worker result. Truncated replies get
// lower confidence so consensus rounds prefer complete ones.
func (b *base) result(resp llm.CompletionResponse) swarm.WorkerResult {
	confidence := confidenceComplete
	if resp.StopReason != "" && resp.StopReason != "end_turn" {
		confidence = confidenceTruncated
	}
	return swarm.WorkerResult{Output: resp.Text, Confidence: confidence}
}

// remember records a task result episode when memory is enabled.
func (b *base) remember(task models.Task, output string) {
	if b.mem == nil {
		return
	}
	_, _ = b.mem.Store(memory.Episode{
		Type:       memory.EpisodeTaskResult,
		TaskID:     task.ID,
		AgentID:    task.AssignedTo,
		Content:    fmt.Sprintf("%s: %s", task.Title, firstN(output, 500)),
		Importance: 0.5,
	})
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Config assembles the dependencies role workers need. Memory and Skills
// are optional.
type Config struct {
	// LLM is the completion service all workers think with.
	LLM llm.CompletionService
	// Memory enables experience recall and task-result recording.
	Memory *memory.Manager
	// Skills enables executor skill invocation.
	Skills *skill.Invoker
}

// Provider maps roles to their workers. Implements swarm.WorkerProvider.
type Provider struct {
	workers     map[models.Role]swarm.Worker
	planner     *Planner
	coordinator *Coordinator
	critic      *Critic
}

// NewProvider builds one worker per role from the config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("worker provider requires a completion service")
	}

	planner := NewPlanner(cfg.LLM, cfg.Memory)
	coordinator := NewCoordinator(cfg.LLM, cfg.Memory)
	critic := NewCritic(cfg.LLM, cfg.Memory)

	return &Provider{
		workers: map[models.Role]swarm.Worker{
			models.RolePlanner:     planner,
			models.RoleResearcher:  NewResearcher(cfg.LLM, cfg.Memory),
			models.RoleExecutor:    NewExecutor(cfg.LLM, cfg.Memory, cfg.Skills),
			models.RoleCritic:      critic,
			models.RoleCoordinator: coordinator,
		},
		planner:     planner,
		coordinator: coordinator,
		critic:      critic,
	}, nil
}

// Worker implements swarm.WorkerProvider.
func (p *Provider) Worker(role models.Role) (swarm.Worker, error) {
	w, ok := p.workers[role]
	if !ok {
		return nil, fmt.Errorf("no worker for role %q", role)
	}
	return w, nil
}

// Planner returns the planner for goal decomposition.
func (p *Provider) Planner() *Planner {
	return p.planner
}

// Coordinator returns the coordinator; it implements swarm.Synthesizer.
func (p *Provider) Coordinator() *Coordinator {
	return p.coordinator
}

// Critic returns the critic; it implements swarm.Reviewer.
func (p *Provider) Critic() *Critic {
	return p.critic
}
