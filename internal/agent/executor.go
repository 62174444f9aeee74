package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexusswarm/nexus/internal/llm"
	"github.com/nexusswarm/nexus/internal/memory"
	"github.com/nexusswarm/nexus/internal/skill"
	"github.com/nexusswarm/nexus/internal/swarm"
	"github.com/nexusswarm/nexus/pkg/models"
)

const executorSystemPrompt = `You are an executor agent in a multi-agent swarm.
You carry out concrete tasks: writing content, producing analyses, and
transforming inputs into the requested output.

Be direct and produce the deliverable itself, not a description of how you
would produce it. When context from earlier tasks is provided, build on it
instead of repeating it.`

// skillDirective marks a task description as a direct skill invocation
// rather than an LLM task, e.g. "skill:calculator expression=2 + 3".
const skillDirective = "skill:"

// Executor performs concrete work. Tasks whose description carries a skill
// directive are routed to the skill invoker under the capability enforcer;
// everything else goes to the model.
type Executor struct {
	base
	skills *skill.Invoker
}

// NewExecutor creates an executor. The invoker may be nil, in which case
// skill directives fail.
func NewExecutor(svc llm.CompletionService, mem *memory.Manager, skills *skill.Invoker) *Executor {
	return &Executor{
		base: base{
			svc:        svc,
			mem:        mem,
			system:     executorSystemPrompt,
			complexity: llm.ComplexityMedium,
		},
		skills: skills,
	}
}

// Execute implements swarm.Worker.
func (e *Executor) Execute(ctx context.Context, task models.Task, taskContext string) (swarm.WorkerResult, error) {
	if name, params, ok := parseSkillDirective(task.Description); ok {
		return e.invokeSkill(ctx, task, name, params)
	}

	resp, err := e.think(ctx, taskPrompt(task), taskContext)
	if err != nil {
		return swarm.WorkerResult{}, err
	}
	e.remember(task, resp.Text)
	return e.result(resp), nil
}

func (e *Executor) invokeSkill(ctx context.Context, task models.Task, name string, params map[string]string) (swarm.WorkerResult, error) {
	if e.skills == nil {
		return swarm.WorkerResult{}, fmt.Errorf("task %s requests skill %q but no skills are configured", task.ID, name)
	}

	actor := task.AssignedTo
	if actor == "" {
		actor = task.ID
	}
	result, err := e.skills.Invoke(ctx, actor, name, params)
	if err != nil {
		return swarm.WorkerResult{}, err
	}
	if !result.Success {
		return swarm.WorkerResult{}, fmt.Errorf("skill %s: %s", name, result.Error)
	}
	e.remember(task, result.Output)
	return swarm.WorkerResult{Output: result.Output, Confidence: confidenceComplete}, nil
}

// parseSkillDirective recognizes descriptions of the form
// "skill:<name> key=value key=value ...". Values run to the next " key="
// boundary, so they may contain spaces.
func parseSkillDirective(description string) (string, map[string]string, bool) {
	s := strings.TrimSpace(description)
	if !strings.HasPrefix(s, skillDirective) {
		return "", nil, false
	}
	s = strings.TrimPrefix(s, skillDirective)

	name, rest, _ := strings.Cut(s, " ")
	if name == "" {
		return "", nil, false
	}

	params := make(map[string]string)
	for rest != "" {
		rest = strings.TrimSpace(rest)
		key, after, ok := strings.Cut(rest, "=")
		if !ok || key == "" {
			break
		}
		value := after
		// A following "key=" starts the next parameter.
		if idx := nextParamStart(after); idx >= 0 {
			value = strings.TrimSpace(after[:idx])
			rest = after[idx:]
		} else {
			rest = ""
		}
		params[strings.TrimSpace(key)] = value
	}
	return name, params, true
}

// nextParamStart finds where the next "key=" begins in s, or -1. It scans
// for an '=' and walks back to the space that starts its key.
func nextParamStart(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] != '=' {
			continue
		}
		j := i - 1
		for j >= 0 && s[j] != ' ' {
			j--
		}
		if j >= 0 && j+1 < i {
			return j + 1
		}
	}
	return -1
}
