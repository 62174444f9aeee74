package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/nexusswarm/nexus/internal/llm"
	"github.com/nexusswarm/nexus/internal/security"
	"github.com/nexusswarm/nexus/internal/skill"
	"github.com/nexusswarm/nexus/pkg/models"
)

// scriptedService replies with canned text and records every request.
type scriptedService struct {
	reply    string
	requests []llm.CompletionRequest
}

func (s *scriptedService) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	s.requests = append(s.requests, req)
	return llm.CompletionResponse{Text: s.reply, StopReason: "end_turn"}, nil
}

func TestProviderServesAllRoles(t *testing.T) {
	provider, err := NewProvider(Config{LLM: &scriptedService{reply: "ok"}})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	for _, role := range []models.Role{
		models.RolePlanner, models.RoleResearcher, models.RoleExecutor,
		models.RoleCritic, models.RoleCoordinator,
	} {
		if _, err := provider.Worker(role); err != nil {
			t.Errorf("Worker(%s) = %v", role, err)
		}
	}
	if _, err := provider.Worker(models.Role("janitor")); err == nil {
		t.Error("unknown role did not error")
	}
}

func TestProviderRequiresService(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil {
		t.Error("provider without a completion service did not error")
	}
}

func TestWorkerInjectsTaskContext(t *testing.T) {
	svc := &scriptedService{reply: "done"}
	exec := NewExecutor(svc, nil, nil)

	task := models.Task{ID: "t1", Title: "Summarize", Description: "Summarize the findings."}
	result, err := exec.Execute(context.Background(), task, "earlier findings here")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Output != "done" {
		t.Errorf("output = %q", result.Output)
	}

	req := svc.requests[0]
	if !strings.Contains(req.System, "Context:\nearlier findings here") {
		t.Errorf("system prompt missing context block:\n%s", req.System)
	}
	if !strings.Contains(req.Prompt, "Summarize the findings.") {
		t.Errorf("prompt missing task description:\n%s", req.Prompt)
	}
	if req.Complexity != llm.ComplexityMedium {
		t.Errorf("complexity = %s, want medium", req.Complexity)
	}
}

func TestTruncatedReplyLowersConfidence(t *testing.T) {
	// Pretend the model hit its token ceiling.
	svc := completeFunc(func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Text: "partial", StopReason: "max_tokens"}, nil
	})
	exec := NewExecutor(svc, nil, nil)

	result, err := exec.Execute(context.Background(), models.Task{ID: "t1", Title: "x"}, "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Confidence != confidenceTruncated {
		t.Errorf("confidence = %v, want %v", result.Confidence, confidenceTruncated)
	}
}

type completeFunc func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error)

func (f completeFunc) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	return f(ctx, req)
}

func TestPlannerDecompose(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantTasks int
		wantRole  models.Role
	}{
		{
			name: "plain JSON array",
			reply: `[{"id": "t1", "title": "Research", "description": "Find sources.", "preferred_role": "researcher"},
				{"id": "t2", "title": "Write", "description": "Write it up.", "depends_on": ["t1"], "preferred_role": "executor"}]`,
			wantTasks: 2,
			wantRole:  models.RoleResearcher,
		},
		{
			name:      "fenced JSON",
			reply:     "Here is the plan:\n```json\n[{\"id\": \"t1\", \"title\": \"Do it\", \"preferred_role\": \"executor\"}]\n```",
			wantTasks: 1,
			wantRole:  models.RoleExecutor,
		},
		{
			name:      "unknown role defaults to executor",
			reply:     `[{"id": "t1", "title": "Do it", "preferred_role": "wizard"}]`,
			wantTasks: 1,
			wantRole:  models.RoleExecutor,
		},
		{
			name:      "garbage falls back to a single task",
			reply:     "I cannot produce JSON today.",
			wantTasks: 1,
			wantRole:  models.RoleExecutor,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := NewPlanner(&scriptedService{reply: tt.reply}, nil)
			graph, err := planner.Decompose(context.Background(), "write a report")
			if err != nil {
				t.Fatalf("decompose: %v", err)
			}
			if graph.Goal != "write a report" {
				t.Errorf("goal = %q", graph.Goal)
			}
			if len(graph.Tasks) != tt.wantTasks {
				t.Fatalf("tasks = %d, want %d", len(graph.Tasks), tt.wantTasks)
			}
			if graph.Tasks[0].Role != tt.wantRole {
				t.Errorf("role = %s, want %s", graph.Tasks[0].Role, tt.wantRole)
			}
		})
	}
}

func TestPlannerDecomposeCapsTaskCount(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 10; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"title": "task", "preferred_role": "executor"}`)
	}
	b.WriteString("]")

	planner := NewPlanner(&scriptedService{reply: b.String()}, nil)
	graph, err := planner.Decompose(context.Background(), "big goal")
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	if len(graph.Tasks) != maxPlannedTasks {
		t.Errorf("tasks = %d, want %d", len(graph.Tasks), maxPlannedTasks)
	}
	// Missing ids get generated ones.
	if graph.Tasks[0].ID != "t1" {
		t.Errorf("generated id = %q, want t1", graph.Tasks[0].ID)
	}
}

func TestPlannerDecomposeRejectsEmptyGoal(t *testing.T) {
	planner := NewPlanner(&scriptedService{reply: "[]"}, nil)
	if _, err := planner.Decompose(context.Background(), "   "); err == nil {
		t.Error("empty goal did not error")
	}
}

func TestExecutorSkillDirective(t *testing.T) {
	enforcer := security.NewEnforcer(nil)
	registry := skill.NewRegistry(enforcer)
	skill.RegisterBuiltins(registry)
	invoker := skill.NewInvoker(registry, enforcer, nil)

	// No LLM call should happen on the skill path.
	svc := completeFunc(func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
		t.Fatal("skill directive reached the model")
		return llm.CompletionResponse{}, nil
	})
	exec := NewExecutor(svc, nil, invoker)

	task := models.Task{ID: "t1", Title: "math", Description: "skill:calculator expression=6 * 7"}
	result, err := exec.Execute(context.Background(), task, "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Output != "42" {
		t.Errorf("output = %q, want 42", result.Output)
	}
}

func TestExecutorSkillDirectiveWithoutInvoker(t *testing.T) {
	exec := NewExecutor(&scriptedService{reply: "x"}, nil, nil)
	task := models.Task{ID: "t1", Description: "skill:calculator expression=1 + 1"}
	if _, err := exec.Execute(context.Background(), task, ""); err == nil {
		t.Error("skill directive without invoker did not error")
	}
}

func TestParseSkillDirective(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantOK     bool
		wantName   string
		wantParams map[string]string
	}{
		{
			name: "single param with spaces", in: "skill:calculator expression=2 + 3",
			wantOK: true, wantName: "calculator",
			wantParams: map[string]string{"expression": "2 + 3"},
		},
		{
			name: "multiple params", in: "skill:datetime format=unix timezone=UTC",
			wantOK: true, wantName: "datetime",
			wantParams: map[string]string{"format": "unix", "timezone": "UTC"},
		},
		{
			name: "no params", in: "skill:datetime",
			wantOK: true, wantName: "datetime", wantParams: map[string]string{},
		},
		{name: "not a directive", in: "summarize the findings", wantOK: false},
		{name: "empty name", in: "skill: foo=bar", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, params, ok := parseSkillDirective(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if len(params) != len(tt.wantParams) {
				t.Fatalf("params = %v, want %v", params, tt.wantParams)
			}
			for k, v := range tt.wantParams {
				if params[k] != v {
					t.Errorf("params[%s] = %q, want %q", k, params[k], v)
				}
			}
		})
	}
}

func TestCoordinatorEvaluateGoal(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"swarm", `{"strategy": "swarm", "reason": "multi-step"}`, StrategySwarm},
		{"direct", `{"strategy": "direct", "reason": "trivial"}`, StrategyDirect},
		{"fenced", "```json\n{\"strategy\": \"swarm\", \"reason\": \"x\"}\n```", StrategySwarm},
		{"garbage defaults to direct", "hard to say really", StrategyDirect},
		{"unknown strategy defaults to direct", `{"strategy": "maybe"}`, StrategyDirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := NewCoordinator(&scriptedService{reply: tt.reply}, nil)
			eval, err := coord.EvaluateGoal(context.Background(), "some goal")
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if eval.Strategy != tt.want {
				t.Errorf("strategy = %q, want %q", eval.Strategy, tt.want)
			}
		})
	}
}

func TestCoordinatorSynthesizePromptIsStable(t *testing.T) {
	svc := &scriptedService{reply: "the final answer"}
	coord := NewCoordinator(svc, nil)

	results := map[string]string{"t2": "second", "t1": "first"}
	answer, err := coord.Synthesize(context.Background(), "the goal", results)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if answer != "the final answer" {
		t.Errorf("answer = %q", answer)
	}

	prompt := svc.requests[0].Prompt
	t1 := strings.Index(prompt, "### Task t1:")
	t2 := strings.Index(prompt, "### Task t2:")
	if t1 < 0 || t2 < 0 || t1 > t2 {
		t.Errorf("task blocks missing or unordered:\n%s", prompt)
	}
	if svc.requests[0].System == coordinatorSystemPrompt {
		t.Error("synthesis used the strategy prompt instead of the synthesis prompt")
	}
}

func TestCriticReview(t *testing.T) {
	svc := &scriptedService{reply: "looks correct"}
	critic := NewCritic(svc, nil)

	review, err := critic.Review(context.Background(), "the goal", "the combined output")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if review != "looks correct" {
		t.Errorf("review = %q", review)
	}
	prompt := svc.requests[0].Prompt
	if !strings.Contains(prompt, "the goal") || !strings.Contains(prompt, "the combined output") {
		t.Errorf("review prompt missing goal or output:\n%s", prompt)
	}
}

func TestRoleComplexities(t *testing.T) {
	tests := []struct {
		role models.Role
		want llm.Complexity
	}{
		{models.RolePlanner, llm.ComplexityComplex},
		{models.RoleResearcher, llm.ComplexityComplex},
		{models.RoleExecutor, llm.ComplexityMedium},
		{models.RoleCritic, llm.ComplexityMedium},
		{models.RoleCoordinator, llm.ComplexityComplex},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			svc := &scriptedService{reply: "ok"}
			provider, err := NewProvider(Config{LLM: svc})
			if err != nil {
				t.Fatalf("new provider: %v", err)
			}
			w, err := provider.Worker(tt.role)
			if err != nil {
				t.Fatalf("worker: %v", err)
			}
			if _, err := w.Execute(context.Background(), models.Task{ID: "t1", Title: "x"}, ""); err != nil {
				t.Fatalf("execute: %v", err)
			}
			if got := svc.requests[0].Complexity; got != tt.want {
				t.Errorf("complexity = %s, want %s", got, tt.want)
			}
		})
	}
}
