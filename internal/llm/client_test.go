package llm

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestNewClient_WithAPIKey(t *testing.T) {
	cfg := ClientConfig{
		APIKey: "test-key-123",
		Model:  anthropic.ModelClaudeSonnet4_20250514,
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("Model = %q, want %q", client.Model(), anthropic.ModelClaudeSonnet4_20250514)
	}
	if client.Tracker() == nil {
		t.Error("Tracker should not be nil")
	}
}

func TestNewClient_NoAPIKey(t *testing.T) {
	original := os.Getenv("ANTHROPIC_API_KEY")
	defer os.Setenv("ANTHROPIC_API_KEY", original)
	os.Unsetenv("ANTHROPIC_API_KEY")

	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("NewClient should fail without API key")
	}
}

func TestNewClient_DefaultModel(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("Default model = %q, want %q", client.Model(), anthropic.ModelClaudeSonnet4_20250514)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	tests := []struct {
		name  string
		model anthropic.Model
		want  string
	}{
		{"sonnet", anthropic.ModelClaudeSonnet4_20250514, "us.anthropic.claude-sonnet-4-20250514-v1:0"},
		{"haiku", anthropic.ModelClaude3_5Haiku20241022, "us.anthropic.claude-3-5-haiku-20241022-v1:0"},
		{"already bedrock", anthropic.Model("us.anthropic.claude-sonnet-4-20250514-v1:0"), "us.anthropic.claude-sonnet-4-20250514-v1:0"},
		{"custom", anthropic.Model("my-custom-model"), "my-custom-model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translateModelForBedrock(tt.model); string(got) != tt.want {
				t.Errorf("translateModelForBedrock(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Add(200, 100)

	input, output := tracker.Total()
	if input != 300 || output != 150 {
		t.Errorf("Total = %d/%d, want 300/150", input, output)
	}
	if tracker.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", tracker.Calls())
	}

	tracker.Reset()
	input, output = tracker.Total()
	if input != 0 || output != 0 || tracker.Calls() != 0 {
		t.Errorf("after reset: %d/%d/%d calls, want zeros", input, output, tracker.Calls())
	}
}

func TestTokenTracker_Cost(t *testing.T) {
	tracker := NewTokenTracker()

	// 1M input at $3/1M plus 1M output at $15/1M.
	tracker.Add(1_000_000, 1_000_000)
	if cost := tracker.Cost(); cost != 18.0 {
		t.Errorf("Cost = %f, want 18.0", cost)
	}
}

// fakeService records the models it was asked for and fails until it
// reaches the succeeding one.
type fakeService struct {
	models    []anthropic.Model
	succeedOn anthropic.Model
}

func (f *fakeService) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	f.models = append(f.models, req.Model)
	if req.Model != f.succeedOn {
		return CompletionResponse{}, errors.New("model unavailable")
	}
	return CompletionResponse{Text: "ok", Model: req.Model}, nil
}

func TestRouterRoutesByComplexity(t *testing.T) {
	svc := &fakeService{succeedOn: anthropic.ModelClaude3_5Haiku20241022}
	router := NewRouter(svc, anthropic.ModelClaudeSonnet4_20250514)

	resp, err := router.Complete(context.Background(), CompletionRequest{
		Prompt:     "2+2",
		Complexity: ComplexitySimple,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Model != anthropic.ModelClaude3_5Haiku20241022 {
		t.Errorf("simple request routed to %q, want haiku", resp.Model)
	}
}

func TestRouterFallsBack(t *testing.T) {
	fallback := anthropic.Model("fallback-model")
	svc := &fakeService{succeedOn: fallback}
	router := NewRouter(svc, anthropic.ModelClaudeSonnet4_20250514)
	router.AddFallbacks(anthropic.ModelClaudeSonnet4_20250514, fallback)

	resp, err := router.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Model != fallback {
		t.Errorf("resp model = %q, want the fallback", resp.Model)
	}
	if len(svc.models) != 2 {
		t.Errorf("attempts = %v, want primary then fallback", svc.models)
	}
}

func TestRouterExhaustedChain(t *testing.T) {
	svc := &fakeService{succeedOn: "never"}
	router := NewRouter(svc, anthropic.ModelClaudeSonnet4_20250514)

	if _, err := router.Complete(context.Background(), CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error when every model in the chain fails")
	}
}

func TestRouterSetRoute(t *testing.T) {
	svc := &fakeService{succeedOn: anthropic.Model("custom")}
	router := NewRouter(svc, anthropic.ModelClaudeSonnet4_20250514)

	if err := router.SetRoute(ComplexityComplex, "custom"); err != nil {
		t.Fatalf("SetRoute: %v", err)
	}
	if err := router.SetRoute(Complexity("bogus"), "x"); err == nil {
		t.Error("SetRoute should reject unknown complexity")
	}

	resp, err := router.Complete(context.Background(), CompletionRequest{
		Prompt:     "hard",
		Complexity: ComplexityComplex,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Model != "custom" {
		t.Errorf("complex request routed to %q, want custom", resp.Model)
	}
}
