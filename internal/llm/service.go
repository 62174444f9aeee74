// Package llm provides the completion-service boundary for agent workers:
// an Anthropic client with optional AWS Bedrock transport, a complexity
// router that picks the model per request, and token usage tracking.
package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
)

// Complexity hints the router at how demanding a request is.
type Complexity string

const (
	// ComplexitySimple marks mechanical requests suited to a fast model.
	ComplexitySimple Complexity = "simple"
	// ComplexityMedium is the default tier.
	ComplexityMedium Complexity = "medium"
	// ComplexityComplex marks requests that need the strongest model.
	ComplexityComplex Complexity = "complex"
)

// Valid returns true if the complexity is a known value.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return true
	default:
		return false
	}
}

// CompletionRequest is a single-turn completion request.
type CompletionRequest struct {
	// System is the system prompt.
	System string
	// Prompt is the user turn.
	Prompt string
	// Model overrides the configured model when set.
	Model anthropic.Model
	// MaxTokens bounds the response; 0 means the service default.
	MaxTokens int64
	// Complexity hints the router; empty means medium.
	Complexity Complexity
}

// CompletionResponse is the model's reply with usage accounting.
type CompletionResponse struct {
	// Text is the concatenated text content of the reply.
	Text string
	// Model is the model that produced the reply.
	Model anthropic.Model
	// InputTokens and OutputTokens are the usage reported by the API.
	InputTokens  int64
	OutputTokens int64
	// StopReason is the API's stop reason.
	StopReason string
}

// CompletionService is the boundary agent workers depend on. Both the raw
// client and the router satisfy it.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
