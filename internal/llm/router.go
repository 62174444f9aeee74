package llm

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
)

// Router picks a model per request based on its complexity hint and falls
// back down a configured chain when a model errors. It wraps a single
// CompletionService and satisfies CompletionService itself, so workers stay
// unaware of routing.
type Router struct {
	svc CompletionService

	mu        sync.Mutex
	routes    map[Complexity]anthropic.Model
	fallbacks map[anthropic.Model][]anthropic.Model
	fallback  anthropic.Model
}

// NewRouter creates a router over a completion service. The defaultModel is
// used for medium and complex requests; simple requests route to Haiku.
func NewRouter(svc CompletionService, defaultModel anthropic.Model) *Router {
	if defaultModel == "" {
		defaultModel = anthropic.ModelClaudeSonnet4_20250514
	}
	return &Router{
		svc: svc,
		routes: map[Complexity]anthropic.Model{
			ComplexitySimple:  anthropic.ModelClaude3_5Haiku20241022,
			ComplexityMedium:  defaultModel,
			ComplexityComplex: defaultModel,
		},
		fallbacks: make(map[anthropic.Model][]anthropic.Model),
		fallback:  defaultModel,
	}
}

// SetRoute maps a complexity tier to a model.
func (r *Router) SetRoute(c Complexity, model anthropic.Model) error {
	if !c.Valid() {
		return fmt.Errorf("unknown complexity %q", c)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[c] = model
	return nil
}

// AddFallbacks defines the models tried, in order, when the primary fails.
func (r *Router) AddFallbacks(primary anthropic.Model, fallbacks ...anthropic.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[primary] = fallbacks
}

// resolve returns the model chain for a hint: the routed primary followed by
// its fallbacks.
func (r *Router) resolve(hint Complexity) []anthropic.Model {
	if !hint.Valid() {
		hint = ComplexityMedium
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	primary, ok := r.routes[hint]
	if !ok || primary == "" {
		primary = r.fallback
	}
	chain := []anthropic.Model{primary}
	chain = append(chain, r.fallbacks[primary]...)
	return chain
}

// Complete routes the request down its model chain until one succeeds.
// A request carrying an explicit model bypasses routing but still falls
// back.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var chain []anthropic.Model
	if req.Model != "" {
		r.mu.Lock()
		chain = append([]anthropic.Model{req.Model}, r.fallbacks[req.Model]...)
		r.mu.Unlock()
	} else {
		chain = r.resolve(req.Complexity)
	}

	var lastErr error
	for _, model := range chain {
		attempt := req
		attempt.Model = model
		resp, err := r.svc.Complete(ctx, attempt)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Printf("[llm] WARNING: model %s failed, trying fallback: %v", model, err)
	}
	return CompletionResponse{}, fmt.Errorf("all models in chain failed: %w", lastErr)
}
