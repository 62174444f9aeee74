package swarm

import (
	"time"

	"github.com/nexusswarm/nexus/pkg/models"
)

// RetryConfig tunes the backoff applied when a task cannot be dispatched
// because its role is at capacity.
type RetryConfig struct {
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration
	// Multiplier grows the delay after each attempt.
	Multiplier float64
	// MaxAttempts bounds dispatch attempts per task before it fails.
	MaxAttempts int
}

// DefaultRetryConfig returns the retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
		MaxAttempts:     5,
	}
}

// DefaultCancelGrace is how long in-flight tasks get to finish after the
// goal context is cancelled.
const DefaultCancelGrace = 5 * time.Second

// RequiredConfig holds the dependencies an Orchestrator cannot run without.
type RequiredConfig struct {
	// Workers resolves a worker per role.
	Workers WorkerProvider
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the debug logger used by the orchestrator and its
// components.
func WithLogger(logger *DebugLogger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithRetry overrides the dispatch retry configuration.
func WithRetry(cfg RetryConfig) Option {
	return func(o *Orchestrator) {
		if cfg.InitialInterval > 0 {
			o.retry.InitialInterval = cfg.InitialInterval
		}
		if cfg.MaxInterval > 0 {
			o.retry.MaxInterval = cfg.MaxInterval
		}
		if cfg.Multiplier > 1 {
			o.retry.Multiplier = cfg.Multiplier
		}
		if cfg.MaxAttempts > 0 {
			o.retry.MaxAttempts = cfg.MaxAttempts
		}
	}
}

// WithConsensusStrategy sets the strategy used to resolve speculative
// candidate executions. Defaults to majority.
func WithConsensusStrategy(strategy models.ConsensusStrategy) Option {
	return func(o *Orchestrator) {
		if strategy.Valid() {
			o.strategy = strategy
		}
	}
}

// WithCancelGrace sets the drain window granted to in-flight tasks when the
// goal context is cancelled.
func WithCancelGrace(grace time.Duration) Option {
	return func(o *Orchestrator) {
		if grace > 0 {
			o.cancelGrace = grace
		}
	}
}

// WithMailboxCapacity sets the bounded mailbox size on the bus.
func WithMailboxCapacity(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.busCfg.MailboxCapacity = n
		}
	}
}

// WithBackpressure sets the bus policy applied when a mailbox is full.
func WithBackpressure(policy BackpressurePolicy) Option {
	return func(o *Orchestrator) {
		o.busCfg.Policy = policy
	}
}

// WithMaxAgentsPerRole sets the default agent cap per role.
func WithMaxAgentsPerRole(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.poolCfg.MaxPerRole = n
		}
	}
}

// WithRoleCaps overrides the agent cap for specific roles.
func WithRoleCaps(caps map[models.Role]int) Option {
	return func(o *Orchestrator) {
		o.poolCfg.RoleCaps = caps
	}
}

// WithSynthesizer sets the coordinator used to produce the outcome summary.
// Without one, the outcome carries per-task results only.
func WithSynthesizer(s Synthesizer) Option {
	return func(o *Orchestrator) {
		o.synthesizer = s
	}
}

// WithReviewer sets the critic that reviews combined results before the
// outcome is reported.
func WithReviewer(r Reviewer) Option {
	return func(o *Orchestrator) {
		o.reviewer = r
	}
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}
