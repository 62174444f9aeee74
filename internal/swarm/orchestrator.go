package swarm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexusswarm/nexus/pkg/models"
)

// State is the orchestrator's lifecycle phase.
type State string

const (
	// StateIdle means no goal is executing.
	StateIdle State = "idle"
	// StateExecuting means waves of tasks are being dispatched.
	StateExecuting State = "executing"
	// StateSynthesizing means all tasks resolved and the outcome is being built.
	StateSynthesizing State = "synthesizing"
	// StateDone means the last goal completed with its terminal tasks succeeded.
	StateDone State = "done"
	// StateFailed means the last goal ended with terminal tasks unresolved or failed.
	StateFailed State = "failed"
	// StateCancelled means the last goal was cancelled mid-flight.
	StateCancelled State = "cancelled"
)

// orchestratorID is the orchestrator's own address on the bus. Workers post
// task completions to this mailbox.
const orchestratorID = "orchestrator"

// DefaultEventBuffer is the event channel capacity unless configured.
const DefaultEventBuffer = 256

// Orchestrator drives a goal graph to completion: it dispatches waves of
// ready tasks to pooled agents, collects completions over the bus, resolves
// speculative executions by consensus, and synthesizes the final outcome.
//
// An Orchestrator runs one goal at a time. Execute may be called again after
// the previous goal finishes.
type Orchestrator struct {
	workers     WorkerProvider
	strategy    models.ConsensusStrategy
	retry       RetryConfig
	cancelGrace time.Duration
	busCfg      BusConfig
	poolCfg     PoolConfig
	eventBuffer int
	synthesizer Synthesizer
	reviewer    Reviewer
	logger      *DebugLogger

	bus       *MessageBus
	pool      *AgentPool
	consensus *ConsensusEngine
	emitter   *EventEmitter

	// runSeq numbers Execute calls. Completions are stamped with it so a
	// straggler from a cancelled goal cannot resolve a task of a later one.
	runSeq atomic.Uint64

	mu    sync.Mutex
	state State
	graph *TaskGraph
	goal  string
}

// NewOrchestrator creates an orchestrator from required dependencies and
// options.
func NewOrchestrator(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	if req.Workers == nil {
		return nil, fmt.Errorf("orchestrator requires a worker provider")
	}

	o := &Orchestrator{
		workers:     req.Workers,
		strategy:    models.StrategyMajority,
		retry:       DefaultRetryConfig(),
		cancelGrace: DefaultCancelGrace,
		eventBuffer: DefaultEventBuffer,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger != nil {
		setPackageLogger(o.logger)
	}

	o.bus = NewMessageBus(o.busCfg)
	o.poolCfg.OnSpawn = func(a models.Agent) {
		o.emit(Event{Type: EventAgentSpawned, AgentID: a.ID, Role: a.Role})
	}
	o.poolCfg.OnRetire = func(a models.Agent) {
		o.emit(Event{Type: EventAgentRetired, AgentID: a.ID, Role: a.Role})
	}
	o.pool = NewAgentPool(o.poolCfg, o.bus)
	o.consensus = NewConsensusEngine()
	o.emitter = NewEventEmitter(o.eventBuffer)
	return o, nil
}

// Events returns the orchestrator's progress event stream.
// The channel is closed by Shutdown.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// Bus exposes the message bus for inspection, chiefly the dead-letter queue.
func (o *Orchestrator) Bus() *MessageBus {
	return o.bus
}

// Execute runs a goal graph to completion and returns the synthesized
// outcome. Validation failures return before any task runs. On context
// cancellation, in-flight tasks get a grace window to finish; the partial
// outcome is returned together with the context error.
func (o *Orchestrator) Execute(ctx context.Context, gg *models.GoalGraph) (*models.Outcome, error) {
	if gg == nil {
		return nil, &ValidationError{Reason: "nil goal graph"}
	}

	graph, err := BuildGraph(gg.Tasks)
	if err != nil {
		return nil, err
	}
	for _, id := range gg.TerminalTasks {
		if _, ok := graph.Task(id); !ok {
			return nil, &ValidationError{TaskID: id, Reason: "terminal task not in graph"}
		}
	}

	o.mu.Lock()
	if o.state == StateExecuting || o.state == StateSynthesizing {
		o.mu.Unlock()
		return nil, fmt.Errorf("orchestrator is already executing a goal")
	}
	o.state = StateExecuting
	o.graph = graph
	o.goal = gg.Goal
	o.mu.Unlock()

	o.bus.Register(orchestratorID)
	started := time.Now()
	o.emit(Event{Type: EventGoalStarted, Message: gg.Goal})
	debugLog("[orchestrator] goal started: %s (%d tasks)", gg.Goal, graph.Size())

	runErr := o.runLoop(ctx, graph)

	o.setState(StateSynthesizing)
	outcome := o.buildOutcome(ctx, gg, graph, started)

	switch {
	case runErr != nil && ctx.Err() != nil:
		o.setState(StateCancelled)
		return outcome, runErr
	case runErr != nil:
		o.setState(StateFailed)
		return outcome, runErr
	case outcome.Success:
		o.setState(StateDone)
	default:
		o.setState(StateFailed)
	}
	o.emit(Event{Type: EventGoalDone, Message: fmt.Sprintf("success=%v", outcome.Success)})
	debugLog("[orchestrator] goal done: success=%v in %s", outcome.Success, outcome.Duration())
	return outcome, nil
}

// Shutdown drains the agent pool, closes the bus, and closes the event
// stream. The orchestrator cannot be reused afterwards.
func (o *Orchestrator) Shutdown(timeout time.Duration) error {
	err := o.pool.DrainAll(timeout)
	o.bus.Close()
	o.emitter.Close()
	if o.logger != nil {
		o.logger.Close()
	}
	return err
}

// buildOutcome folds the resolved graph into an Outcome and, when
// configured, runs coordinator synthesis and critic review. Synthesis
// failures degrade to per-task results instead of failing the goal.
func (o *Orchestrator) buildOutcome(ctx context.Context, gg *models.GoalGraph, graph *TaskGraph, started time.Time) *models.Outcome {
	outcome := &models.Outcome{
		Goal:      gg.Goal,
		Results:   make(map[string]string),
		Failures:  make(map[string]string),
		Skips:     make(map[string]string),
		Counts:    graph.Counts(),
		StartedAt: started,
	}

	for _, snap := range graph.Snapshot() {
		task, _ := graph.Task(snap.ID)
		switch task.Status {
		case models.TaskStatusSucceeded:
			outcome.Results[task.ID] = task.Result
		case models.TaskStatusFailed:
			outcome.Failures[task.ID] = task.Error
		case models.TaskStatusSkipped:
			outcome.Skips[task.ID] = task.SkipReason
		}
	}

	terminal := gg.TerminalTasks
	if len(terminal) == 0 {
		terminal = graph.Sinks()
	}
	outcome.Success = true
	for _, id := range terminal {
		task, ok := graph.Task(id)
		if !ok || task.Status != models.TaskStatusSucceeded {
			outcome.Success = false
			break
		}
	}

	if o.synthesizer != nil && len(outcome.Results) > 0 && ctx.Err() == nil {
		summary, err := o.synthesizer.Synthesize(ctx, gg.Goal, outcome.Results)
		if err != nil {
			log.Printf("[swarm] WARNING: synthesis failed, reporting raw results: %v", err)
		} else {
			outcome.Summary = summary
		}
	}
	if o.reviewer != nil && len(outcome.Results) > 0 && ctx.Err() == nil {
		combined := outcome.Summary
		if combined == "" {
			combined = combineResults(graph)
		}
		review, err := o.reviewer.Review(ctx, gg.Goal, combined)
		if err != nil {
			log.Printf("[swarm] WARNING: review failed: %v", err)
		} else {
			outcome.Review = review
		}
	}

	outcome.CompletedAt = time.Now()
	return outcome
}

// combineResults joins succeeded task results in topological order.
func combineResults(graph *TaskGraph) string {
	var b strings.Builder
	for _, snap := range graph.Snapshot() {
		if snap.Status != models.TaskStatusSucceeded {
			continue
		}
		task, _ := graph.Task(snap.ID)
		fmt.Fprintf(&b, "## %s\n%s\n\n", task.Title, task.Result)
	}
	return strings.TrimSpace(b.String())
}

// OrchestratorSnapshot is a point-in-time view of orchestrator state for
// monitoring surfaces.
type OrchestratorSnapshot struct {
	// State is the current lifecycle phase.
	State State
	// Goal is the objective being executed, if any.
	Goal string
	// Tasks holds per-task status in topological order.
	Tasks []models.TaskSnapshot
	// Agents holds per-agent status ordered by ID.
	Agents []models.AgentSnapshot
	// DeadLetters is the number of dead-lettered messages.
	DeadLetters int
	// EventsDropped is the number of events dropped by slow consumers.
	EventsDropped uint64
}

// Snapshot returns a consistent read-only view of the orchestrator.
func (o *Orchestrator) Snapshot() OrchestratorSnapshot {
	o.mu.Lock()
	state := o.state
	graph := o.graph
	goal := o.goal
	o.mu.Unlock()

	snap := OrchestratorSnapshot{
		State:         state,
		Goal:          goal,
		Agents:        o.pool.Snapshot(),
		DeadLetters:   o.bus.DeadLetterCount(),
		EventsDropped: o.emitter.DroppedCount(),
	}
	if graph != nil {
		snap.Tasks = graph.Snapshot()
	}
	return snap
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) emit(e Event) {
	e.Timestamp = time.Now()
	o.emitter.Emit(e)
}
