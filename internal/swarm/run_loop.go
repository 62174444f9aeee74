package swarm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/nexusswarm/nexus/pkg/models"
)

// msgTypeCompletion tags task completion messages on the bus.
const msgTypeCompletion = "task_completion"

// completion is the payload a task goroutine posts to the orchestrator's
// mailbox when its task resolves. run identifies the Execute call that
// dispatched the task; completions from earlier runs are discarded.
type completion struct {
	run       uint64
	taskID    string
	agentID   string
	result    WorkerResult
	err       error
	consensus *models.ConsensusResult
}

// retryState tracks dispatch backoff for one ready task whose role was at
// capacity.
type retryState struct {
	bo      *backoff.ExponentialBackOff
	retryAt time.Time
}

// runLoop drives the graph to a terminal state: dispatch every ready task,
// wait for a completion or a retry timer, repeat. It returns nil when every
// task resolved, a DeadlockError when no progress is possible, and the
// context error after a cancellation drain.
func (o *Orchestrator) runLoop(ctx context.Context, graph *TaskGraph) error {
	// taskCtx outlives the goal context so in-flight work can use the
	// cancellation grace window. It is cancelled when the drain gives up.
	taskCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()

	run := o.runSeq.Add(1)
	inflight := make(map[string]string) // task ID -> primary agent ID
	retries := make(map[string]*retryState)

	for {
		ready := graph.ReadySet()

		dispatchable := 0
		for _, id := range ready {
			if _, running := inflight[id]; running {
				continue
			}
			if rs, ok := retries[id]; ok && time.Now().Before(rs.retryAt) {
				continue
			}
			dispatchable++
			agentID, dispatched := o.dispatch(taskCtx, graph, run, id, retries)
			if dispatched {
				inflight[id] = agentID
				delete(retries, id)
			}
		}
		if dispatchable > 0 {
			o.emit(Event{Type: EventWaveStarted, Message: fmt.Sprintf("%d ready tasks", dispatchable)})
		}

		if graph.IsTerminal() {
			return nil
		}

		// No running work, no pending retry, nothing ready: the graph can
		// never make progress again.
		if len(inflight) == 0 && len(retries) == 0 {
			if len(graph.ReadySet()) == 0 {
				return &DeadlockError{StuckTaskIDs: graph.StuckTaskIDs()}
			}
			continue
		}

		msg, err := o.awaitCompletion(ctx, retries)
		if err != nil {
			if ctx.Err() != nil {
				return o.drainAfterCancel(ctx, graph, run, inflight, cancelTasks)
			}
			// A retry timer fired; go back to dispatch.
			continue
		}
		if msg.run != run {
			debugLog("[orchestrator] discarding completion for task %s from run %d", msg.taskID, msg.run)
			continue
		}
		o.handleCompletion(graph, msg, inflight)
	}
}

// dispatch acquires an agent (plus any extra speculative candidates), marks
// the task running, and launches its execution goroutine. When the role is
// at capacity the task is scheduled for a backoff retry, failing permanently
// once attempts are exhausted. Returns the primary agent ID and whether the
// task actually started.
func (o *Orchestrator) dispatch(taskCtx context.Context, graph *TaskGraph, run uint64, id string, retries map[string]*retryState) (string, bool) {
	task, ok := graph.Task(id)
	if !ok {
		return "", false
	}

	attempt := graph.IncrementAttempts(id)
	worker, err := o.workers.Worker(task.Role)
	if err != nil {
		o.failTask(graph, id, "", fmt.Errorf("no worker for role %s: %w", task.Role, err))
		delete(retries, id)
		return "", false
	}

	primary, err := o.pool.Acquire(task.Role)
	if err != nil {
		if !errors.Is(err, ErrAgentUnavailable) {
			o.failTask(graph, id, "", err)
			delete(retries, id)
			return "", false
		}
		if attempt >= o.retry.MaxAttempts {
			o.failTask(graph, id, "", fmt.Errorf("dispatch attempts exhausted after %d tries: %w", attempt, err))
			delete(retries, id)
			return "", false
		}
		rs, ok := retries[id]
		if !ok {
			rs = &retryState{bo: o.newBackOff()}
			retries[id] = rs
		}
		delay := rs.bo.NextBackOff()
		rs.retryAt = time.Now().Add(delay)
		o.emit(Event{
			Type:    EventTaskRetrying,
			TaskID:  id,
			Role:    task.Role,
			Message: fmt.Sprintf("attempt %d/%d, retrying in %s", attempt, o.retry.MaxAttempts, delay),
		})
		debugLog("[orchestrator] task %s waiting for %s capacity, retry in %s", id, task.Role, delay)
		return "", false
	}

	agents := []*models.Agent{primary}
	// Extra candidates are best-effort: capacity pressure never blocks the
	// primary execution.
	for len(agents) < task.Candidates {
		extra, err := o.pool.Acquire(task.Role)
		if err != nil {
			break
		}
		agents = append(agents, extra)
	}

	if err := graph.MarkRunning(id, primary.ID); err != nil {
		for _, a := range agents {
			o.pool.Release(a.ID)
		}
		o.failTask(graph, id, primary.ID, err)
		return "", false
	}
	for _, a := range agents {
		o.pool.Assign(a.ID, id)
	}
	o.emit(Event{Type: EventTaskStarted, TaskID: id, TaskTitle: task.Title, AgentID: primary.ID, Role: task.Role})
	debugLog("[orchestrator] task %s started on %s (%d candidates)", id, primary.ID, len(agents))

	taskContext := buildTaskContext(graph, id)
	go o.executeTask(taskCtx, run, task, taskContext, agents, worker)
	return primary.ID, true
}

// newBackOff builds the per-task exponential backoff from the retry config.
func (o *Orchestrator) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = o.retry.InitialInterval
	bo.MaxInterval = o.retry.MaxInterval
	bo.Multiplier = o.retry.Multiplier
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// buildTaskContext assembles the dependency results a worker sees, in
// topological order.
func buildTaskContext(graph *TaskGraph, id string) string {
	deps := graph.DependencyResults(id)
	if len(deps) == 0 {
		return ""
	}
	ctx := "Results from completed dependencies:\n"
	for _, dep := range deps {
		ctx += fmt.Sprintf("\n[%s] %s:\n%s\n", dep.TaskID, dep.Title, dep.Result)
	}
	return ctx
}

// executeTask runs a task on its candidate agents and posts one completion
// to the orchestrator's mailbox. With a single candidate the worker result
// passes through; with several, a consensus round over the candidate outputs
// decides which result stands.
func (o *Orchestrator) executeTask(ctx context.Context, run uint64, task models.Task, taskContext string, agents []*models.Agent, worker Worker) {
	comp := completion{run: run, taskID: task.ID, agentID: agents[0].ID}

	if len(agents) == 1 {
		comp.result, comp.err = worker.Execute(ctx, task, taskContext)
	} else {
		comp.result, comp.consensus, comp.err = o.executeCandidates(ctx, task, taskContext, len(agents), worker)
	}

	for _, a := range agents {
		o.pool.Release(a.ID)
	}

	// The orchestrator's mailbox is drained by the run loop, so a blocked
	// send here only means the loop is momentarily busy.
	if _, err := o.bus.Send(context.Background(), comp.agentID, orchestratorID, msgTypeCompletion, &comp); err != nil {
		debugLog("[orchestrator] completion for task %s undeliverable: %v", task.ID, err)
	}
}

// executeCandidates runs the task once per candidate and resolves the
// results by consensus: each candidate approves the leading result (the
// highest-confidence output) if its own output agrees, and rejects it
// otherwise. Candidates that errored abstain.
func (o *Orchestrator) executeCandidates(ctx context.Context, task models.Task, taskContext string, n int, worker Worker) (WorkerResult, *models.ConsensusResult, error) {
	results := make([]WorkerResult, n)
	errs := make([]error, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			results[i], errs[i] = worker.Execute(ctx, task, taskContext)
			return nil
		})
	}
	g.Wait()

	leading := -1
	for i := range results {
		if errs[i] != nil {
			continue
		}
		if leading < 0 || results[i].Confidence > results[leading].Confidence {
			leading = i
		}
	}
	if leading < 0 {
		return WorkerResult{}, nil, fmt.Errorf("all %d candidates failed: %w", n, errs[0])
	}

	votes := make([]models.Vote, 0, n)
	for i := range results {
		vote := models.Vote{
			AgentID:    fmt.Sprintf("%s-candidate-%d", task.ID, i),
			Confidence: results[i].Confidence,
		}
		switch {
		case errs[i] != nil:
			vote.Decision = models.VoteAbstain
			vote.Reasoning = errs[i].Error()
		case results[i].Output == results[leading].Output:
			vote.Decision = models.VoteApprove
		default:
			vote.Decision = models.VoteReject
			vote.Reasoning = "produced a different result"
		}
		votes = append(votes, vote)
	}

	result := o.consensus.Evaluate(votes, o.strategy)
	switch result.Decision {
	case models.DecisionApproved:
		return results[leading], &result, nil
	case models.DecisionRejected:
		return WorkerResult{}, &result, fmt.Errorf("candidates rejected the leading result (%d approve, %d reject)",
			result.Tally.Approve, result.Tally.Reject)
	default:
		return WorkerResult{}, &result, fmt.Errorf("candidate round: %w", ErrConsensusInconclusive)
	}
}

// awaitCompletion blocks on the orchestrator mailbox until a completion
// arrives, the earliest retry timer fires, or the context is cancelled.
func (o *Orchestrator) awaitCompletion(ctx context.Context, retries map[string]*retryState) (*completion, error) {
	waitCtx := ctx
	var cancel context.CancelFunc
	if next, ok := earliestRetry(retries); ok {
		waitCtx, cancel = context.WithDeadline(ctx, next)
		defer cancel()
	}

	msg, err := o.bus.Receive(waitCtx, orchestratorID)
	if err != nil {
		return nil, err
	}
	comp, ok := msg.Payload.(*completion)
	if !ok {
		return nil, fmt.Errorf("unexpected %s payload %T", msg.Type, msg.Payload)
	}
	return comp, nil
}

func earliestRetry(retries map[string]*retryState) (time.Time, bool) {
	var next time.Time
	for _, rs := range retries {
		if next.IsZero() || rs.retryAt.Before(next) {
			next = rs.retryAt
		}
	}
	return next, !next.IsZero()
}

// handleCompletion applies one task completion to the graph and emits the
// corresponding events.
func (o *Orchestrator) handleCompletion(graph *TaskGraph, comp *completion, inflight map[string]string) {
	delete(inflight, comp.taskID)
	task, _ := graph.Task(comp.taskID)

	if comp.consensus != nil {
		o.emit(Event{
			Type:    EventConsensusResolved,
			TaskID:  comp.taskID,
			Message: fmt.Sprintf("%s: %s (%d approve, %d reject, %d abstain)", comp.consensus.Strategy, comp.consensus.Decision, comp.consensus.Tally.Approve, comp.consensus.Tally.Reject, comp.consensus.Tally.Abstain),
		})
	}

	if comp.err != nil {
		o.failTask(graph, comp.taskID, comp.agentID, comp.err)
		return
	}

	if err := graph.MarkSucceeded(comp.taskID, comp.result.Output); err != nil {
		debugLog("[orchestrator] stale completion for task %s: %v", comp.taskID, err)
		return
	}
	o.emit(Event{Type: EventTaskCompleted, TaskID: comp.taskID, TaskTitle: task.Title, AgentID: comp.agentID})
	debugLog("[orchestrator] task %s completed by %s", comp.taskID, comp.agentID)
}

// failTask marks a task failed and emits the failure plus one skip event per
// downstream task taken out with it.
func (o *Orchestrator) failTask(graph *TaskGraph, id, agentID string, taskErr error) {
	wrapped := &TaskExecutionError{TaskID: id, AgentID: agentID, Err: taskErr}
	skipped, err := graph.MarkFailed(id, wrapped)
	if err != nil {
		debugLog("[orchestrator] stale failure for task %s: %v", id, err)
		return
	}
	task, _ := graph.Task(id)
	o.emit(Event{Type: EventTaskFailed, TaskID: id, TaskTitle: task.Title, AgentID: agentID, Error: wrapped})
	debugLog("[orchestrator] task %s failed: %v (%d downstream skips)", id, taskErr, len(skipped))
	for _, skipID := range skipped {
		skipTask, _ := graph.Task(skipID)
		o.emit(Event{Type: EventTaskSkipped, TaskID: skipID, TaskTitle: skipTask.Title, Message: skipTask.SkipReason})
	}
}

// drainAfterCancel gives in-flight tasks the grace window to post their
// completions, then fails whatever is still running and retires all agents.
// Always returns the goal context's error.
func (o *Orchestrator) drainAfterCancel(ctx context.Context, graph *TaskGraph, run uint64, inflight map[string]string, cancelTasks context.CancelFunc) error {
	o.emit(Event{Type: EventGoalCancelled, Message: fmt.Sprintf("draining %d in-flight tasks", len(inflight))})
	debugLog("[orchestrator] cancelled, draining %d in-flight tasks for up to %s", len(inflight), o.cancelGrace)

	drainCtx, cancel := context.WithTimeout(context.Background(), o.cancelGrace)
	defer cancel()

	for len(inflight) > 0 {
		msg, err := o.bus.Receive(drainCtx, orchestratorID)
		if err != nil {
			break
		}
		comp, ok := msg.Payload.(*completion)
		if !ok || comp.run != run {
			continue
		}
		o.handleCompletion(graph, comp, inflight)
	}

	// Grace expired: stop the workers and resolve what is left.
	cancelTasks()
	for id, agentID := range inflight {
		o.failTask(graph, id, agentID, fmt.Errorf("cancelled: %w", ctx.Err()))
		delete(inflight, id)
	}
	if err := o.pool.DrainAll(time.Second); err != nil {
		debugLog("[orchestrator] drain after cancel: %v", err)
	}
	return ctx.Err()
}
