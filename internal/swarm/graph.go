package swarm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/toposort"

	"github.com/nexusswarm/nexus/pkg/models"
)

// TaskGraph is a directed acyclic graph of tasks with dependency tracking.
// Tasks are nodes, and edges represent "blocked by" relationships.
//
// The status map is the one piece of state shared by concurrently completing
// tasks, so every transition plus its downstream skip propagation runs as a
// single critical section under one mutex. A reader calling ReadySet can
// never observe a half-propagated skip.
type TaskGraph struct {
	mu sync.Mutex
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// dependents maps task ID to IDs of tasks that depend on it.
	dependents map[string][]string
	// order holds task IDs in topological order, fixed at build time.
	order []string
}

// BuildGraph validates tasks and their dependency edges and constructs a
// TaskGraph. Construction is all-or-nothing: duplicate IDs, dangling
// dependency references, and cycles are rejected before any task runs.
func BuildGraph(tasks []*models.Task) (*TaskGraph, error) {
	if len(tasks) == 0 {
		return nil, &ValidationError{Reason: "graph has no tasks"}
	}

	g := &TaskGraph{
		nodes:      make(map[string]*models.Task, len(tasks)),
		edges:      make(map[string][]string, len(tasks)),
		dependents: make(map[string][]string),
	}

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if task.ID == "" {
			return nil, &ValidationError{Reason: "task has empty ID"}
		}
		if _, exists := g.nodes[task.ID]; exists {
			return nil, &ValidationError{TaskID: task.ID, Reason: "duplicate task ID"}
		}
		if !task.Role.Valid() {
			return nil, &ValidationError{TaskID: task.ID, Reason: fmt.Sprintf("unknown role %q", task.Role)}
		}
		if task.Status == "" {
			task.Status = models.TaskStatusPending
		}
		if task.Status != models.TaskStatusPending {
			return nil, &ValidationError{TaskID: task.ID, Reason: fmt.Sprintf("initial status must be pending, got %q", task.Status)}
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = time.Now()
		}
		if task.Candidates < 1 {
			task.Candidates = 1
		}
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
	}

	// Second pass: build edges from DependsOn fields.
	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return nil, &ValidationError{
					TaskID: task.ID,
					Reason: fmt.Sprintf("depends on unknown task %s", depID),
				}
			}
			if depID == task.ID {
				return nil, &ValidationError{TaskID: task.ID, Reason: "depends on itself", Err: ErrCycleDetected}
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], task.ID)
		}
	}

	// Topological sort doubles as the cycle check. Edge (dep, task) means
	// the dependency must come before the task.
	var sortEdges []toposort.Edge
	for _, id := range sortedIDs(g.nodes) {
		deps := g.edges[id]
		if len(deps) == 0 {
			sortEdges = append(sortEdges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range deps {
			sortEdges = append(sortEdges, toposort.Edge{depID, id})
		}
	}
	sorted, err := toposort.Toposort(sortEdges)
	if err != nil {
		return nil, &ValidationError{Reason: "circular dependency", Err: ErrCycleDetected}
	}
	g.order = make([]string, 0, len(sorted))
	for _, v := range sorted {
		if v != nil {
			g.order = append(g.order, v.(string))
		}
	}

	return g, nil
}

func sortedIDs(nodes map[string]*models.Task) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReadySet promotes every pending task whose dependencies have all succeeded
// to ready, and returns the resulting wave of ready task IDs in topological
// order. Tasks already marked ready from a previous call are included.
func (g *TaskGraph) ReadySet() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ready []string
	for _, id := range g.order {
		task := g.nodes[id]
		switch task.Status {
		case models.TaskStatusReady:
			ready = append(ready, id)
			continue
		case models.TaskStatusPending:
		default:
			continue
		}

		depsMet := true
		for _, depID := range g.edges[id] {
			if g.nodes[depID].Status != models.TaskStatusSucceeded {
				depsMet = false
				break
			}
		}
		if depsMet {
			task.Status = models.TaskStatusReady
			ready = append(ready, id)
		}
	}
	return ready
}

// MarkRunning transitions a ready task to running and records the agent
// assignment and start time.
func (g *TaskGraph) MarkRunning(id, agentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}
	if task.Status != models.TaskStatusReady {
		return fmt.Errorf("task %s is %s, cannot start", id, task.Status)
	}
	task.Status = models.TaskStatusRunning
	task.AssignedTo = agentID
	now := time.Now()
	if task.StartedAt == nil {
		task.StartedAt = &now
	}
	return nil
}

// MarkSucceeded records a successful result for a running task.
func (g *TaskGraph) MarkSucceeded(id, result string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("unknown task %s", id)
	}
	if task.Status.Resolved() {
		return fmt.Errorf("task %s already resolved as %s", id, task.Status)
	}
	task.Status = models.TaskStatusSucceeded
	task.Result = result
	now := time.Now()
	task.CompletedAt = &now
	return nil
}

// MarkFailed records a failure and atomically skips every transitive
// dependent. The skip reasons chain back to this failure. Returns the IDs
// of the tasks that were skipped as a consequence.
func (g *TaskGraph) MarkFailed(id string, taskErr error) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("unknown task %s", id)
	}
	if task.Status.Resolved() {
		return nil, fmt.Errorf("task %s already resolved as %s", id, task.Status)
	}
	task.Status = models.TaskStatusFailed
	if taskErr != nil {
		task.Error = taskErr.Error()
	}
	now := time.Now()
	task.CompletedAt = &now

	skipped := g.propagateSkips(id, fmt.Sprintf("dependency %s failed: %s", id, task.Error))
	return skipped, nil
}

// MarkSkipped skips a task explicitly and propagates to its dependents.
// Returns the IDs of every task skipped, including this one.
func (g *TaskGraph) MarkSkipped(id, reason string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("unknown task %s", id)
	}
	if task.Status.Resolved() {
		return nil, fmt.Errorf("task %s already resolved as %s", id, task.Status)
	}
	g.skipLocked(task, reason)
	skipped := g.propagateSkips(id, fmt.Sprintf("dependency %s skipped (%s)", id, reason))
	return append([]string{id}, skipped...), nil
}

// propagateSkips walks the dependents of origin and skips every unresolved
// task downstream, returning the skipped IDs. Each level extends the reason
// chain so a skipped task is traceable back to the originating failure.
// Caller must hold g.mu.
func (g *TaskGraph) propagateSkips(origin, reason string) []string {
	type item struct {
		id     string
		reason string
	}
	queue := make([]item, 0, len(g.dependents[origin]))
	for _, depID := range g.dependents[origin] {
		queue = append(queue, item{depID, reason})
	}
	var skipped []string
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		task := g.nodes[next.id]
		if task.Status.Resolved() {
			continue
		}
		g.skipLocked(task, next.reason)
		skipped = append(skipped, next.id)
		childReason := fmt.Sprintf("dependency %s skipped (%s)", next.id, next.reason)
		for _, depID := range g.dependents[next.id] {
			queue = append(queue, item{depID, childReason})
		}
	}
	return skipped
}

// skipLocked marks a single task skipped. Caller must hold g.mu.
func (g *TaskGraph) skipLocked(task *models.Task, reason string) {
	task.Status = models.TaskStatusSkipped
	task.SkipReason = reason
	now := time.Now()
	task.CompletedAt = &now
}

// IsTerminal returns true once no task is pending, ready, or running.
func (g *TaskGraph) IsTerminal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, task := range g.nodes {
		if !task.Status.Resolved() {
			return false
		}
	}
	return true
}

// RunningCount returns the number of tasks currently running.
func (g *TaskGraph) RunningCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, task := range g.nodes {
		if task.Status == models.TaskStatusRunning {
			n++
		}
	}
	return n
}

// StuckTaskIDs returns the unresolved tasks that are neither ready nor
// running. Used to report deadlocks.
func (g *TaskGraph) StuckTaskIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var stuck []string
	for _, id := range g.order {
		if g.nodes[id].Status == models.TaskStatusPending {
			stuck = append(stuck, id)
		}
	}
	return stuck
}

// Task returns a copy of the task with the given ID.
// All mutation goes through the Mark methods.
func (g *TaskGraph) Task(id string) (models.Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, ok := g.nodes[id]
	if !ok {
		return models.Task{}, false
	}
	return *task, true
}

// Size returns the number of tasks in the graph.
func (g *TaskGraph) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Dependencies returns the IDs of the tasks the given task depends on.
func (g *TaskGraph) Dependencies(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.edges[id]...)
}

// DependencyResults returns title/result pairs for the succeeded
// dependencies of a task, in topological order. Workers use these to build
// task context.
func (g *TaskGraph) DependencyResults(id string) []DependencyResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	deps := make(map[string]bool, len(g.edges[id]))
	for _, depID := range g.edges[id] {
		deps[depID] = true
	}

	var results []DependencyResult
	for _, candidate := range g.order {
		if !deps[candidate] {
			continue
		}
		task := g.nodes[candidate]
		if task.Status == models.TaskStatusSucceeded {
			results = append(results, DependencyResult{
				TaskID: task.ID,
				Title:  task.Title,
				Result: task.Result,
			})
		}
	}
	return results
}

// DependencyResult is a succeeded dependency's output, used as context for
// downstream tasks.
type DependencyResult struct {
	TaskID string
	Title  string
	Result string
}

// Sinks returns the tasks no other task depends on, in topological order.
// When a goal designates no terminal tasks, the sinks decide overall success.
func (g *TaskGraph) Sinks() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var sinks []string
	for _, id := range g.order {
		if len(g.dependents[id]) == 0 {
			sinks = append(sinks, id)
		}
	}
	return sinks
}

// IncrementAttempts bumps and returns a task's dispatch attempt counter.
// The first dispatch counts as attempt 1.
func (g *TaskGraph) IncrementAttempts(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, ok := g.nodes[id]
	if !ok {
		return 0
	}
	task.DispatchAttempts++
	return task.DispatchAttempts
}

// Counts tallies tasks per status.
func (g *TaskGraph) Counts() map[models.TaskStatus]int {
	g.mu.Lock()
	defer g.mu.Unlock()

	counts := make(map[models.TaskStatus]int)
	for _, task := range g.nodes {
		counts[task.Status]++
	}
	return counts
}

// Snapshot returns a read-only view of every task in topological order.
func (g *TaskGraph) Snapshot() []models.TaskSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snaps := make([]models.TaskSnapshot, 0, len(g.order))
	for _, id := range g.order {
		task := g.nodes[id]
		snaps = append(snaps, models.TaskSnapshot{
			ID:          task.ID,
			Role:        task.Role,
			Status:      task.Status,
			StartedAt:   task.StartedAt,
			CompletedAt: task.CompletedAt,
		})
	}
	return snaps
}
