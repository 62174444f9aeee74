package swarm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nexusswarm/nexus/pkg/models"
)

// DefaultMaxPerRole bounds concurrent agents per role unless configured.
const DefaultMaxPerRole = 5

// PoolConfig configures an AgentPool.
type PoolConfig struct {
	// MaxPerRole is the default cap on concurrent agents per role.
	MaxPerRole int
	// RoleCaps overrides the cap for specific roles.
	RoleCaps map[models.Role]int
	// OnSpawn, if set, observes every newly spawned agent.
	// Must not call back into the pool.
	OnSpawn func(agent models.Agent)
	// OnRetire, if set, observes every removed agent.
	OnRetire func(agent models.Agent)
}

// RetireTimeoutError reports an agent whose in-flight task did not finish
// before the retire deadline. The caller marks the task failed.
type RetireTimeoutError struct {
	// AgentID is the force-removed agent.
	AgentID string
	// TaskID is the task that was still in flight.
	TaskID string
}

func (e *RetireTimeoutError) Error() string {
	return fmt.Sprintf("agent %s force-retired with task %s still in flight", e.AgentID, e.TaskID)
}

// agentEntry pairs an agent with its idle signal. The idle channel is
// replaced on every acquire and closed when the agent stops working, so a
// retirer can wait for in-flight work to finish.
type agentEntry struct {
	agent *models.Agent
	idle  chan struct{}
}

// AgentPool manages the lifecycle of bounded worker agents per role.
//
// The pool owns every handle; callers borrow an agent between Acquire and
// Release and never mutate it directly. Acquire fails fast at the role cap
// so wave schedulers can back off instead of deadlocking.
type AgentPool struct {
	cfg PoolConfig
	bus *MessageBus

	mu     sync.Mutex
	agents map[string]*agentEntry
}

// NewAgentPool creates a pool. The bus may be nil; when set, spawned agents
// are registered on it and terminating agents are flagged so late messages
// dead-letter instead of queueing.
func NewAgentPool(cfg PoolConfig, bus *MessageBus) *AgentPool {
	if cfg.MaxPerRole <= 0 {
		cfg.MaxPerRole = DefaultMaxPerRole
	}
	return &AgentPool{
		cfg:    cfg,
		bus:    bus,
		agents: make(map[string]*agentEntry),
	}
}

// capFor returns the concurrency cap for a role.
func (p *AgentPool) capFor(role models.Role) int {
	if n, ok := p.cfg.RoleCaps[role]; ok && n > 0 {
		return n
	}
	return p.cfg.MaxPerRole
}

// Acquire returns an idle agent of the requested role, spawning a new one
// if the role is under its cap. At cap with none idle it fails immediately
// with ErrAgentUnavailable; callers retry with backoff rather than block,
// since blocking here can deadlock the wave scheduler.
func (p *AgentPool) Acquire(role models.Role) (*models.Agent, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	p.mu.Lock()

	count := 0
	for _, entry := range p.agents {
		if entry.agent.Role != role {
			continue
		}
		count++
		if entry.agent.State == models.AgentStateIdle {
			entry.agent.State = models.AgentStateBusy
			entry.idle = make(chan struct{})
			p.mu.Unlock()
			return entry.agent, nil
		}
	}

	if count >= p.capFor(role) {
		p.mu.Unlock()
		return nil, fmt.Errorf("role %s at cap %d: %w", role, p.capFor(role), ErrAgentUnavailable)
	}

	agent := &models.Agent{
		ID:        fmt.Sprintf("%s-%s", role, uuid.New().String()[:6]),
		Role:      role,
		State:     models.AgentStateBusy,
		SpawnedAt: time.Now(),
	}
	p.agents[agent.ID] = &agentEntry{agent: agent, idle: make(chan struct{})}
	p.mu.Unlock()

	if p.bus != nil {
		p.bus.Register(agent.ID)
	}
	debugLog("[pool] spawned agent %s", agent.ID)
	if p.cfg.OnSpawn != nil {
		p.cfg.OnSpawn(*agent)
	}
	return agent, nil
}

// Assign records the task an acquired agent is working on.
func (p *AgentPool) Assign(agentID, taskID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.agents[agentID]; ok {
		entry.agent.TaskID = taskID
	}
}

// Release returns a borrowed agent to idle and signals any retirer waiting
// for its in-flight work. Releasing a terminating agent only signals; the
// agent does not return to the idle set.
func (p *AgentPool) Release(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.agents[agentID]
	if !ok {
		return
	}
	if entry.agent.State == models.AgentStateBusy {
		entry.agent.State = models.AgentStateIdle
	}
	entry.agent.TaskID = ""
	entry.agent.TasksCompleted++
	select {
	case <-entry.idle:
		// Already signalled.
	default:
		close(entry.idle)
	}
}

// Retire transitions an agent to terminating, waits up to timeout for any
// in-flight task to finish, then removes it. If the deadline passes the
// agent is force-removed and a RetireTimeoutError carrying the stuck task
// is returned so the caller can mark it failed.
func (p *AgentPool) Retire(agentID string, timeout time.Duration) error {
	p.mu.Lock()
	entry, ok := p.agents[agentID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("unknown agent %s", agentID)
	}
	wasBusy := entry.agent.State == models.AgentStateBusy
	taskID := entry.agent.TaskID
	idle := entry.idle
	entry.agent.State = models.AgentStateTerminating
	p.mu.Unlock()

	if p.bus != nil {
		p.bus.SetTerminating(agentID)
	}

	var timedOut bool
	if wasBusy {
		select {
		case <-idle:
		case <-time.After(timeout):
			timedOut = true
		}
	}

	p.mu.Lock()
	retired := *entry.agent
	delete(p.agents, agentID)
	p.mu.Unlock()
	if p.bus != nil {
		p.bus.Unregister(agentID)
	}
	if p.cfg.OnRetire != nil {
		p.cfg.OnRetire(retired)
	}

	if timedOut {
		debugLog("[pool] force-retired agent %s, task %s unfinished", agentID, taskID)
		return &RetireTimeoutError{AgentID: agentID, TaskID: taskID}
	}
	debugLog("[pool] retired agent %s", agentID)
	return nil
}

// DrainAll retires every agent, sharing one deadline. Used for coordinated
// shutdown. Returns the first retire failure, if any.
func (p *AgentPool) DrainAll(timeout time.Duration) error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.agents))
	for id := range p.agents {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			return p.Retire(id, timeout)
		})
	}
	return g.Wait()
}

// Get returns a copy of the agent with the given ID.
func (p *AgentPool) Get(agentID string) (models.Agent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.agents[agentID]
	if !ok {
		return models.Agent{}, false
	}
	return *entry.agent, true
}

// Count returns the number of live agents.
func (p *AgentPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.agents)
}

// CountByRole returns the number of live agents of a role.
func (p *AgentPool) CountByRole(role models.Role) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, entry := range p.agents {
		if entry.agent.Role == role {
			n++
		}
	}
	return n
}

// Snapshot returns a read-only view of every agent, ordered by ID.
func (p *AgentPool) Snapshot() []models.AgentSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snaps := make([]models.AgentSnapshot, 0, len(p.agents))
	for _, entry := range p.agents {
		snaps = append(snaps, models.AgentSnapshot{
			ID:     entry.agent.ID,
			Role:   entry.agent.Role,
			State:  entry.agent.State,
			TaskID: entry.agent.TaskID,
		})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps
}
