package swarm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexusswarm/nexus/pkg/models"
)

func TestPoolAcquireSpawnsUnderCap(t *testing.T) {
	pool := NewAgentPool(PoolConfig{MaxPerRole: 2}, nil)

	a1, err := pool.Acquire(models.RoleExecutor)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if a1.State != models.AgentStateBusy {
		t.Errorf("state = %s, want busy", a1.State)
	}

	a2, err := pool.Acquire(models.RoleExecutor)
	if err != nil {
		t.Fatalf("acquire second: %v", err)
	}
	if a1.ID == a2.ID {
		t.Error("expected a distinct agent for the second acquire")
	}
	if pool.CountByRole(models.RoleExecutor) != 2 {
		t.Errorf("count = %d, want 2", pool.CountByRole(models.RoleExecutor))
	}
}

func TestPoolAcquireFailsFastAtCap(t *testing.T) {
	pool := NewAgentPool(PoolConfig{MaxPerRole: 1}, nil)

	if _, err := pool.Acquire(models.RoleExecutor); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	start := time.Now()
	_, err := pool.Acquire(models.RoleExecutor)
	if !errors.Is(err, ErrAgentUnavailable) {
		t.Fatalf("expected ErrAgentUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("acquire at cap blocked for %v; must fail fast", elapsed)
	}
}

func TestPoolCapsArePerRole(t *testing.T) {
	pool := NewAgentPool(PoolConfig{MaxPerRole: 1}, nil)

	if _, err := pool.Acquire(models.RoleExecutor); err != nil {
		t.Fatalf("acquire executor: %v", err)
	}
	// A different role has its own cap.
	if _, err := pool.Acquire(models.RoleResearcher); err != nil {
		t.Fatalf("acquire researcher: %v", err)
	}
}

func TestPoolRoleCapOverride(t *testing.T) {
	pool := NewAgentPool(PoolConfig{
		MaxPerRole: 1,
		RoleCaps:   map[models.Role]int{models.RoleExecutor: 3},
	}, nil)

	for i := 0; i < 3; i++ {
		if _, err := pool.Acquire(models.RoleExecutor); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if _, err := pool.Acquire(models.RoleExecutor); !errors.Is(err, ErrAgentUnavailable) {
		t.Fatalf("expected ErrAgentUnavailable past override cap, got %v", err)
	}
}

func TestPoolReleaseReuses(t *testing.T) {
	pool := NewAgentPool(PoolConfig{MaxPerRole: 1}, nil)

	a1, err := pool.Acquire(models.RoleCritic)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	pool.Release(a1.ID)

	a2, err := pool.Acquire(models.RoleCritic)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if a2.ID != a1.ID {
		t.Error("expected the released agent to be reused")
	}
	if pool.Count() != 1 {
		t.Errorf("count = %d, want 1", pool.Count())
	}
}

func TestPoolRetireIdleAgent(t *testing.T) {
	pool := NewAgentPool(PoolConfig{}, nil)

	a, _ := pool.Acquire(models.RolePlanner)
	pool.Release(a.ID)

	if err := pool.Retire(a.ID, time.Second); err != nil {
		t.Fatalf("retire idle agent: %v", err)
	}
	if pool.Count() != 0 {
		t.Errorf("count = %d, want 0", pool.Count())
	}
}

func TestPoolRetireWaitsForInflight(t *testing.T) {
	pool := NewAgentPool(PoolConfig{}, nil)

	a, _ := pool.Acquire(models.RoleExecutor)
	pool.Assign(a.ID, "t1")

	// Finish the task shortly after retire starts waiting.
	go func() {
		time.Sleep(30 * time.Millisecond)
		pool.Release(a.ID)
	}()

	if err := pool.Retire(a.ID, time.Second); err != nil {
		t.Fatalf("retire should succeed once in-flight work finishes: %v", err)
	}
}

func TestPoolRetireTimeoutForceRemoves(t *testing.T) {
	pool := NewAgentPool(PoolConfig{}, nil)

	a, _ := pool.Acquire(models.RoleExecutor)
	pool.Assign(a.ID, "t1")

	err := pool.Retire(a.ID, 20*time.Millisecond)
	var rerr *RetireTimeoutError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RetireTimeoutError, got %v", err)
	}
	if rerr.TaskID != "t1" {
		t.Errorf("stuck task = %q, want t1", rerr.TaskID)
	}
	if pool.Count() != 0 {
		t.Error("agent should be force-removed after timeout")
	}
}

func TestPoolRetiringAgentDeadLettersMessages(t *testing.T) {
	bus := NewMessageBus(BusConfig{})
	bus.Register("sender")
	pool := NewAgentPool(PoolConfig{}, bus)

	a, _ := pool.Acquire(models.RoleExecutor)
	pool.Assign(a.ID, "t1")

	done := make(chan error, 1)
	go func() { done <- pool.Retire(a.ID, time.Second) }()

	// Give the retire a moment to flag the agent as terminating.
	time.Sleep(20 * time.Millisecond)
	msg, _ := bus.Send(context.Background(), "sender", a.ID, "late", "too late")
	if msg.Outcome != "dead_lettered" {
		t.Errorf("message to terminating agent: outcome = %s, want dead_lettered", msg.Outcome)
	}

	pool.Release(a.ID)
	if err := <-done; err != nil {
		t.Fatalf("retire: %v", err)
	}
}

func TestPoolDrainAll(t *testing.T) {
	pool := NewAgentPool(PoolConfig{}, nil)

	for _, role := range []models.Role{models.RolePlanner, models.RoleExecutor, models.RoleCritic} {
		a, err := pool.Acquire(role)
		if err != nil {
			t.Fatalf("acquire %s: %v", role, err)
		}
		pool.Release(a.ID)
	}

	if err := pool.DrainAll(time.Second); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if pool.Count() != 0 {
		t.Errorf("count after drain = %d, want 0", pool.Count())
	}
}

func TestPoolSnapshot(t *testing.T) {
	pool := NewAgentPool(PoolConfig{}, nil)

	a, _ := pool.Acquire(models.RoleResearcher)
	pool.Assign(a.ID, "t9")

	snaps := pool.Snapshot()
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].Role != models.RoleResearcher || snaps[0].State != models.AgentStateBusy || snaps[0].TaskID != "t9" {
		t.Errorf("unexpected snapshot: %+v", snaps[0])
	}
}
