package memory

import (
	"fmt"
	"strings"
)

// Manager is the unified facade over working and episodic memory. The
// episodic layer is optional; without it, Store and Recall degrade to
// no-ops so agents run the same with memory disabled.
type Manager struct {
	working  *WorkingMemory
	episodic *EpisodicStore
	db       *DB
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// DBPath is the episodic database path. Empty disables the episodic
	// layer.
	DBPath string
	// MaxSessions and MaxEntries bound working memory; zero uses defaults.
	MaxSessions int
	MaxEntries  int
}

// NewManager opens the episodic store (when configured) and builds the
// working memory.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	working, err := NewWorkingMemory(cfg.MaxSessions, cfg.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("working memory: %w", err)
	}

	m := &Manager{working: working}
	if cfg.DBPath != "" {
		db, err := Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		m.db = db
		m.episodic = NewEpisodicStore(db)
	}
	return m, nil
}

// Working returns the working-memory layer.
func (m *Manager) Working() *WorkingMemory {
	return m.working
}

// Episodic returns the episodic layer, or nil when disabled.
func (m *Manager) Episodic() *EpisodicStore {
	return m.episodic
}

// Store records an episode. Returns the episode ID, or empty when the
// episodic layer is disabled.
func (m *Manager) Store(ep Episode) (string, error) {
	if m.episodic == nil {
		return "", nil
	}
	return m.episodic.Record(ep)
}

// Recall searches episodic memory and formats the hits as a context block
// an agent can prepend to its prompt. Empty when nothing matches or the
// layer is disabled.
func (m *Manager) Recall(query string, limit int) (string, error) {
	if m.episodic == nil {
		return "", nil
	}
	episodes, err := m.episodic.Recall(query, limit)
	if err != nil {
		return "", err
	}
	if len(episodes) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Relevant past experience:\n")
	for _, ep := range episodes {
		fmt.Fprintf(&b, "- [%s] %s\n", ep.Type, ep.Content)
	}
	return b.String(), nil
}

// Close releases the episodic database, if open.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
