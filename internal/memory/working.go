package memory

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Default working-memory bounds.
const (
	DefaultMaxSessions = 128
	DefaultMaxEntries  = 50
)

// ContextEntry is one turn of per-session context.
type ContextEntry struct {
	// Role is who produced the entry (system, agent, task).
	Role string
	// Content is the entry text.
	Content string
	// At is when the entry was added.
	At time.Time
}

// window is the sliding context window of one session.
type window struct {
	entries []ContextEntry
}

// WorkingMemory keeps a bounded sliding context window per session. Least
// recently used sessions are evicted wholesale once the session cap is hit;
// within a session, the oldest non-system entries are trimmed first.
type WorkingMemory struct {
	mu         sync.Mutex
	sessions   *lru.Cache[string, *window]
	maxEntries int
}

// NewWorkingMemory creates a working memory bounded to maxSessions session
// windows of maxEntries entries each. Zero values use the defaults.
func NewWorkingMemory(maxSessions, maxEntries int) (*WorkingMemory, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	cache, err := lru.New[string, *window](maxSessions)
	if err != nil {
		return nil, err
	}
	return &WorkingMemory{sessions: cache, maxEntries: maxEntries}, nil
}

// Add appends an entry to a session's window, trimming the oldest
// non-system entries once the window is over budget.
func (w *WorkingMemory) Add(sessionID string, entry ContextEntry) {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	win, ok := w.sessions.Get(sessionID)
	if !ok {
		win = &window{}
		w.sessions.Add(sessionID, win)
	}
	win.entries = append(win.entries, entry)

	if len(win.entries) > w.maxEntries {
		var system, rest []ContextEntry
		for _, e := range win.entries {
			if e.Role == "system" {
				system = append(system, e)
			} else {
				rest = append(rest, e)
			}
		}
		keep := w.maxEntries - len(system)
		if keep < 0 {
			keep = 0
		}
		if len(rest) > keep {
			rest = rest[len(rest)-keep:]
		}
		win.entries = append(system, rest...)
	}
}

// Entries returns a copy of a session's current window.
func (w *WorkingMemory) Entries(sessionID string) []ContextEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	win, ok := w.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	return append([]ContextEntry(nil), win.entries...)
}

// Clear drops a session's window.
func (w *WorkingMemory) Clear(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessions.Remove(sessionID)
}

// ActiveSessions returns the IDs of sessions with a live window, least
// recently used first.
func (w *WorkingMemory) ActiveSessions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessions.Keys()
}
