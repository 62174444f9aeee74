package security

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Audit results.
const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
	ResultError   = "error"
)

// AuditEvent is a single audit log entry.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Actor     string            `json:"actor"`
	Action    string            `json:"action"`
	Resource  string            `json:"resource"`
	Result    string            `json:"result"`
	Details   map[string]string `json:"details,omitempty"`
}

// AuditLogger appends security events to a JSONL file. Writes are
// serialized; a write failure is reported to the caller and never drops
// earlier entries.
type AuditLogger struct {
	mu   sync.Mutex
	path string
}

// NewAuditLogger creates the audit log at the given path, creating parent
// directories as needed.
func NewAuditLogger(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	return &AuditLogger{path: path}, nil
}

// Path returns the audit log file path.
func (a *AuditLogger) Path() string {
	return a.path
}

// Log appends one event.
func (a *AuditLogger) Log(event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// LogAction is a convenience wrapper building the event in place.
// Errors are swallowed after best effort; auditing must never take the
// guarded operation down with it.
func (a *AuditLogger) LogAction(eventType, actor, action, resource, result string, details map[string]string) {
	_ = a.Log(AuditEvent{
		EventType: eventType,
		Actor:     actor,
		Action:    action,
		Resource:  resource,
		Result:    result,
		Details:   details,
	})
}

// Query returns the last limit events matching the filters. Empty filter
// strings match everything.
func (a *AuditLogger) Query(eventType, actor string, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry AuditEvent
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		if eventType != "" && entry.EventType != eventType {
			continue
		}
		if actor != "" && entry.Actor != actor {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
