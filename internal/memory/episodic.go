package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Episode types recorded by the swarm.
const (
	EpisodeInteraction = "interaction"
	EpisodeTaskResult  = "task_result"
	EpisodeObservation = "observation"
	EpisodeInsight     = "insight"
)

// Episode is a single recorded interaction or event.
type Episode struct {
	// ID is assigned on record.
	ID string
	// Type classifies the episode (interaction, task_result, observation,
	// insight).
	Type string
	// Goal is the goal being pursued when the episode was recorded.
	Goal string
	// TaskID and AgentID tie the episode to its origin, when applicable.
	TaskID  string
	AgentID string
	// Content is the recorded text.
	Content string
	// Importance in [0, 1] affects recall ranking and consolidation.
	Importance float64
	// AccessCount is bumped on every recall hit.
	AccessCount int
	// CreatedAt is when the episode was recorded.
	CreatedAt time.Time
}

// EpisodicStore persists episodes in SQLite and recalls them by keyword.
type EpisodicStore struct {
	db *DB
}

// NewEpisodicStore creates a store over an opened, migrated database.
func NewEpisodicStore(db *DB) *EpisodicStore {
	return &EpisodicStore{db: db}
}

// Record persists an episode and returns its assigned ID.
func (s *EpisodicStore) Record(ep Episode) (string, error) {
	if ep.Content == "" {
		return "", fmt.Errorf("episode has no content")
	}
	if ep.Type == "" {
		ep.Type = EpisodeInteraction
	}
	if ep.Importance < 0 {
		ep.Importance = 0
	}
	if ep.Importance > 1 {
		ep.Importance = 1
	}
	ep.ID = uuid.New().String()[:12]
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO episodes (id, episode_type, goal, task_id, agent_id, content, importance, access_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, ep.ID, ep.Type, ep.Goal, ep.TaskID, ep.AgentID, ep.Content, ep.Importance, formatTime(ep.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("record episode: %w", err)
	}
	return ep.ID, nil
}

// Recall returns episodes whose content or goal matches the query, most
// important first. Matched episodes get their access count bumped.
func (s *EpisodicStore) Recall(query string, limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 5
	}
	pattern := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT id, episode_type, goal, task_id, agent_id, content, importance, access_count, created_at
		FROM episodes
		WHERE content LIKE ? OR goal LIKE ?
		ORDER BY importance DESC, created_at DESC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("recall episodes: %w", err)
	}
	episodes, err := scanEpisodes(rows)
	if err != nil {
		return nil, err
	}

	for _, ep := range episodes {
		if _, err := s.db.Exec("UPDATE episodes SET access_count = access_count + 1 WHERE id = ?", ep.ID); err != nil {
			return nil, fmt.Errorf("bump access count: %w", err)
		}
	}
	return episodes, nil
}

// Recent returns the most recently recorded episodes.
func (s *EpisodicStore) Recent(limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, episode_type, goal, task_id, agent_id, content, importance, access_count, created_at
		FROM episodes
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent episodes: %w", err)
	}
	return scanEpisodes(rows)
}

// HighImportance returns episodes at or above the threshold, candidates for
// consolidation into long-term context.
func (s *EpisodicStore) HighImportance(threshold float64, limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, episode_type, goal, task_id, agent_id, content, importance, access_count, created_at
		FROM episodes
		WHERE importance >= ?
		ORDER BY importance DESC, access_count DESC
		LIMIT ?
	`, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("high-importance episodes: %w", err)
	}
	return scanEpisodes(rows)
}

// Count returns the number of stored episodes.
func (s *EpisodicStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM episodes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count episodes: %w", err)
	}
	return n, nil
}

// Purge deletes episodes older than the given duration. Returns the number
// deleted.
func (s *EpisodicStore) Purge(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := s.db.Exec("DELETE FROM episodes WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge episodes: %w", err)
	}
	return result.RowsAffected()
}

func scanEpisodes(rows *sql.Rows) ([]Episode, error) {
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var ep Episode
		var createdAt string
		if err := rows.Scan(&ep.ID, &ep.Type, &ep.Goal, &ep.TaskID, &ep.AgentID, &ep.Content, &ep.Importance, &ep.AccessCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		if t, err := parseTime(createdAt); err == nil {
			ep.CreatedAt = t
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}
