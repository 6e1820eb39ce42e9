// Package todos provides a per-session task list persisted to disk, plus the
// tool definitions and middleware that expose it to the model.
package todos

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Task statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// ValidStatus reports whether s is one of the three task statuses.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

// Item is one task in a session's list.
type Item struct {
	Content string `json:"content"`
	Status  string `json:"status"`
	ID      string `json:"id"`
}

// Store persists task lists as one JSON file per session under dir.
type Store struct {
	dir    string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewStore creates a store rooted at dir; an empty dir resolves to
// ~/.agentkit/todos.
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".agentkit", "todos")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create todos directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

func (s *Store) load(sessionID string) ([]Item, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read todos file: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse todos file: %w", err)
	}
	return items, nil
}

func (s *Store) save(sessionID string, items []Item) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode todos: %w", err)
	}
	if err := os.WriteFile(s.path(sessionID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write todos file: %w", err)
	}
	return nil
}

// Create replaces the session's list with the given task descriptions, all
// pending, with ids assigned "1".."N" in order.
func (s *Store) Create(sessionID string, contents []string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, 0, len(contents))
	for i, content := range contents {
		items = append(items, Item{
			Content: content,
			Status:  StatusPending,
			ID:      fmt.Sprintf("%d", i+1),
		})
	}
	if err := s.save(sessionID, items); err != nil {
		return nil, err
	}
	s.logger.Debug().Str("session_id", sessionID).Int("tasks", len(items)).Msg("Todo list created")
	return items, nil
}

// Update sets the status of one task and returns its previous status.
func (s *Store) Update(sessionID, taskID, status string) (string, error) {
	if !ValidStatus(status) {
		return "", fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(sessionID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", fmt.Errorf("no todo list exists for this session")
	}

	for i := range items {
		if items[i].ID == taskID {
			old := items[i].Status
			items[i].Status = status
			if err := s.save(sessionID, items); err != nil {
				return "", err
			}
			return old, nil
		}
	}
	return "", fmt.Errorf("no task with id %s", taskID)
}

// Query returns the session's tasks, optionally filtered by status. An empty
// filter returns all tasks.
func (s *Store) Query(sessionID, statusFilter string) ([]Item, error) {
	if statusFilter != "" && !ValidStatus(statusFilter) {
		return nil, fmt.Errorf("invalid status %q", statusFilter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	if statusFilter == "" {
		return items, nil
	}

	filtered := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Status == statusFilter {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}
