// Package history keeps an append-only record of finished tasks, capped at
// the most recent entries.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	historyFile = "history.json"
	// MaxEntries bounds the on-disk history; older entries are discarded.
	MaxEntries = 100
)

// Entry is one finished task.
type Entry struct {
	TaskID      string    `json:"task_id"`
	TaskTitle   string    `json:"task_title"`
	UserRequest string    `json:"user_request"`
	FolderPath  string    `json:"folder_path"`
	Success     bool      `json:"success"`
	Summary     string    `json:"summary,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Store persists entries as a JSON array.
type Store struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// Open prepares a history store under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &Store{
		path: filepath.Join(dir, historyFile),
		now:  time.Now,
	}, nil
}

// Add appends an entry, stamping it at write time and trimming the file to
// the most recent MaxEntries.
func (s *Store) Add(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	entry.Timestamp = s.now()
	entries = append(entries, entry)
	if len(entries) > MaxEntries {
		entries = entries[len(entries)-MaxEntries:]
	}

	return s.save(entries)
}

// Recent returns up to limit entries, newest last.
func (s *Store) Recent(limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// Clear removes the history file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *Store) load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history file %s: %w", s.path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse history file %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *Store) save(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write history file %s: %w", s.path, err)
	}
	return nil
}
