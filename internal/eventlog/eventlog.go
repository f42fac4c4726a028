// Package eventlog writes a run's process events to an NDJSON audit file,
// one JSON object per line.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codexpilot/codexpilot/internal/protocol"
)

// EventLog appends events to a single run's log file.
type EventLog struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// New opens (creating directories as needed) the log file for appending.
func New(logPath string) (*EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	return &EventLog{file: file, enc: json.NewEncoder(file)}, nil
}

// Write appends one event as a JSON line.
func (l *EventLog) Write(ev protocol.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.enc.Encode(ev); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
