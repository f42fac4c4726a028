// Package settings persists application settings as a JSON document on disk.
// Values are addressed by dotted keys (e.g. "transmission_policy.max_files_to_send")
// so callers can read and write nested fields without a schema round-trip.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const settingsFile = "settings.json"

// defaultDocument seeds a fresh settings file.
const defaultDocument = `{
  "openai_api_key": "",
  "codex_path": "",
  "model": "",
  "transmission_policy": {
    "send_file_content": false,
    "max_files_to_send": 10,
    "max_file_size": 102400,
    "send_diff_summary": true,
    "send_error_messages": true
  }
}`

// TransmissionPolicy controls what local data may be sent to the planning
// provider.
type TransmissionPolicy struct {
	SendFileContent   bool `json:"send_file_content"`
	MaxFilesToSend    int  `json:"max_files_to_send"`
	MaxFileSize       int  `json:"max_file_size"`
	SendDiffSummary   bool `json:"send_diff_summary"`
	SendErrorMessages bool `json:"send_error_messages"`
}

// Store is an on-disk settings document. Safe for concurrent use.
type Store struct {
	path string

	mu  sync.Mutex
	doc []byte
}

// DefaultDir returns the per-user settings directory (~/.codexpilot).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".codexpilot"), nil
}

// Open loads the settings document from dir, creating the directory and a
// default document when missing.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create settings directory: %w", err)
	}

	s := &Store{path: filepath.Join(dir, settingsFile)}

	data, err := os.ReadFile(s.path)
	switch {
	case os.IsNotExist(err):
		s.doc = []byte(defaultDocument)
		if err := s.save(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read settings file %s: %w", s.path, err)
	case !gjson.ValidBytes(data):
		return nil, fmt.Errorf("settings file %s is not valid JSON", s.path)
	default:
		s.doc = data
	}

	return s, nil
}

// Get returns the value at a dotted key.
func (s *Store) Get(key string) gjson.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gjson.GetBytes(s.doc, key)
}

// GetString returns the string at a dotted key, or fallback when unset.
func (s *Store) GetString(key, fallback string) string {
	if v := s.Get(key); v.Exists() && v.String() != "" {
		return v.String()
	}
	return fallback
}

// Set writes a value at a dotted key and persists the document.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := sjson.SetBytes(s.doc, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	s.doc = doc

	return s.save()
}

// APIKey returns the stored OpenAI API key, empty when unset.
func (s *Store) APIKey() string {
	return s.Get("openai_api_key").String()
}

// SetAPIKey stores the OpenAI API key.
func (s *Store) SetAPIKey(key string) error {
	return s.Set("openai_api_key", key)
}

// CodexPath returns the configured codex binary path, empty for auto-detect.
func (s *Store) CodexPath() string {
	return s.Get("codex_path").String()
}

// Model returns the configured planning model, empty for the default.
func (s *Store) Model() string {
	return s.Get("model").String()
}

// TransmissionPolicy returns the stored policy, falling back to defaults for
// missing fields.
func (s *Store) TransmissionPolicy() TransmissionPolicy {
	policy := TransmissionPolicy{
		MaxFilesToSend:    10,
		MaxFileSize:       102400,
		SendDiffSummary:   true,
		SendErrorMessages: true,
	}

	if raw := s.Get("transmission_policy"); raw.IsObject() {
		// Ignore malformed stored policies; defaults stand.
		_ = json.Unmarshal([]byte(raw.Raw), &policy)
	}
	return policy
}

// SetTransmissionPolicy stores the policy.
func (s *Store) SetTransmissionPolicy(policy TransmissionPolicy) error {
	return s.Set("transmission_policy", policy)
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// save writes the document with owner-only permissions. Caller holds s.mu.
func (s *Store) save() error {
	if err := os.WriteFile(s.path, s.doc, 0600); err != nil {
		return fmt.Errorf("write settings file %s: %w", s.path, err)
	}
	return nil
}
