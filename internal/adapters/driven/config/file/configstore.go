package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/scribe/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore reads scribe's TOML configuration file. The file is
// hand-edited by the user and never written by scribe. Nested TOML
// tables are flattened to dot-notation keys, so
//
//	[gmail]
//	token = "..."
//
// is read as GetString("gmail.token").
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	values   map[string]any
}

// NewConfigStore loads config.toml from configDir, defaulting to
// ~/.scribe. A missing file yields an empty store, not an error, so
// first runs work before the user writes any configuration.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".scribe")
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	s := &ConfigStore{filePath: filepath.Join(configDir, "config.toml")}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the config file, picking up edits made since the
// last load. A file that has gone missing resets the store to empty.
func (s *ConfigStore) Reload() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read config: %w", err)
	}

	var parsed map[string]any
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("parse %s: %w", s.filePath, err)
		}
	}

	s.mu.Lock()
	s.values = flatten(parsed, "")
	s.mu.Unlock()
	return nil
}

// Get returns the raw value for a dot-notation key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the string at key, or "" when absent or mistyped.
func (s *ConfigStore) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// GetInt returns the integer at key. TOML integers decode as int64.
func (s *ConfigStore) GetInt(key string) int {
	v, _ := s.Get(key)
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// GetBool returns the boolean at key, or false when absent or
// mistyped.
func (s *ConfigStore) GetBool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// GetStringSlice returns the string elements of the array at key.
// TOML arrays decode as []any; non-string elements are dropped.
func (s *ConfigStore) GetStringSlice(key string) []string {
	v, _ := s.Get(key)
	switch arr := v.(type) {
	case []string:
		return arr
	case []any:
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// Path returns the config file location.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// flatten turns nested TOML tables into dot-notation keys, so
// {"jira": {"email": x}} becomes {"jira.email": x}.
func flatten(m map[string]any, prefix string) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		if prefix != "" {
			key = prefix + "." + key
		}
		if table, ok := value.(map[string]any); ok {
			for k, v := range flatten(table, key) {
				out[k] = v
			}
			continue
		}
		out[key] = value
	}
	return out
}
