package memory

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is the persistence backend for conversation logs.
type Store interface {
	// Save persists the serialized history.
	Save(data []byte) error

	// Load retrieves the stored history, or (nil, nil) when nothing
	// has been saved yet.
	Load() ([]byte, error)

	// Close releases any resources held by the store.
	Close() error
}

// JSONStore persists the history to a single JSON file. An empty path
// disables persistence, which keeps the history purely in memory.
type JSONStore struct {
	FilePath string
}

// NewJSONStore creates a file-backed store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{FilePath: path}
}

// Save writes the history file, creating parent directories as needed.
func (s *JSONStore) Save(data []byte) error {
	if s.FilePath == "" {
		return nil
	}

	dir := filepath.Dir(s.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}

	if err := os.WriteFile(s.FilePath, data, 0644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}

// Load reads the history file. A missing file is not an error.
func (s *JSONStore) Load() ([]byte, error) {
	if s.FilePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return data, nil
}

// Close is a no-op for file stores.
func (s *JSONStore) Close() error {
	return nil
}

// Ensure JSONStore implements Store.
var _ Store = (*JSONStore)(nil)
