// internal/store/local.go
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes each blob to a JSON file under a data directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the data directory if it doesn't exist
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}

func (s *LocalStore) Save(ctx context.Context, key string, data []byte) error {
	// Write to a temp file first so a crash mid-write never leaves a
	// truncated blob behind
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("failed to commit blob %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
