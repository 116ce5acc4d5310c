package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps analytics counts in a JSON document on disk. Updates are
// serialised within one process only, so a document must not be shared by
// several processes.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored counts, or an empty map if the file does not exist yet.
func (s *FileStore) Load(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Add(_ context.Context, counts map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.read()
	if err != nil {
		return err
	}
	addCounts(stored, counts)
	return s.write(stored)
}

// Take returns the stored counts and empties the document.
func (s *FileStore) Take(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.read()
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return stored, nil
	}
	if err := s.write(map[string]int{}); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *FileStore) read() (map[string]int, error) {
	counts := make(map[string]int)
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return counts, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return counts, nil
	}
	if err := json.Unmarshal(b, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// write replaces the document atomically.
func (s *FileStore) write(counts map[string]int) error {
	b, err := json.Marshal(counts)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	// Removing after a successful rename fails harmlessly.
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
