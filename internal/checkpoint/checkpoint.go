// Package checkpoint records which items a run has fully processed.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/phuslu/log"
)

// Store is the set of completed item identifiers.
// Commit must be durable when it returns.
type Store interface {
	Load() error
	Completed(id string) bool
	Commit(id string) error
	IDs() []string
}

// NopStore never remembers anything; every run processes every item
type NopStore struct{}

func (NopStore) Load() error           { return nil }
func (NopStore) Completed(string) bool { return false }
func (NopStore) Commit(string) error   { return nil }
func (NopStore) IDs() []string         { return nil }

// FileStore keeps the identifiers as an ordered JSON list in one file.
// Every commit rewrites the file through a synced temp file and a rename.
type FileStore struct {
	path string

	mu   sync.Mutex
	ids  []string
	seen map[string]bool
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		seen: make(map[string]bool),
	}
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty set; an unreadable one is an empty set with a warning.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = nil
	s.seen = make(map[string]bool)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("checkpoint unreadable, starting from an empty set")
		return nil
	}

	for _, id := range ids {
		if !s.seen[id] {
			s.seen[id] = true
			s.ids = append(s.ids, id)
		}
	}
	return nil
}

func (s *FileStore) Completed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[id]
}

// Commit adds id and persists the whole set before returning
func (s *FileStore) Commit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[id] {
		return nil
	}

	ids := append(append([]string(nil), s.ids...), id)
	if err := s.write(ids); err != nil {
		return err
	}

	s.ids = ids
	s.seen[id] = true
	return nil
}

// IDs returns the committed identifiers in commit order
func (s *FileStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func (s *FileStore) write(ids []string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ids); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".progress-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
