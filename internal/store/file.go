package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/lawrelay/lawyer-bot/internal/models"
)

// FileStore mirrors the pending submissions in memory and keeps them in a
// single JSON file. Every mutation rewrites the whole file through a temp
// file and rename, so a crash leaves either the old or the new mapping on
// disk. The file is removed when the mapping becomes empty.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	items  map[string]models.Submission
	closed bool
}

// OpenFile loads the mapping from path. A missing file is an empty store.
func OpenFile(ctx context.Context, path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is empty")
	}
	s := &FileStore{path: path}
	items, err := s.read()
	if err != nil {
		return nil, err
	}
	s.items = items
	return s, nil
}

func (s *FileStore) Put(ctx context.Context, sub models.Submission) error {
	if err := validate(sub); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	next := maps.Clone(s.items)
	next[sub.ForwardID] = sub
	if err := s.write(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

func (s *FileStore) Get(ctx context.Context, forwardID string) (models.Submission, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return models.Submission{}, false, ErrClosed
	}
	sub, ok := s.items[forwardID]
	return sub, ok, nil
}

func (s *FileStore) Delete(ctx context.Context, forwardID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.items[forwardID]; !ok {
		return nil
	}

	next := maps.Clone(s.items)
	delete(next, forwardID)
	if err := s.write(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// LoadAll re-reads the backing file and replaces the in-memory mirror.
func (s *FileStore) LoadAll(ctx context.Context) (map[string]models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	items, err := s.read()
	if err != nil {
		return nil, err
	}
	s.items = items
	return maps.Clone(items), nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) read() (map[string]models.Submission, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]models.Submission), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	items := make(map[string]models.Submission)
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.path, err)
	}
	// Older files carry the key only as the map key.
	for id, sub := range items {
		if sub.ForwardID == "" {
			sub.ForwardID = id
			items[id] = sub
		}
	}
	return items, nil
}

func (s *FileStore) write(items map[string]models.Submission) error {
	if len(items) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", s.path, err)
		}
		return nil
	}

	data, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode submissions: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
