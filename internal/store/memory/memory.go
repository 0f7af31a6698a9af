package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"heristone/internal/store"
)

type entry struct {
	body    []byte
	version int64
}

// Store is a mutex-guarded map of blobs. When created with NewFromDir every
// write is mirrored to <dir>/<key>.json so the data survives restarts.
type Store struct {
	mu    sync.Mutex
	dir   string
	items map[string]entry
}

func New() *Store {
	return &Store{items: map[string]entry{}}
}

// NewFromDir loads every *.json file of dir as a blob. A missing directory
// is created on first write.
func NewFromDir(dir string) (*Store, error) {
	s := &Store{dir: dir, items: map[string]entry{}}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	for _, path := range files {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		key := strings.TrimSuffix(filepath.Base(path), ".json")
		s.items[key] = entry{body: body, version: 1}
	}
	return s, nil
}

// Get returns a copy of the stored blob.
func (s *Store) Get(_ context.Context, key string) ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, 0, fmt.Errorf("key %q: %w", key, store.ErrNotFound)
	}
	return append([]byte(nil), e.body...), e.version, nil
}

// Put stores a copy of body and returns the new version.
func (s *Store) Put(_ context.Context, key string, body []byte) (int64, error) {
	if err := validKey(key); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := writeFile(s.path(key), body); err != nil {
			return 0, err
		}
	}
	e := s.items[key]
	e.body = append([]byte(nil), body...)
	e.version++
	s.items[key] = e
	return e.version, nil
}

// Delete removes the key. Deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	delete(s.items, key)
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// writeFile replaces path atomically via a temp file in the same directory.
func writeFile(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
