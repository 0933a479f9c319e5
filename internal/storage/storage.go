// Package storage provides durable file-based JSON storage for sessions and
// application state. Every value lives in its own file under the base
// directory; writes go through a temp file plus rename so readers never see a
// torn document.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when the requested key has no stored value.
var ErrNotFound = errors.New("not found")

// Store maps key paths (e.g. ["sessions", id]) to JSON documents on disk.
// Writers to the same key are serialized with a per-file flock so a second
// process pointed at the same directory cannot interleave writes.
type Store struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*FileLock
}

// New creates a store rooted at baseDir. The directory is created lazily on
// first write.
func New(baseDir string) *Store {
	return &Store{
		baseDir: baseDir,
		locks:   make(map[string]*FileLock),
	}
}

// BaseDir returns the root directory of the store.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) filePath(key []string) string {
	parts := append([]string{s.baseDir}, key...)
	return filepath.Join(parts...) + ".json"
}

func (s *Store) dirPath(key []string) string {
	parts := append([]string{s.baseDir}, key...)
	return filepath.Join(parts...)
}

// Get reads the value stored at key into v. Returns ErrNotFound when the key
// has never been written or was deleted.
func (s *Store) Get(ctx context.Context, key []string, v any) error {
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s: %w", strings.Join(key, "/"), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", strings.Join(key, "/"), err)
	}
	return nil
}

// Put writes v at key, replacing any previous value. The write is atomic:
// the document is marshaled to a temp file and renamed into place while the
// key's flock is held.
func (s *Store) Put(ctx context.Context, key []string, v any) error {
	path := s.filePath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", strings.Join(key, "/"), err)
	}

	lock := s.lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", strings.Join(key, "/"), err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", strings.Join(key, "/"), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", strings.Join(key, "/"), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", strings.Join(key, "/"), err)
	}
	return nil
}

// Delete removes the value at key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key []string) error {
	path := s.filePath(key)

	lock := s.lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", strings.Join(key, "/"), err)
	}
	defer lock.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", strings.Join(key, "/"), err)
	}
	return nil
}

// Exists reports whether key currently has a stored value.
func (s *Store) Exists(ctx context.Context, key []string) bool {
	_, err := os.Stat(s.filePath(key))
	return err == nil
}

// List returns the child keys under a prefix, sorted. Both subdirectories
// and stored documents count as children.
func (s *Store) List(ctx context.Context, prefix []string) ([]string, error) {
	entries, err := os.ReadDir(s.dirPath(prefix))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", strings.Join(prefix, "/"), err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case entry.IsDir():
			keys = append(keys, name)
		case strings.HasSuffix(name, ".json"):
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Scan calls fn with the raw document of every key under a prefix. Files
// that cannot be read are skipped; an error from fn stops the scan.
func (s *Store) Scan(ctx context.Context, prefix []string, fn func(key string, data json.RawMessage) error) error {
	dir := s.dirPath(prefix)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("scan %s: %w", strings.Join(prefix, "/"), err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".json")
		if err := fn(key, json.RawMessage(data)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) lockFor(path string) *FileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[path]
	if !ok {
		lock = NewFileLock(path)
		s.locks[path] = lock
	}
	return lock
}
