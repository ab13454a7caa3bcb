// Package kvstore persists the small amount of state that survives between
// runs (last policy, risk cache, last address snapshot) in a Pebble database.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Well-known keys
const (
	KeyLastPolicy   = "last_policy"
	KeyRiskCache    = "risk_cache"
	KeyLastSnapshot = "last_snapshot"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("kvstore: closed")

// Store is a string key/value store backed by Pebble.
// Writes are synced so a value is durable once Set returns.
type Store struct {
	mu     sync.RWMutex
	db     *pebble.DB
	path   string
	memory bool
}

// Open opens (or creates) the database at path. An empty path keeps the
// state in memory for the lifetime of the process.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return OpenInMemory()
	}

	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("kvstore pebble open: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// OpenInMemory opens a store on an in-memory filesystem
func OpenInMemory() (*Store, error) {
	db, err := pebble.Open("netlens", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("kvstore pebble open (memory): %w", err)
	}
	return &Store{db: db, path: ":memory:", memory: true}, nil
}

// Get returns the value for key. A missing key is not an error.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return "", false, ErrClosed
	}

	value, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvstore get %s: %w", key, err)
	}
	defer closer.Close()

	// value is only valid until closer.Close
	return string(value), true, nil
}

// Set stores value under key
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}

	if err := s.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("kvstore set %s: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}

	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("kvstore delete %s: %w", key, err)
	}
	return nil
}

// Stats describes the store for health reporting
type Stats struct {
	Path      string `json:"path"`
	InMemory  bool   `json:"in_memory"`
	DiskBytes uint64 `json:"disk_bytes"`
}

// Stats returns the current store statistics
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Path: s.path, InMemory: s.memory}
	if s.db != nil {
		stats.DiskBytes = s.db.Metrics().DiskSpaceUsage()
	}
	return stats
}

// Close releases Pebble resources
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
