// Package memory provides the in-memory document store used by tests and
// ephemeral sessions.
package memory

import (
	"context"
	"sort"
	"sync"

	"diagramcore/internal/persistence"
	"diagramcore/pkg/model"
)

// Compile-time contract assertion.
var _ persistence.DocumentStore = (*Store)(nil)

// Store keeps snapshots in a map guarded by a mutex. Snapshots are cloned
// on the way in and out.
type Store struct {
	mu   sync.RWMutex
	docs map[string]model.Snapshot
}

// NewStore returns an empty in-memory document store.
func NewStore() *Store {
	return &Store{docs: make(map[string]model.Snapshot)}
}

// Save stores a deep copy of the snapshot under id, replacing any previous
// version.
func (s *Store) Save(_ context.Context, id string, snapshot model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = snapshot.Clone()
	return nil
}

// Load returns a deep copy of the snapshot stored under id.
func (s *Store) Load(_ context.Context, id string) (model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.docs[id]
	if !ok {
		return model.Snapshot{}, persistence.NotFoundError{ID: id}
	}
	return snapshot.Clone(), nil
}

// List returns the stored document ids in lexical order.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the snapshot stored under id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return persistence.NotFoundError{ID: id}
	}
	delete(s.docs, id)
	return nil
}

// Close releases nothing; it exists to satisfy the store contract.
func (s *Store) Close() error {
	return nil
}
