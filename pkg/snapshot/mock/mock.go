// Package mock provides an in-memory snapshot store for tests.
package mock

import (
	"context"
	"sync"

	"github.com/lecternhq/lectern/pkg/snapshot"
)

// Compile-time interface check.
var _ snapshot.Store = (*Store)(nil)

// Store is an in-memory [snapshot.Store]. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	recs map[string]snapshot.Record

	// SaveErr, LoadErr, ListErr, and DeleteErr, when non-nil, are returned by
	// the corresponding method to simulate storage failures.
	SaveErr   error
	LoadErr   error
	ListErr   error
	DeleteErr error
}

// New creates an empty Store.
func New() *Store {
	return &Store{recs: make(map[string]snapshot.Record)}
}

// Save implements [snapshot.Store].
func (s *Store) Save(_ context.Context, rec snapshot.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.recs[rec.BookID] = rec
	return nil
}

// Load implements [snapshot.Store].
func (s *Store) Load(_ context.Context, bookID string) (snapshot.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return snapshot.Record{}, s.LoadErr
	}
	rec, ok := s.recs[bookID]
	if !ok {
		return snapshot.Record{}, snapshot.ErrNotFound
	}
	return rec, nil
}

// List implements [snapshot.Store].
func (s *Store) List(_ context.Context) ([]snapshot.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	recs := make([]snapshot.Record, 0, len(s.recs))
	for _, rec := range s.recs {
		recs = append(recs, rec)
	}
	return recs, nil
}

// Delete implements [snapshot.Store].
func (s *Store) Delete(_ context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.recs, bookID)
	return nil
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}
