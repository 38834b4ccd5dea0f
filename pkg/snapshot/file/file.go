// Package file provides a snapshot store backed by one JSON file per book in
// a local directory. Suitable for single-node deployments.
package file

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lecternhq/lectern/pkg/snapshot"
)

// Compile-time interface check.
var _ snapshot.Store = (*Store)(nil)

// Store persists snapshots as <dir>/<book-id>.json. Writes go through a
// temp-file rename so a crash mid-write never leaves a torn snapshot.
// Safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	dir string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot file store: create dir %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save implements [snapshot.Store].
func (s *Store) Save(_ context.Context, rec snapshot.Record) error {
	if rec.BookID == "" {
		return errors.New("snapshot file store: book id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("snapshot file store: marshal %q: %w", rec.BookID, err)
	}

	path := s.path(rec.BookID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot file store: write %q: %w", rec.BookID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot file store: rename %q: %w", rec.BookID, err)
	}
	return nil
}

// Load implements [snapshot.Store].
func (s *Store) Load(_ context.Context, bookID string) (snapshot.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(bookID))
	if errors.Is(err, fs.ErrNotExist) {
		return snapshot.Record{}, snapshot.ErrNotFound
	}
	if err != nil {
		return snapshot.Record{}, fmt.Errorf("snapshot file store: read %q: %w", bookID, err)
	}

	var rec snapshot.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return snapshot.Record{}, fmt.Errorf("snapshot file store: parse %q: %w", bookID, err)
	}
	return rec, nil
}

// List implements [snapshot.Store].
func (s *Store) List(_ context.Context) ([]snapshot.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot file store: read dir: %w", err)
	}

	var recs []snapshot.Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("snapshot file store: read %q: %w", e.Name(), err)
		}
		var rec snapshot.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			// A torn or foreign file should not make every other snapshot
			// unreachable.
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Delete implements [snapshot.Store].
func (s *Store) Delete(_ context.Context, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(bookID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("snapshot file store: delete %q: %w", bookID, err)
	}
	return nil
}

// path returns the snapshot file path for bookID. IDs that are not safe as
// filenames are hex-encoded behind a "%" prefix; isSafeName rejects "%", so
// an escaped name can never collide with a literal safe id.
func (s *Store) path(bookID string) string {
	name := bookID
	if !isSafeName(bookID) {
		name = "%" + hex.EncodeToString([]byte(bookID))
	}
	return filepath.Join(s.dir, name+".json")
}

func isSafeName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return !strings.HasPrefix(name, ".")
}
