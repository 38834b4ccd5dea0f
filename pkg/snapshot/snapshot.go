// Package snapshot defines persistence for serialized locator state so large
// texts survive process restarts without re-indexing. Implementations live in
// the file, postgres, and mock subpackages.
package snapshot

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by [Store.Load] when no snapshot exists for the
// requested book.
var ErrNotFound = errors.New("snapshot: not found")

// Record is one persisted book index.
type Record struct {
	// BookID uniquely identifies the book within the store.
	BookID string `json:"book_id"`

	// Title is the human-readable book title, may be empty.
	Title string `json:"title"`

	// ContentHash is the xxhash of the raw book text, used to detect that a
	// source file changed and the index is stale.
	ContentHash uint64 `json:"content_hash"`

	// State is the locate.Serialize blob.
	State string `json:"state"`

	// UpdatedAt is when the snapshot was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists book snapshots. All implementations are safe for concurrent
// use.
type Store interface {
	// Save writes rec, replacing any existing snapshot with the same BookID.
	Save(ctx context.Context, rec Record) error

	// Load returns the snapshot for bookID, or [ErrNotFound].
	Load(ctx context.Context, bookID string) (Record, error)

	// List returns all stored snapshots in unspecified order.
	List(ctx context.Context) ([]Record, error)

	// Delete removes the snapshot for bookID. Deleting a missing snapshot is
	// not an error.
	Delete(ctx context.Context, bookID string) error
}

// Discard is a Store that persists nothing: saves and deletes succeed without
// effect, loads report [ErrNotFound], lists are empty. It stands in when
// persistence is disabled so callers never need a nil check.
type Discard struct{}

var _ Store = Discard{}

func (Discard) Save(context.Context, Record) error { return nil }

func (Discard) Load(context.Context, string) (Record, error) {
	return Record{}, ErrNotFound
}

func (Discard) List(context.Context) ([]Record, error) { return nil, nil }

func (Discard) Delete(context.Context, string) error { return nil }
