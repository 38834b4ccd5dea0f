// Package postgres provides a snapshot store backed by a PostgreSQL
// book_snapshots table, for deployments where several lectern instances share
// one index store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lecternhq/lectern/pkg/snapshot"
)

// Compile-time interface check.
var _ snapshot.Store = (*Store)(nil)

// Store is a PostgreSQL-backed [snapshot.Store]. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn, verifies the connection, and runs
// [Migrate] to ensure the book_snapshots table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("snapshot postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("snapshot postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the book_snapshots table if it does not exist.
// content_hash is stored as decimal text because uint64 exceeds BIGINT's
// positive range.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
		CREATE TABLE IF NOT EXISTS book_snapshots (
		    book_id      TEXT PRIMARY KEY,
		    title        TEXT NOT NULL DEFAULT '',
		    content_hash TEXT NOT NULL DEFAULT '0',
		    state        TEXT NOT NULL,
		    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("create book_snapshots: %w", err)
	}
	return nil
}

// Save implements [snapshot.Store] with an upsert keyed on book_id.
func (s *Store) Save(ctx context.Context, rec snapshot.Record) error {
	const q = `
		INSERT INTO book_snapshots (book_id, title, content_hash, state, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (book_id) DO UPDATE
		SET title = EXCLUDED.title,
		    content_hash = EXCLUDED.content_hash,
		    state = EXCLUDED.state,
		    updated_at = now()`

	hash := strconv.FormatUint(rec.ContentHash, 10)
	if _, err := s.pool.Exec(ctx, q, rec.BookID, rec.Title, hash, rec.State); err != nil {
		return fmt.Errorf("snapshot postgres store: save %q: %w", rec.BookID, err)
	}
	return nil
}

// Load implements [snapshot.Store].
func (s *Store) Load(ctx context.Context, bookID string) (snapshot.Record, error) {
	const q = `
		SELECT book_id, title, content_hash, state, updated_at
		FROM   book_snapshots
		WHERE  book_id = $1`

	rows, err := s.pool.Query(ctx, q, bookID)
	if err != nil {
		return snapshot.Record{}, fmt.Errorf("snapshot postgres store: load %q: %w", bookID, err)
	}
	rec, err := pgx.CollectOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return snapshot.Record{}, snapshot.ErrNotFound
	}
	if err != nil {
		return snapshot.Record{}, fmt.Errorf("snapshot postgres store: load %q: %w", bookID, err)
	}
	return rec, nil
}

// List implements [snapshot.Store].
func (s *Store) List(ctx context.Context) ([]snapshot.Record, error) {
	const q = `
		SELECT book_id, title, content_hash, state, updated_at
		FROM   book_snapshots
		ORDER  BY book_id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("snapshot postgres store: list: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("snapshot postgres store: list: %w", err)
	}
	return recs, nil
}

// Delete implements [snapshot.Store].
func (s *Store) Delete(ctx context.Context, bookID string) error {
	const q = `DELETE FROM book_snapshots WHERE book_id = $1`
	if _, err := s.pool.Exec(ctx, q, bookID); err != nil {
		return fmt.Errorf("snapshot postgres store: delete %q: %w", bookID, err)
	}
	return nil
}

// Ping reports whether the database is reachable. Used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// scanRecord scans one book_snapshots row into a Record.
func scanRecord(row pgx.CollectableRow) (snapshot.Record, error) {
	var (
		rec  snapshot.Record
		hash string
	)
	if err := row.Scan(&rec.BookID, &rec.Title, &hash, &rec.State, &rec.UpdatedAt); err != nil {
		return snapshot.Record{}, err
	}
	parsed, err := strconv.ParseUint(hash, 10, 64)
	if err != nil {
		return snapshot.Record{}, fmt.Errorf("parse content_hash %q: %w", hash, err)
	}
	rec.ContentHash = parsed
	return rec, nil
}
