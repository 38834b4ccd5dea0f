package postgres_test

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lecternhq/lectern/pkg/snapshot"
	"github.com/lecternhq/lectern/pkg/snapshot/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if LECTERN_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("LECTERN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LECTERN_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean book_snapshots
// table and closes it when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	if _, err := cleanPool.Exec(ctx, `DROP TABLE IF EXISTS book_snapshots`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	store, err := postgres.New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := snapshot.Record{
		BookID:      "moby-dick",
		Title:       "Moby-Dick",
		ContentHash: math.MaxUint64, // exercise the full uint64 range
		State:       `{"words":["call","me","ishmael"]}`,
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "moby-dick")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.BookID != want.BookID || got.Title != want.Title ||
		got.ContentHash != want.ContentHash || got.State != want.State {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set by the store")
	}
}

func TestSave_Upserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := snapshot.Record{BookID: "book", State: "v1"}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec.State = "v2"
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save replacement: %v", err)
	}

	got, err := s.Load(ctx, "book")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State != "v2" {
		t.Errorf("State = %q, want v2", got.State)
	}

	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("List returned %d records, want 1", len(recs))
	}
}

func TestLoad_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load(context.Background(), "missing")
	if !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, snapshot.Record{BookID: "book", State: "{}"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(ctx, "book"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, "book"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("Load after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "book"); err != nil {
		t.Errorf("Delete of missing snapshot = %v, want nil", err)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
