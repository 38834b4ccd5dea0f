// Package library is the book registry: it owns every indexed book, its
// locator, and the persistence of serialized index state through a snapshot
// store.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lecternhq/lectern/internal/observe"
	"github.com/lecternhq/lectern/pkg/locate"
	"github.com/lecternhq/lectern/pkg/similarity/phonetic"
	"github.com/lecternhq/lectern/pkg/snapshot"
)

// ErrUnknownBook is returned when an operation names a book id that is not
// registered.
var ErrUnknownBook = errors.New("library: unknown book")

// Book is one indexed book: its metadata plus the locator holding the index.
// The mutex implements the reader/writer discipline the locator requires:
// rebuilds swap the locator wholesale under the write lock, queries run under
// read locks and may execute in parallel.
type book struct {
	mu      sync.RWMutex
	info    BookInfo
	locator *locate.Locator
}

// BookInfo is the externally visible metadata of an indexed book.
type BookInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	ContentHash uint64    `json:"content_hash"`
	WordCount   int       `json:"word_count"`
	WindowCount int       `json:"window_count"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// LocatorOptions configure the locator built for each added book.
type LocatorOptions struct {
	WindowSize int
	StepSize   int
	TopK       int
}

// AddRequest describes a book to index. When ID is empty, the hex-rendered
// content hash of Text becomes the id.
type AddRequest struct {
	ID    string
	Title string
	Text  string
}

// Library holds all indexed books. Safe for concurrent use.
type Library struct {
	store   snapshot.Store
	opts    LocatorOptions
	titles  *phonetic.Matcher
	metrics *observe.Metrics

	mu    sync.RWMutex
	books map[string]*book
}

// New creates an empty Library persisting through store. A nil store is
// replaced by [snapshot.Discard]; a nil metrics falls back to
// [observe.DefaultMetrics].
func New(store snapshot.Store, opts LocatorOptions, metrics *observe.Metrics) *Library {
	if store == nil {
		store = snapshot.Discard{}
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Library{
		store:   store,
		opts:    opts,
		titles:  phonetic.New(),
		metrics: metrics,
		books:   make(map[string]*book),
	}
}

// locatorOpts translates the configured options into locate options, leaving
// zero values to the package defaults.
func (l *Library) locatorOpts() []locate.Option {
	var opts []locate.Option
	if l.opts.WindowSize > 0 {
		opts = append(opts, locate.WithWindowSize(l.opts.WindowSize))
	}
	if l.opts.StepSize > 0 {
		opts = append(opts, locate.WithStepSize(l.opts.StepSize))
	}
	if l.opts.TopK > 0 {
		opts = append(opts, locate.WithTopK(l.opts.TopK))
	}
	return opts
}

// Add indexes req.Text, persists the serialized index, and registers the
// book, replacing any existing book with the same id.
func (l *Library) Add(ctx context.Context, req AddRequest) (BookInfo, error) {
	hash := xxhash.Sum64String(req.Text)
	id := req.ID
	if id == "" {
		id = fmt.Sprintf("%016x", hash)
	}

	loc := locate.New(l.locatorOpts()...)
	start := time.Now()
	loc.Preprocess(req.Text)
	slog.Info("book indexed",
		"book_id", id,
		"words", loc.WordCount(),
		"windows", loc.WindowCount(),
		"took", time.Since(start),
	)

	info := BookInfo{
		ID:          id,
		Title:       req.Title,
		ContentHash: hash,
		WordCount:   loc.WordCount(),
		WindowCount: loc.WindowCount(),
		IndexedAt:   time.Now().UTC(),
	}

	rec := snapshot.Record{
		BookID:      id,
		Title:       req.Title,
		ContentHash: hash,
		State:       loc.Serialize(),
		UpdatedAt:   info.IndexedAt,
	}
	if err := l.store.Save(ctx, rec); err != nil {
		l.metrics.RecordSnapshotError(ctx, "save")
		return BookInfo{}, fmt.Errorf("library: persist book %q: %w", id, err)
	}

	l.mu.Lock()
	l.books[id] = &book{info: info, locator: loc}
	l.mu.Unlock()

	return info, nil
}

// AddFromFile reads path and indexes its contents via [Library.Add].
func (l *Library) AddFromFile(ctx context.Context, id, title, path string) (BookInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BookInfo{}, fmt.Errorf("library: read book file %q: %w", path, err)
	}
	return l.Add(ctx, AddRequest{ID: id, Title: title, Text: string(data)})
}

// Locate runs a single snippet query against the named book. The returned
// bool reports whether a match was found; err is non-nil only for unknown
// books.
func (l *Library) Locate(_ context.Context, bookID, snippet string) (locate.QueryResult, bool, error) {
	b, err := l.get(bookID)
	if err != nil {
		return locate.QueryResult{}, false, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	res, ok := b.locator.Query(snippet)
	return res, ok, nil
}

// LocateBest queries every STT alternate concurrently and returns the
// highest-confidence match. Ties keep the lowest alternate index so results
// are deterministic. An empty alternate list reports no match.
func (l *Library) LocateBest(ctx context.Context, bookID string, alternates []string) (locate.QueryResult, bool, error) {
	b, err := l.get(bookID)
	if err != nil {
		return locate.QueryResult{}, false, err
	}
	if len(alternates) == 0 {
		return locate.QueryResult{}, false, nil
	}

	results := make([]*locate.QueryResult, len(alternates))

	b.mu.RLock()
	g, _ := errgroup.WithContext(ctx)
	for i, alt := range alternates {
		g.Go(func() error {
			if res, ok := b.locator.Query(alt); ok {
				results[i] = &res
			}
			return nil
		})
	}
	_ = g.Wait() // queries never fail; the group only fans out
	b.mu.RUnlock()

	var best *locate.QueryResult
	for _, res := range results {
		if res == nil {
			continue
		}
		if best == nil || res.Confidence > best.Confidence {
			best = res
		}
	}
	if best == nil {
		return locate.QueryResult{}, false, nil
	}
	return *best, true, nil
}

// Get returns the metadata for bookID.
func (l *Library) Get(bookID string) (BookInfo, error) {
	b, err := l.get(bookID)
	if err != nil {
		return BookInfo{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info, nil
}

// List returns metadata for every registered book, ordered by id.
func (l *Library) List() []BookInfo {
	l.mu.RLock()
	infos := make([]BookInfo, 0, len(l.books))
	for _, b := range l.books {
		b.mu.RLock()
		infos = append(infos, b.info)
		b.mu.RUnlock()
	}
	l.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// FindByTitle resolves a spoken book title to a registered book using
// phonetic matching, so a reader can pick a book by voice. Books without a
// title are matched by their id. Duplicate display names resolve to the
// lowest id.
func (l *Library) FindByTitle(spoken string) (BookInfo, float64, bool) {
	infos := l.List()
	names := make([]string, len(infos))
	byName := make(map[string]BookInfo, len(infos))
	for i, info := range infos {
		name := info.Title
		if name == "" {
			name = info.ID
		}
		names[i] = name
		if _, ok := byName[name]; !ok {
			byName[name] = info
		}
	}

	name, score, ok := l.titles.Match(spoken, names)
	if !ok {
		return BookInfo{}, 0, false
	}
	return byName[name], score, true
}

// Remove unregisters bookID and deletes its snapshot.
func (l *Library) Remove(ctx context.Context, bookID string) error {
	l.mu.Lock()
	_, ok := l.books[bookID]
	delete(l.books, bookID)
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBook, bookID)
	}
	if err := l.store.Delete(ctx, bookID); err != nil {
		l.metrics.RecordSnapshotError(ctx, "delete")
		return fmt.Errorf("library: delete snapshot %q: %w", bookID, err)
	}
	return nil
}

// Restore loads every snapshot from the store and rebuilds the registry.
// Corrupt snapshots (those restoring to zero windows despite a non-empty
// state) are logged and skipped; restore never fails because of one bad
// record.
func (l *Library) Restore(ctx context.Context) error {
	recs, err := l.store.List(ctx)
	if err != nil {
		l.metrics.RecordSnapshotError(ctx, "list")
		return fmt.Errorf("library: list snapshots: %w", err)
	}

	restored := 0
	for _, rec := range recs {
		loc := locate.Deserialize(rec.State)
		if loc.WindowCount() == 0 {
			slog.Warn("skipping corrupt or empty snapshot", "book_id", rec.BookID)
			continue
		}
		info := BookInfo{
			ID:          rec.BookID,
			Title:       rec.Title,
			ContentHash: rec.ContentHash,
			WordCount:   loc.WordCount(),
			WindowCount: loc.WindowCount(),
			IndexedAt:   rec.UpdatedAt,
		}
		l.mu.Lock()
		l.books[rec.BookID] = &book{info: info, locator: loc}
		l.mu.Unlock()
		restored++
	}

	slog.Info("library restored", "snapshots", len(recs), "books", restored)
	return nil
}

// get looks up a registered book by id.
func (l *Library) get(bookID string) (*book, error) {
	l.mu.RLock()
	b, ok := l.books[bookID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBook, bookID)
	}
	return b, nil
}
