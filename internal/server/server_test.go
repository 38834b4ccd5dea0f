package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/lecternhq/lectern/internal/library"
	"github.com/lecternhq/lectern/internal/observe"
	"github.com/lecternhq/lectern/internal/server"
	"github.com/lecternhq/lectern/pkg/locate"
	"github.com/lecternhq/lectern/pkg/snapshot/mock"
)

const bookText = "the quick brown fox jumps over the lazy dog and runs far away into the quiet hills"

// newTestMux builds a fully routed mux around a fresh library.
func newTestMux(t *testing.T) (*http.ServeMux, *library.Library) {
	t.Helper()

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	lib := library.New(mock.New(), library.LocatorOptions{}, metrics)
	mux := http.NewServeMux()
	server.New(lib, metrics).Register(mux)
	return mux, lib
}

// addBook indexes bookText under the given id and returns its info.
func addBook(t *testing.T, lib *library.Library, id string) library.BookInfo {
	t.Helper()
	info, err := lib.Add(context.Background(), library.AddRequest{ID: id, Title: "Test Book", Text: bookText})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return info
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAddBook(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "POST", "/v1/books", map[string]string{
		"id":    "fox",
		"title": "Fox Tales",
		"text":  bookText,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}

	var resp struct {
		Book library.BookInfo `json:"book"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Book.ID != "fox" {
		t.Errorf("book id = %q, want %q", resp.Book.ID, "fox")
	}
	if resp.Book.WordCount == 0 || resp.Book.WindowCount == 0 {
		t.Errorf("book should report counts, got %+v", resp.Book)
	}
}

func TestAddBook_DerivedID(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "POST", "/v1/books", map[string]string{"text": bookText})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var resp struct {
		Book library.BookInfo `json:"book"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Book.ID) != 16 {
		t.Errorf("derived id = %q, want 16 hex digits", resp.Book.ID)
	}
}

func TestAddBook_RejectsEmptyText(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "POST", "/v1/books", map[string]string{"title": "empty"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAddBook_RejectsInvalidJSON(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t)

	req := httptest.NewRequest("POST", "/v1/books", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestListBooks(t *testing.T) {
	t.Parallel()
	mux, lib := newTestMux(t)
	addBook(t, lib, "b")
	addBook(t, lib, "a")

	rec := doJSON(t, mux, "GET", "/v1/books", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Books []library.BookInfo `json:"books"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Books) != 2 {
		t.Fatalf("len(books) = %d, want 2", len(resp.Books))
	}
	if resp.Books[0].ID != "a" || resp.Books[1].ID != "b" {
		t.Errorf("books not ordered by id: %q, %q", resp.Books[0].ID, resp.Books[1].ID)
	}
}

func TestSearchBooks(t *testing.T) {
	t.Parallel()
	mux, lib := newTestMux(t)
	if _, err := lib.Add(context.Background(), library.AddRequest{ID: "moby", Title: "Moby Dick", Text: bookText}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	rec := doJSON(t, mux, "GET", "/v1/books/search?spoken=mobi+dic", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	var resp struct {
		Book  *library.BookInfo `json:"book"`
		Score float64           `json:"score"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Book == nil || resp.Book.ID != "moby" {
		t.Fatalf("book = %+v, want id moby", resp.Book)
	}
	if resp.Score <= 0 {
		t.Errorf("score = %v, want > 0", resp.Score)
	}

	// A miss is a 200 with book:null.
	rec = doJSON(t, mux, "GET", "/v1/books/search?spoken=quarterly+financial+report", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"book":null`)) {
		t.Errorf("body should contain book:null, got %s", rec.Body)
	}

	// Missing query parameter.
	rec = doJSON(t, mux, "GET", "/v1/books/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetBook(t *testing.T) {
	t.Parallel()
	mux, lib := newTestMux(t)
	addBook(t, lib, "fox")

	rec := doJSON(t, mux, "GET", "/v1/books/fox", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doJSON(t, mux, "GET", "/v1/books/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeleteBook(t *testing.T) {
	t.Parallel()
	mux, lib := newTestMux(t)
	addBook(t, lib, "fox")

	rec := doJSON(t, mux, "DELETE", "/v1/books/fox", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = doJSON(t, mux, "DELETE", "/v1/books/fox", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestLocate_Snippet(t *testing.T) {
	t.Parallel()
	mux, lib := newTestMux(t)
	addBook(t, lib, "fox")

	rec := doJSON(t, mux, "POST", "/v1/books/fox/locate", map[string]string{
		"snippet": "quick brown fox jumps",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	var resp struct {
		Match  *locate.QueryResult `json:"match"`
		TookMS float64             `json:"took_ms"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Match == nil {
		t.Fatal("match = null, want a result")
	}
	if resp.Match.MatchedText != "quick brown fox jumps" {
		t.Errorf("matched_text = %q", resp.Match.MatchedText)
	}
	if resp.Match.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", resp.Match.Confidence)
	}
	if resp.TookMS < 0 {
		t.Errorf("took_ms = %v, want >= 0", resp.TookMS)
	}
}

func TestLocate_NoMatchIsNull(t *testing.T) {
	t.Parallel()
	mux, lib := newTestMux(t)
	addBook(t, lib, "fox")

	rec := doJSON(t, mux, "POST", "/v1/books/fox/locate", map[string]string{
		"snippet": "zzz qqq xxx www",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"match":null`)) {
		t.Errorf("body should contain match:null, got %s", rec.Body)
	}
}

func TestLocate_Alternates(t *testing.T) {
	t.Parallel()
	mux, lib := newTestMux(t)
	addBook(t, lib, "fox")

	rec := doJSON(t, mux, "POST", "/v1/books/fox/locate", map[string]any{
		"alternates": []string{"quack brawn fix jemps", "quick brown fox jumps"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}

	var resp struct {
		Match *locate.QueryResult `json:"match"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Match == nil {
		t.Fatal("match = null, want a result")
	}
	// The verbatim alternate must win over the noisy one.
	if resp.Match.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", resp.Match.Confidence)
	}
}

func TestLocate_RejectsAmbiguousBody(t *testing.T) {
	t.Parallel()
	mux, lib := newTestMux(t)
	addBook(t, lib, "fox")

	// Neither snippet nor alternates.
	rec := doJSON(t, mux, "POST", "/v1/books/fox/locate", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	// Both snippet and alternates.
	rec = doJSON(t, mux, "POST", "/v1/books/fox/locate", map[string]any{
		"snippet":    "quick brown",
		"alternates": []string{"quick brown"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("both fields status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLocate_UnknownBook(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, "POST", "/v1/books/ghost/locate", map[string]string{
		"snippet": "quick brown fox",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
