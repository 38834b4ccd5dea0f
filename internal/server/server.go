// Package server exposes the book library over HTTP: book management,
// snippet location queries, and a WebSocket endpoint for live read-along
// sessions.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lecternhq/lectern/internal/library"
	"github.com/lecternhq/lectern/internal/observe"
	"github.com/lecternhq/lectern/pkg/locate"
)

// Server routes HTTP requests to the library. Safe for concurrent use.
type Server struct {
	lib     *library.Library
	metrics *observe.Metrics
}

// New creates a Server backed by lib. A nil metrics falls back to
// [observe.DefaultMetrics].
func New(lib *library.Library, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{lib: lib, metrics: metrics}
}

// Register adds all book routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/books", s.handleAddBook)
	mux.HandleFunc("GET /v1/books", s.handleListBooks)
	mux.HandleFunc("GET /v1/books/search", s.handleSearchBooks)
	mux.HandleFunc("GET /v1/books/{id}", s.handleGetBook)
	mux.HandleFunc("DELETE /v1/books/{id}", s.handleDeleteBook)
	mux.HandleFunc("POST /v1/books/{id}/locate", s.handleLocate)
	mux.HandleFunc("GET /v1/books/{id}/follow", s.handleFollow)
}

// addBookRequest is the JSON body for POST /v1/books.
type addBookRequest struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}

	start := time.Now()
	info, err := s.lib.Add(r.Context(), library.AddRequest{
		ID:    req.ID,
		Title: req.Title,
		Text:  req.Text,
	})
	if err != nil {
		observe.Logger(r.Context()).Error("add book failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to index book")
		return
	}
	s.metrics.RecordIndex(r.Context(), time.Since(start))

	writeJSON(w, http.StatusCreated, map[string]any{"book": info})
}

func (s *Server) handleListBooks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"books": s.lib.List()})
}

// handleSearchBooks resolves a spoken title (?spoken=...) to a book via
// phonetic matching. A miss is a 200 with book:null, mirroring locate.
func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	spoken := r.URL.Query().Get("spoken")
	if spoken == "" {
		writeError(w, http.StatusBadRequest, "spoken query parameter is required")
		return
	}

	info, score, ok := s.lib.FindByTitle(spoken)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"book": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"book": info, "score": score})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	info, err := s.lib.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"book": info})
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	err := s.lib.Remove(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, library.ErrUnknownBook):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		observe.Logger(r.Context()).Error("delete book failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete book")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// locateRequest is the JSON body for POST /v1/books/{id}/locate. Exactly one
// of Snippet or Alternates must be set.
type locateRequest struct {
	Snippet    string   `json:"snippet,omitempty"`
	Alternates []string `json:"alternates,omitempty"`
}

// locateResponse carries the best match (null when nothing aligned) and the
// query latency.
type locateResponse struct {
	Match  *locate.QueryResult `json:"match"`
	TookMS float64             `json:"took_ms"`
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if (req.Snippet == "") == (len(req.Alternates) == 0) {
		writeError(w, http.StatusBadRequest, "provide exactly one of snippet or alternates")
		return
	}

	bookID := r.PathValue("id")
	start := time.Now()

	var (
		res locate.QueryResult
		ok  bool
		err error
	)
	if req.Snippet != "" {
		res, ok, err = s.lib.Locate(r.Context(), bookID, req.Snippet)
	} else {
		res, ok, err = s.lib.LocateBest(r.Context(), bookID, req.Alternates)
	}
	took := time.Since(start)

	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.metrics.RecordLocate(r.Context(), took, ok)

	resp := locateResponse{TookMS: float64(took.Microseconds()) / 1000}
	if ok {
		resp.Match = &res
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
