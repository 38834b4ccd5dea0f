// Package health serves lectern's probe endpoints.
//
// GET /healthz reports liveness and always answers 200: a process that can
// serve HTTP is alive. GET /readyz runs every registered check — the
// snapshot store, at minimum — and answers 503 when any fails, with a
// per-check breakdown (status, error, duration) in the body so an operator
// can see which dependency is holding readiness back.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds each readiness check.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when the dependency is
// healthy and must respect ctx cancellation.
type Checker struct {
	// Name keys the check in the /readyz body, e.g. "snapshots".
	Name string

	Check func(ctx context.Context) error
}

// checkResult is the per-dependency entry in the readiness body.
type checkResult struct {
	Status string  `json:"status"` // "ok" or "fail"
	Error  string  `json:"error,omitempty"`
	TookMS float64 `json:"took_ms"`
}

// report is the response body for both probes.
type report struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. The checker list is fixed at
// construction; checks run concurrently on each /readyz request.
type Handler struct {
	checkers []Checker
}

// New creates a Handler evaluating the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: slices.Clone(checkers)}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every check concurrently, each under its own timeout, and
// answers 503 when any fails. A failing check never cancels its siblings so
// the body always carries the full picture.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make([]checkResult, len(h.checkers))

	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(ctx)
			results[i] = checkResult{
				Status: "ok",
				TookMS: float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				results[i].Status = "fail"
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines report through results, never an error

	res := report{Status: "ok", Checks: make(map[string]checkResult, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		res.Checks[c.Name] = results[i]
		if results[i].Status != "ok" {
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code, falling back to a
// plain-text 500 on the impossible encode failure.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
