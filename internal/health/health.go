// Package health serves the liveness and readiness probes of the ordering
// server.
//
//   - /healthz is the liveness probe and always returns 200 OK.
//   - /readyz returns 200 only when every registered [Checker] passes: the
//     menu is loaded, the order history is reachable and at least one speech
//     backend per kind has a closed breaker.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map containing the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/ordervox/internal/resilience"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check.
type Checker struct {
	// Name appears as a key in the JSON response (e.g. "menu", "history").
	Name string

	// Check returns nil when the dependency is healthy. It must respect
	// context cancellation.
	Check func(ctx context.Context) error
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that runs the given checkers concurrently on each
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when every registered [Checker] passes. Each
// checker gets its own [checkTimeout] deadline derived from the request.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		allOK  = true
	)

	// errgroup without a derived context: one failing check must not cancel
	// the others, every result is reported.
	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			err := c.Check(ctx)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				allOK = false
			} else {
				checks[c.Name] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// ---- checkers ----

// Readier is satisfied by the menu catalog.
type Readier interface {
	Ready() error
}

// Pinger is satisfied by the order history stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusReporter is satisfied by the speech fallback groups.
type StatusReporter interface {
	Status() []resilience.EntryStatus
}

// MenuChecker reports whether a menu snapshot has been loaded.
func MenuChecker(r Readier) Checker {
	return Checker{Name: "menu", Check: func(context.Context) error { return r.Ready() }}
}

// HistoryChecker pings the order history store.
func HistoryChecker(p Pinger) Checker {
	return Checker{Name: "history", Check: p.Ping}
}

// ErrAllBackendsOpen is returned by a backend checker when no backend of
// that kind would currently accept a call.
var ErrAllBackendsOpen = errors.New("health: every backend circuit is open")

// BackendChecker fails when every entry of a speech fallback group has an
// open circuit breaker. A half-open entry counts as available.
func BackendChecker(name string, s StatusReporter) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		entries := s.Status()
		for _, e := range entries {
			if e.State != resilience.StateOpen {
				return nil
			}
		}
		if len(entries) == 0 {
			return nil
		}
		return fmt.Errorf("%w (%d backends)", ErrAllBackendsOpen, len(entries))
	}}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
