// Package health provides HTTP liveness and readiness handlers.
//
//   - /healthz always answers 200 while the process serves HTTP.
//   - /readyz runs every registered [Checker] concurrently. A failing
//     critical check answers 503 with status "fail". A failing optional check
//     (for example the network probe, since cached content is still served
//     offline) answers 200 with status "degraded".
//
// Responses are JSON objects with a "status" field and a "checks" map of
// per-check results.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lectern/internal/resilience"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check.
type Checker struct {
	// Name keys the check in the JSON response.
	Name string

	// Check returns nil when the dependency is healthy. It must respect
	// context cancellation.
	Check func(ctx context.Context) error

	// Optional checks degrade readiness instead of failing it.
	Optional bool
}

// Pinger is implemented by storage backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck returns a critical Checker that pings p.
func PingCheck(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// errOffline is reported by [OnlineCheck].
var errOffline = errors.New("network unreachable")

// OnlineCheck returns an optional Checker reporting the connectivity state.
func OnlineCheck(name string, online func() bool) Checker {
	return Checker{
		Name:     name,
		Optional: true,
		Check: func(context.Context) error {
			if !online() {
				return errOffline
			}
			return nil
		},
	}
}

// BreakerCheck returns an optional Checker that fails while any provider
// breaker reported by states is open.
func BreakerCheck(name string, states func() map[string]resilience.State) Checker {
	return Checker{
		Name:     name,
		Optional: true,
		Check: func(context.Context) error {
			m := states()
			var open []string
			for _, n := range slices.Sorted(maps.Keys(m)) {
				if m[n] == resilience.StateOpen {
					open = append(open, n)
				}
			}
			if len(open) > 0 {
				return fmt.Errorf("breaker open: %s", strings.Join(open, ", "))
			}
			return nil
		},
	}
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] evaluating checkers on each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is the readiness probe.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	errs := make([]error, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			errs[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	res := result{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		err := errs[i]
		if err == nil {
			res.Checks[c.Name] = "ok"
			continue
		}
		res.Checks[c.Name] = "fail: " + err.Error()
		if c.Optional {
			if res.Status == "ok" {
				res.Status = "degraded"
			}
			continue
		}
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
