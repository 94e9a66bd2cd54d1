// Package health serves the liveness and readiness probes of the netsend
// daemon.
//
//   - /healthz answers 200 while the process can serve HTTP.
//   - /readyz answers 200 only when every registered [Checker] passes, i.e.
//     the bridge is connected and its event loop and audio host are running.
//
// Both endpoints reply with a JSON object carrying a "status" field ("ok" or
// "fail") and, for /readyz, a "checks" map keyed by checker name.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/netsend/pkg/netsend"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 2 * time.Second

// Checker is a named readiness probe. Check returns nil when healthy.
type Checker struct {
	Name  string
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

// New creates a [Handler] evaluating checkers on every /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs all checkers concurrently, each bounded by [checkTimeout], and
// answers 503 if any of them fails.
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
		if errs[i] != nil {
			res.Checks[c.Name] = "fail: " + errs[i].Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Errors reported by the built-in checkers.
var (
	ErrDisconnected = errors.New("bridge not connected")
	ErrLoopDown     = errors.New("event loop not running")
	ErrHostDown     = errors.New("audio host not running")
)

// Bridge is the subset of a bridge the built-in checkers inspect.
type Bridge interface {
	Connected() bool
	LoopState() string
}

// BridgeCheckers returns the "bridge" and "event_loop" checkers for b.
func BridgeCheckers(b Bridge) []Checker {
	return []Checker{
		{Name: "bridge", Check: func(context.Context) error {
			if !b.Connected() {
				return ErrDisconnected
			}
			return nil
		}},
		{Name: "event_loop", Check: func(context.Context) error {
			if s := b.LoopState(); s != netsend.StateRunning {
				return fmt.Errorf("%w (state %s)", ErrLoopDown, s)
			}
			return nil
		}},
	}
}

// HostChecker reports whether the audio host driver is running.
func HostChecker(running func() bool) Checker {
	return Checker{Name: "host", Check: func(context.Context) error {
		if !running() {
			return ErrHostDown
		}
		return nil
	}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
