// Package health serves liveness and readiness probes for the voice engine.
//
//   - /healthz answers 200 whenever the process can serve HTTP.
//   - /readyz answers 200 only when every registered [Probe] passes, so an
//     orchestrator will not route traffic to an engine whose audio pipeline
//     or history store is down.
//
// Responses are JSON with a "status" field ("ok" or "fail") and a "probes"
// map with each probe's outcome.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 3 * time.Second

// Probe is a named readiness check. Run returns nil when the dependency is
// healthy and must respect context cancellation.
type Probe struct {
	Name string
	Run  func(ctx context.Context) error
}

// EngineRunning returns a probe that fails while the engine is stopped.
func EngineRunning(running func() bool) Probe {
	return Probe{
		Name: "engine",
		Run: func(context.Context) error {
			if !running() {
				return errors.New("engine is not running")
			}
			return nil
		},
	}
}

// response is the JSON body of both endpoints.
type response struct {
	Status string            `json:"status"`
	Probes map[string]string `json:"probes,omitempty"`
}

// Handler serves the probe endpoints. The probe list is fixed at
// construction, so the handler is safe for concurrent use.
type Handler struct {
	probes []Probe
}

// New creates a handler that runs the given probes, in order, on each
// /readyz request.
func New(probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{probes: p}
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz is the liveness probe. It always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz runs every registered probe under a [probeTimeout] deadline and
// answers 503 if any of them fail.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	outcomes := make(map[string]string, len(h.probes))
	ready := true

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Run(ctx)
		cancel()

		if err != nil {
			outcomes[p.Name] = "fail: " + err.Error()
			ready = false
		} else {
			outcomes[p.Name] = "ok"
		}
	}

	res := response{Status: "ok", Probes: outcomes}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
