// Package health serves liveness and readiness probes.
//
// /healthz reports that the process is alive and serving HTTP. /readyz runs
// every registered check and fails with 503 if any dependency is down, so an
// orchestrator holds traffic until the gateway connection and the optional
// history database are usable.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Check probes one dependency. It must respect ctx cancellation and return
// nil when the dependency is usable.
type Check func(ctx context.Context) error

// Handler evaluates named checks for the readiness probe. Register all
// checks before serving; Add is not safe to call concurrently with requests.
type Handler struct {
	started time.Time
	checks  map[string]Check
}

// NewHandler returns an empty [Handler]. The liveness uptime counts from
// this call.
func NewHandler() *Handler {
	return &Handler{
		started: time.Now(),
		checks:  make(map[string]Check),
	}
}

// Add registers a named dependency check, replacing any previous check with
// the same name.
func (h *Handler) Add(name string, check Check) {
	h.checks[name] = check
}

// Register mounts the probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
}

type livenessBody struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type readinessBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, livenessBody{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	body := readinessBody{
		Status: "ok",
		Checks: make(map[string]string, len(h.checks)),
	}
	code := http.StatusOK

	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			body.Checks[name] = "fail: " + err.Error()
			body.Status = "fail"
			code = http.StatusServiceUnavailable
		} else {
			body.Checks[name] = "ok"
		}
	}

	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
