// Package api provides the read-only HTTP dashboard for a running host.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/apphost/internal/core/deployment"
	"github.com/artpar/apphost/internal/core/lifecycle"
	"github.com/artpar/apphost/internal/core/topology"
	"github.com/artpar/apphost/internal/shell/host"
)

// =============================================================================
// Handler
// =============================================================================

// StatusSource reports the current state of a run. *host.Runner implements it.
type StatusSource interface {
	Snapshot() host.Snapshot
}

// Handler provides HTTP handlers for the dashboard.
type Handler struct {
	topology *topology.Topology
	status   StatusSource
	logger   *slog.Logger
	hostName string
}

// NewHandler creates a dashboard handler. hostName is used to render endpoint
// URLs and defaults to localhost.
func NewHandler(topo *topology.Topology, status StatusSource, l *slog.Logger, hostName string) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if hostName == "" {
		hostName = "localhost"
	}
	return &Handler{
		topology: topo,
		status:   status,
		logger:   l,
		hostName: hostName,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", h.handleState)
		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.handleListServices)
			r.Get("/{name}", h.handleGetService)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// handleReady reports ready only while every service is running.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	state := h.status.Snapshot().State
	if state != lifecycle.StateRunning {
		h.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: string(state)})
		return
	}
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
}

// =============================================================================
// Run Handlers
// =============================================================================

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Snapshot()
	h.writeJSON(w, http.StatusOK, StateResponse{
		State:    string(snap.State),
		Terminal: snap.State.IsTerminal(),
		Services: h.topology.Len(),
		Started:  len(snap.Instances),
	})
}

func (h *Handler) handleListServices(w http.ResponseWriter, r *http.Request) {
	instances := instancesByService(h.status.Snapshot())

	services := h.topology.Services()
	resp := ServiceListResponse{Services: make([]ServiceResponse, 0, len(services))}
	for _, svc := range services {
		resp.Services = append(resp.Services, h.serviceToResponse(svc, instances))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	svc, ok := h.topology.Service(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, "service not found", "service_not_found")
		return
	}

	instances := instancesByService(h.status.Snapshot())
	h.writeJSON(w, http.StatusOK, h.serviceToResponse(svc, instances))
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *Handler) serviceToResponse(svc topology.ServiceSpec, instances map[string]deployment.Instance) ServiceResponse {
	resp := ServiceResponse{
		Name:        svc.Name,
		Image:       svc.Image,
		Endpoints:   make([]EndpointResponse, 0, len(svc.Endpoints)),
		Environment: envNames(svc.Environment),
	}

	for _, ep := range svc.Endpoints {
		resp.Endpoints = append(resp.Endpoints, EndpointResponse{
			Name:       ep.Name,
			Scheme:     string(ep.Scheme),
			HostPort:   ep.HostPort,
			TargetPort: ep.TargetPort,
			URL:        fmt.Sprintf("%s://%s:%d", ep.Scheme, h.hostName, ep.HostPort),
		})
	}

	if inst, ok := instances[svc.Name]; ok {
		resp.Container = &ContainerResponse{
			ID:        inst.ContainerID,
			Name:      inst.ContainerName,
			Image:     inst.Image,
			StartedAt: inst.StartedAt,
		}
	}

	return resp
}

func instancesByService(snap host.Snapshot) map[string]deployment.Instance {
	m := make(map[string]deployment.Instance, len(snap.Instances))
	for _, inst := range snap.Instances {
		m[inst.Service] = inst
	}
	return m
}

// envNames lists the variable names of env in order. Values may hold
// credentials and are never served.
func envNames(env map[string]string) []string {
	names := make([]string, 0, len(env))
	for k := range env {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
