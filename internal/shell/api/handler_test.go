package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/apphost/internal/core/deployment"
	"github.com/artpar/apphost/internal/core/lifecycle"
	"github.com/artpar/apphost/internal/core/topology"
	"github.com/artpar/apphost/internal/shell/host"
)

// =============================================================================
// Test Helpers
// =============================================================================

// stubStatus implements StatusSource for testing.
type stubStatus struct {
	snap host.Snapshot
}

func (s *stubStatus) Snapshot() host.Snapshot {
	return s.snap
}

func newTestHandler(t *testing.T, state lifecycle.State, instances ...deployment.Instance) *Handler {
	t.Helper()

	b := topology.NewBuilder()
	b.AddService("cicd", "cicd").
		WithHTTPEndpoint(8085, 8085, "http").
		WithEnvironment("ASPNETCORE_URLS", "http://0.0.0.0:8085")
	topo, err := b.Build()
	require.NoError(t, err)

	status := &stubStatus{snap: host.Snapshot{
		State:     state,
		Services:  topo.Names(),
		Instances: instances,
	}}
	return NewHandler(topo, status, nil, "")
}

func cicdInstance() deployment.Instance {
	return deployment.Instance{
		Service:       "cicd",
		ContainerID:   "abc123",
		ContainerName: "cicd-1a2b3c4d",
		Image:         "cicd:latest",
		StartedAt:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func doRequest(h *Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)
	return w
}

// parseResponse parses a JSON response body into the given type.
func parseResponse[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var result T
	require.NoError(t, json.NewDecoder(body).Decode(&result))
	return result
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealth_Success(t *testing.T) {
	h := newTestHandler(t, lifecycle.StateRunning)

	w := doRequest(h, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	resp := parseResponse[HealthResponse](t, w.Body)
	assert.Equal(t, "healthy", resp.Status)
}

func TestReady(t *testing.T) {
	tests := []struct {
		state      lifecycle.State
		wantCode   int
		wantStatus string
	}{
		{lifecycle.StateRunning, http.StatusOK, "ready"},
		{lifecycle.StateBuilding, http.StatusServiceUnavailable, "building"},
		{lifecycle.StateShuttingDown, http.StatusServiceUnavailable, "shutting_down"},
		{lifecycle.StateFailed, http.StatusServiceUnavailable, "failed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			h := newTestHandler(t, tt.state)

			w := doRequest(h, "/ready")

			assert.Equal(t, tt.wantCode, w.Code)
			resp := parseResponse[HealthResponse](t, w.Body)
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}

// =============================================================================
// State Tests
// =============================================================================

func TestState_Running(t *testing.T) {
	h := newTestHandler(t, lifecycle.StateRunning, cicdInstance())

	w := doRequest(h, "/api/v1/state")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse[StateResponse](t, w.Body)
	assert.Equal(t, "running", resp.State)
	assert.False(t, resp.Terminal)
	assert.Equal(t, 1, resp.Services)
	assert.Equal(t, 1, resp.Started)
}

func TestState_Stopped(t *testing.T) {
	h := newTestHandler(t, lifecycle.StateStopped)

	w := doRequest(h, "/api/v1/state")

	resp := parseResponse[StateResponse](t, w.Body)
	assert.Equal(t, "stopped", resp.State)
	assert.True(t, resp.Terminal)
	assert.Equal(t, 0, resp.Started)
}

// =============================================================================
// Service Tests
// =============================================================================

func TestListServices_HidesEnvironmentValues(t *testing.T) {
	b := topology.NewBuilder()
	b.AddService("api", "myapp:1.0").
		WithEnvironment("DB_PASSWORD", "hunter2").
		WithEnvironment("API_TOKEN", "tok-secret")
	topo, err := b.Build()
	require.NoError(t, err)
	h := NewHandler(topo, &stubStatus{snap: host.Snapshot{State: lifecycle.StateRunning}}, nil, "")

	for _, path := range []string{"/api/v1/services", "/api/v1/services/api"} {
		w := doRequest(h, path)
		require.Equal(t, http.StatusOK, w.Code, path)

		body := w.Body.String()
		assert.NotContains(t, body, "hunter2", path)
		assert.NotContains(t, body, "tok-secret", path)
		assert.Contains(t, body, `"environment":["API_TOKEN","DB_PASSWORD"]`, path)
	}
}

func TestListServices_WithContainer(t *testing.T) {
	h := newTestHandler(t, lifecycle.StateRunning, cicdInstance())

	w := doRequest(h, "/api/v1/services")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse[ServiceListResponse](t, w.Body)
	require.Len(t, resp.Services, 1)

	svc := resp.Services[0]
	assert.Equal(t, "cicd", svc.Name)
	assert.Equal(t, "cicd", svc.Image)
	assert.Equal(t, []string{"ASPNETCORE_URLS"}, svc.Environment)

	require.Len(t, svc.Endpoints, 1)
	assert.Equal(t, EndpointResponse{
		Name:       "http",
		Scheme:     "http",
		HostPort:   8085,
		TargetPort: 8085,
		URL:        "http://localhost:8085",
	}, svc.Endpoints[0])

	require.NotNil(t, svc.Container)
	assert.Equal(t, "abc123", svc.Container.ID)
	assert.Equal(t, "cicd:latest", svc.Container.Image)
}

func TestListServices_NotStarted(t *testing.T) {
	h := newTestHandler(t, lifecycle.StateBuilding)

	w := doRequest(h, "/api/v1/services")

	resp := parseResponse[ServiceListResponse](t, w.Body)
	require.Len(t, resp.Services, 1)
	assert.Nil(t, resp.Services[0].Container)
}

func TestGetService(t *testing.T) {
	h := newTestHandler(t, lifecycle.StateRunning, cicdInstance())

	w := doRequest(h, "/api/v1/services/cicd")

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse[ServiceResponse](t, w.Body)
	assert.Equal(t, "cicd", resp.Name)
	require.NotNil(t, resp.Container)
	assert.Equal(t, "cicd-1a2b3c4d", resp.Container.Name)
}

func TestGetService_NotFound(t *testing.T) {
	h := newTestHandler(t, lifecycle.StateRunning)

	w := doRequest(h, "/api/v1/services/missing")

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := parseResponse[ErrorResponse](t, w.Body)
	assert.Equal(t, "service_not_found", resp.Code)
}

func TestNewHandler_HostName(t *testing.T) {
	b := topology.NewBuilder()
	b.AddService("web", "nginx").WithHTTPSEndpoint(8443, 443, "https")
	topo, err := b.Build()
	require.NoError(t, err)

	h := NewHandler(topo, &stubStatus{snap: host.Snapshot{State: lifecycle.StateRunning}}, nil, "example.test")

	w := doRequest(h, "/api/v1/services/web")

	resp := parseResponse[ServiceResponse](t, w.Body)
	require.Len(t, resp.Endpoints, 1)
	assert.Equal(t, "https://example.test:8443", resp.Endpoints[0].URL)
}
