package api

import "time"

// =============================================================================
// Response Types
// =============================================================================

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// StateResponse is the response for the run state endpoint.
type StateResponse struct {
	State    string `json:"state"`
	Terminal bool   `json:"terminal"`
	Services int    `json:"services"`
	Started  int    `json:"started"`
}

// ServiceResponse describes one declared service and its container, if started.
type ServiceResponse struct {
	Name        string             `json:"name"`
	Image       string             `json:"image"`
	Endpoints   []EndpointResponse `json:"endpoints"`
	Environment []string           `json:"environment"` // variable names only
	Container   *ContainerResponse `json:"container,omitempty"`
}

// EndpointResponse describes a published endpoint.
type EndpointResponse struct {
	Name       string `json:"name"`
	Scheme     string `json:"scheme"`
	HostPort   int    `json:"host_port"`
	TargetPort int    `json:"target_port"`
	URL        string `json:"url"`
}

// ContainerResponse describes the container backing a started service.
type ContainerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	StartedAt time.Time `json:"started_at"`
}

// ServiceListResponse is the response for listing services.
type ServiceListResponse struct {
	Services []ServiceResponse `json:"services"`
}

// ErrorResponse is the response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
