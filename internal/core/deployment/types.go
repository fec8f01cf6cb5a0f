package deployment

import (
	"time"

	"github.com/artpar/apphost/internal/core/topology"
)

// =============================================================================
// Container Plan Types
// =============================================================================

// ContainerPlan represents a planned container configuration.
// This is the pure output of planning, ready for the shell to execute.
type ContainerPlan struct {
	Name   string
	Image  string
	Env    map[string]string
	Labels map[string]string
	Ports  []PortPlan
}

// PortPlan represents a planned port binding.
type PortPlan struct {
	Name          string `json:"name"` // Endpoint name
	ContainerPort int    `json:"container_port"`
	HostPort      int    `json:"host_port"`
	Protocol      string `json:"protocol"`
	HostIP        string `json:"host_ip,omitempty"`
}

// =============================================================================
// Instance Types
// =============================================================================

// Instance is a service the runtime has started.
type Instance struct {
	Service       string     `json:"service"`
	ContainerID   string     `json:"container_id"`
	ContainerName string     `json:"container_name"`
	Image         string     `json:"image"`
	Ports         []PortPlan `json:"ports,omitempty"`
	StartedAt     time.Time  `json:"started_at,omitempty"`
}

// =============================================================================
// Builder Parameter Types
// =============================================================================

// BuildContainerPlanParams contains all inputs for building a container plan.
type BuildContainerPlanParams struct {
	RunID   string
	Service topology.ServiceSpec
	HostIP  string // "" publishes on all interfaces
}

// =============================================================================
// Container Labels
// =============================================================================

// Label keys used for apphost container identification.
const (
	LabelManaged  = "io.apphost.managed"
	LabelRun      = "io.apphost.run"
	LabelService  = "io.apphost.service"
	LabelEndpoint = "io.apphost.endpoint." // + endpoint name, value "scheme://hostPort->targetPort"
)
