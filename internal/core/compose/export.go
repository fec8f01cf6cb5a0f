package compose

import (
	"strconv"

	"github.com/artpar/apphost/internal/core/topology"
	"github.com/compose-spec/compose-go/v2/types"
)

// =============================================================================
// Export Functions
// =============================================================================

// ToProject converts a topology into a compose project.
// Endpoint names and schemes are kept as port name and app_protocol, so the
// project loads back into an equal topology with LoadInto.
func ToProject(topo *topology.Topology) *types.Project {
	project := &types.Project{
		Name:     projectName,
		Services: types.Services{},
	}

	for _, svc := range topo.Services() {
		cfg := types.ServiceConfig{
			Name:        svc.Name,
			Image:       svc.Image,
			Environment: types.MappingWithEquals{},
		}

		for _, ep := range svc.Endpoints {
			cfg.Ports = append(cfg.Ports, types.ServicePortConfig{
				Name:        ep.Name,
				Mode:        "ingress",
				Target:      uint32(ep.TargetPort),
				Published:   strconv.Itoa(ep.HostPort),
				Protocol:    "tcp",
				AppProtocol: string(ep.Scheme),
			})
		}

		for k, v := range svc.Environment {
			value := v
			cfg.Environment[k] = &value
		}

		project.Services[svc.Name] = cfg
	}

	return project
}

// Marshal renders a topology as compose YAML.
func Marshal(topo *topology.Topology) ([]byte, error) {
	return ToProject(topo).MarshalYAML()
}
