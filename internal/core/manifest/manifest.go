// Package manifest renders a topology as a deployment manifest.
//
// The manifest lists every service as a container resource with its image,
// environment and endpoint bindings, so external tooling can deploy the same
// topology without running the host. All functions are pure.
package manifest

import (
	"encoding/json"

	"github.com/artpar/apphost/internal/core/deployment"
	"github.com/artpar/apphost/internal/core/topology"
)

// SchemaURL identifies the manifest format.
const SchemaURL = "https://json.schemastore.org/aspire-8.0.json"

// ResourceTypeContainer is the resource type for container services.
const ResourceTypeContainer = "container.v0"

// Manifest is the top-level manifest document.
type Manifest struct {
	Schema    string              `json:"$schema"`
	Resources map[string]Resource `json:"resources"`
}

// Resource describes one deployable resource.
type Resource struct {
	Type     string             `json:"type"`
	Image    string             `json:"image"`
	Env      map[string]string  `json:"env,omitempty"`
	Bindings map[string]Binding `json:"bindings,omitempty"`
}

// Binding describes a published endpoint.
type Binding struct {
	Scheme     string `json:"scheme"`
	Protocol   string `json:"protocol"`
	Transport  string `json:"transport"`
	Port       int    `json:"port"`
	TargetPort int    `json:"targetPort"`
}

// Build converts a topology into a manifest.
// Images are normalized the same way the container runtime sees them.
func Build(topo *topology.Topology) Manifest {
	m := Manifest{
		Schema:    SchemaURL,
		Resources: make(map[string]Resource, topo.Len()),
	}

	for _, svc := range topo.Services() {
		res := Resource{
			Type:  ResourceTypeContainer,
			Image: deployment.NormalizeImage(svc.Image),
		}
		if len(svc.Environment) > 0 {
			res.Env = svc.Environment
		}
		if len(svc.Endpoints) > 0 {
			res.Bindings = make(map[string]Binding, len(svc.Endpoints))
			for _, ep := range svc.Endpoints {
				res.Bindings[ep.Name] = Binding{
					Scheme:     string(ep.Scheme),
					Protocol:   "tcp",
					Transport:  "http",
					Port:       ep.HostPort,
					TargetPort: ep.TargetPort,
				}
			}
		}
		m.Resources[svc.Name] = res
	}

	return m
}

// Marshal renders the manifest for a topology as indented JSON.
func Marshal(topo *topology.Topology) ([]byte, error) {
	return json.MarshalIndent(Build(topo), "", "  ")
}
