package deployment

import (
	"fmt"
	"maps"
	"strings"
)

// =============================================================================
// Container Plan Building Functions
// =============================================================================

// BuildContainerPlan builds a ContainerPlan from a topology service.
//
// The function:
//   - Generates the container name using ContainerName()
//   - Normalizes the image reference
//   - Copies the service environment
//   - Publishes every endpoint as a TCP binding hostPort -> targetPort
//   - Labels the container with run, service and endpoint metadata
//
// Example:
//
//	plan := BuildContainerPlan(BuildContainerPlanParams{
//	    RunID:   "abc123",
//	    Service: topology.ServiceSpec{Name: "web", Image: "nginx"},
//	})
//	// plan.Name == "web-abc123", plan.Image == "nginx:latest"
func BuildContainerPlan(params BuildContainerPlanParams) ContainerPlan {
	svc := params.Service

	plan := ContainerPlan{
		Name:  ContainerName(params.RunID, svc.Name),
		Image: NormalizeImage(svc.Image),
		Env:   maps.Clone(svc.Environment),
		Labels: map[string]string{
			LabelManaged: "true",
			LabelRun:     params.RunID,
			LabelService: svc.Name,
		},
	}
	if plan.Env == nil {
		plan.Env = map[string]string{}
	}

	for _, ep := range svc.Endpoints {
		plan.Ports = append(plan.Ports, PortPlan{
			Name:          ep.Name,
			ContainerPort: ep.TargetPort,
			HostPort:      ep.HostPort,
			Protocol:      "tcp",
			HostIP:        params.HostIP,
		})
		plan.Labels[LabelEndpoint+ep.Name] = fmt.Sprintf("%s://%d->%d", ep.Scheme, ep.HostPort, ep.TargetPort)
	}

	return plan
}

// NormalizeImage appends the "latest" tag to untagged image references.
// Digests and explicit tags are kept as-is.
//
// Example:
//
//	NormalizeImage("cicd")                  // "cicd:latest"
//	NormalizeImage("localhost:5000/cicd")   // "localhost:5000/cicd:latest"
//	NormalizeImage("cicd:1.2")              // "cicd:1.2"
func NormalizeImage(image string) string {
	if image == "" || strings.Contains(image, "@") {
		return image
	}
	// A colon after the last slash separates the tag; earlier colons belong to a registry port.
	lastSlash := strings.LastIndex(image, "/")
	if strings.Contains(image[lastSlash+1:], ":") {
		return image
	}
	return image + ":latest"
}
