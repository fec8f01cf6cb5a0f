package topology

import (
	"maps"
	"slices"
)

// =============================================================================
// Endpoint Types
// =============================================================================

// Scheme is the application scheme an endpoint speaks.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// Valid reports whether s is a recognised scheme.
func (s Scheme) Valid() bool {
	switch s {
	case SchemeHTTP, SchemeHTTPS:
		return true
	}
	return false
}

// MaxPort is the highest valid TCP port.
const MaxPort = 65535

// EndpointSpec is a named port mapping exposed by a service.
type EndpointSpec struct {
	Name       string `json:"name"`
	HostPort   int    `json:"host_port"`
	TargetPort int    `json:"target_port"`
	Scheme     Scheme `json:"scheme"`
}

// =============================================================================
// Service Types
// =============================================================================

// ServiceSpec declares one deployable unit.
type ServiceSpec struct {
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Endpoints   []EndpointSpec    `json:"endpoints,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
}

// clone returns a deep copy of s.
func (s ServiceSpec) clone() ServiceSpec {
	out := ServiceSpec{
		Name:        s.Name,
		Image:       s.Image,
		Endpoints:   slices.Clone(s.Endpoints),
		Environment: maps.Clone(s.Environment),
	}
	if out.Environment == nil {
		out.Environment = map[string]string{}
	}
	if out.Endpoints == nil {
		out.Endpoints = []EndpointSpec{}
	}
	return out
}

// Endpoint returns the endpoint with the given name.
func (s ServiceSpec) Endpoint(name string) (EndpointSpec, bool) {
	for _, ep := range s.Endpoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EndpointSpec{}, false
}

// =============================================================================
// Topology
// =============================================================================

// Topology is the immutable set of services for one run.
// Services keep their declaration order, which is also the start order.
type Topology struct {
	services []ServiceSpec
	index    map[string]int
}

func newTopology(services []ServiceSpec) *Topology {
	t := &Topology{
		services: make([]ServiceSpec, 0, len(services)),
		index:    make(map[string]int, len(services)),
	}
	for _, svc := range services {
		t.index[svc.Name] = len(t.services)
		t.services = append(t.services, svc.clone())
	}
	return t
}

// Services returns a copy of every service in declaration order.
func (t *Topology) Services() []ServiceSpec {
	out := make([]ServiceSpec, 0, len(t.services))
	for _, svc := range t.services {
		out = append(out, svc.clone())
	}
	return out
}

// Service returns a copy of the named service.
func (t *Topology) Service(name string) (ServiceSpec, bool) {
	i, ok := t.index[name]
	if !ok {
		return ServiceSpec{}, false
	}
	return t.services[i].clone(), true
}

// Names returns the service names in declaration order.
func (t *Topology) Names() []string {
	names := make([]string, 0, len(t.services))
	for _, svc := range t.services {
		names = append(names, svc.Name)
	}
	return names
}

// Len returns the number of services.
func (t *Topology) Len() int {
	return len(t.services)
}
