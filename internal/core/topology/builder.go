package topology

import "fmt"

// =============================================================================
// Builder
// =============================================================================

// Builder accumulates service declarations until Build is called.
// It only records what it is told; all checks happen in Build.
type Builder struct {
	services []*serviceDecl
}

type serviceDecl struct {
	name        string
	image       string
	endpoints   []EndpointSpec
	environment []envVar
}

type envVar struct {
	key   string
	value string
}

// NewBuilder creates an empty topology builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddService declares a container service and returns a handle for
// attaching endpoints and environment to it.
func (b *Builder) AddService(name, image string) *ServiceHandle {
	decl := &serviceDecl{name: name, image: image}
	b.services = append(b.services, decl)
	return &ServiceHandle{decl: decl}
}

// Build validates the declarations and returns an immutable snapshot.
// Build may be called repeatedly; it never changes the builder.
func (b *Builder) Build() (*Topology, error) {
	var violations []Violation
	seen := make(map[string]bool, len(b.services))

	services := make([]ServiceSpec, 0, len(b.services))
	for _, decl := range b.services {
		if decl.name != "" {
			if seen[decl.name] {
				violations = append(violations, Violation{
					Service: decl.name,
					Message: "service declared more than once",
					Err:     ErrDuplicateService,
				})
				continue
			}
			seen[decl.name] = true
		}
		violations = append(violations, validateService(decl)...)
		services = append(services, decl.spec())
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return newTopology(services), nil
}

func (d *serviceDecl) spec() ServiceSpec {
	spec := ServiceSpec{
		Name:        d.name,
		Image:       d.image,
		Endpoints:   make([]EndpointSpec, len(d.endpoints)),
		Environment: make(map[string]string, len(d.environment)),
	}
	copy(spec.Endpoints, d.endpoints)
	for _, kv := range d.environment {
		if _, exists := spec.Environment[kv.key]; !exists {
			spec.Environment[kv.key] = kv.value
		}
	}
	return spec
}

// =============================================================================
// Service Handle
// =============================================================================

// ServiceHandle attaches endpoints and environment to a declared service.
// Every method returns the same handle so calls can be chained.
type ServiceHandle struct {
	decl *serviceDecl
}

// Name returns the declared service name.
func (h *ServiceHandle) Name() string {
	return h.decl.name
}

// WithEndpoint publishes targetPort inside the container on hostPort.
func (h *ServiceHandle) WithEndpoint(name string, hostPort, targetPort int, scheme Scheme) *ServiceHandle {
	h.decl.endpoints = append(h.decl.endpoints, EndpointSpec{
		Name:       name,
		HostPort:   hostPort,
		TargetPort: targetPort,
		Scheme:     scheme,
	})
	return h
}

// WithHTTPEndpoint is WithEndpoint with the http scheme.
func (h *ServiceHandle) WithHTTPEndpoint(hostPort, targetPort int, name string) *ServiceHandle {
	return h.WithEndpoint(name, hostPort, targetPort, SchemeHTTP)
}

// WithHTTPSEndpoint is WithEndpoint with the https scheme.
func (h *ServiceHandle) WithHTTPSEndpoint(hostPort, targetPort int, name string) *ServiceHandle {
	return h.WithEndpoint(name, hostPort, targetPort, SchemeHTTPS)
}

// WithEnvironment sets an environment variable inside the container.
// Declaring the same key twice is reported by Build.
func (h *ServiceHandle) WithEnvironment(key, value string) *ServiceHandle {
	h.decl.environment = append(h.decl.environment, envVar{key: key, value: value})
	return h
}

// =============================================================================
// Validation
// =============================================================================

func validateService(d *serviceDecl) []Violation {
	var violations []Violation

	if d.name == "" {
		violations = append(violations, Violation{
			Field:   "name",
			Message: "service name is required",
			Err:     ErrEmptyName,
		})
	}
	if d.image == "" {
		violations = append(violations, Violation{
			Service: d.name,
			Field:   "image",
			Message: "image is required",
			Err:     ErrEmptyImage,
		})
	}

	endpoints := make(map[string]bool, len(d.endpoints))
	for i, ep := range d.endpoints {
		field := fmt.Sprintf("endpoints[%d]", i)
		if ep.Name == "" {
			violations = append(violations, Violation{
				Service: d.name,
				Field:   field + ".name",
				Message: "endpoint name is required",
				Err:     ErrEmptyName,
			})
		} else {
			field = "endpoints." + ep.Name
			if endpoints[ep.Name] {
				violations = append(violations, Violation{
					Service: d.name,
					Field:   field,
					Message: fmt.Sprintf("endpoint %q declared more than once", ep.Name),
					Err:     ErrDuplicateEndpoint,
				})
			}
			endpoints[ep.Name] = true
		}
		if !validPort(ep.HostPort) {
			violations = append(violations, portViolation(d.name, field+".hostPort", ep.HostPort))
		}
		if !validPort(ep.TargetPort) {
			violations = append(violations, portViolation(d.name, field+".targetPort", ep.TargetPort))
		}
		if !ep.Scheme.Valid() {
			violations = append(violations, Violation{
				Service: d.name,
				Field:   field + ".scheme",
				Message: fmt.Sprintf("unknown scheme %q", ep.Scheme),
				Err:     ErrInvalidScheme,
			})
		}
	}

	keys := make(map[string]bool, len(d.environment))
	for _, kv := range d.environment {
		if kv.key == "" {
			violations = append(violations, Violation{
				Service: d.name,
				Field:   "environment",
				Message: "environment variable name is required",
				Err:     ErrEmptyName,
			})
			continue
		}
		if keys[kv.key] {
			violations = append(violations, Violation{
				Service: d.name,
				Field:   "environment." + kv.key,
				Message: fmt.Sprintf("environment variable %q declared more than once", kv.key),
				Err:     ErrDuplicateEnvironment,
			})
		}
		keys[kv.key] = true
	}

	return violations
}

func validPort(p int) bool {
	return p >= 1 && p <= MaxPort
}

func portViolation(service, field string, port int) Violation {
	return Violation{
		Service: service,
		Field:   field,
		Message: fmt.Sprintf("port %d out of range", port),
		Err:     ErrInvalidPort,
	}
}
