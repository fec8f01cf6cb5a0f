package compose

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/artpar/apphost/internal/core/topology"
	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// projectName is the name compose-go requires while loading in memory.
const projectName = "apphost"

// =============================================================================
// Parser Functions
// =============================================================================

// LoadInto parses Docker Compose YAML and declares every service on b.
// Services are declared in name order so the resulting start order is stable.
// Topology invariants (duplicate names, port ranges) are left to b.Build.
//
// Only the subset that maps onto a topology is accepted: image, ports and
// environment. Builds, secrets and configs are rejected.
func LoadInto(yamlContent string, b *topology.Builder) error {
	if strings.TrimSpace(yamlContent) == "" {
		return ErrEmptyInput
	}

	project, err := loadComposeSpec(yamlContent)
	if err != nil {
		return err
	}

	if err := checkUnsupportedFeatures(project); err != nil {
		return err
	}

	if len(project.Services) == 0 {
		return ErrNoServices
	}

	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := declareService(b, name, project.Services[name]); err != nil {
			return err
		}
	}

	return nil
}

// loadComposeSpec loads a compose spec using compose-go
func loadComposeSpec(yamlContent string) (*types.Project, error) {
	// Parse YAML into a map first
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName(projectName, false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// Don't resolve paths since we're in-memory
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		return nil, NewParseError("", err.Error(), ErrInvalidYAML)
	}

	return project, nil
}

// checkUnsupportedFeatures checks for features a topology cannot express
func checkUnsupportedFeatures(project *types.Project) error {
	if len(project.Secrets) > 0 {
		return NewParseError("secrets", "secrets are not supported", ErrUnsupportedFeature)
	}

	if len(project.Configs) > 0 {
		return NewParseError("configs", "configs are not supported", ErrUnsupportedFeature)
	}

	for name, svc := range project.Services {
		if svc.Build != nil {
			return NewParseError("services."+name+".build", "image builds are not supported", ErrUnsupportedFeature)
		}
		if svc.Extends != nil && svc.Extends.File != "" {
			return NewParseError("services."+name+".extends", "extends is not supported", ErrUnsupportedFeature)
		}
	}

	return nil
}

// declareService adds one compose service to the builder
func declareService(b *topology.Builder, name string, svc types.ServiceConfig) error {
	if svc.Image == "" {
		return NewParseError("services."+name, "service must have an image", ErrServiceNoImage)
	}

	h := b.AddService(name, svc.Image)

	for i, p := range svc.Ports {
		field := fmt.Sprintf("services.%s.ports[%d]", name, i)

		if p.Protocol != "" && p.Protocol != "tcp" {
			return NewParseError(field, "only tcp ports are supported", ErrServiceInvalidPort)
		}
		if p.HostIP != "" {
			return NewParseError(field, "host_ip is not supported; bind address comes from docker.host_ip", ErrUnsupportedFeature)
		}
		if p.Published == "" {
			return NewParseError(field, "published port is required", ErrPublishedPortRequired)
		}
		published, err := strconv.Atoi(p.Published)
		if err != nil {
			return NewParseError(field, fmt.Sprintf("published port %q must be a single port", p.Published), ErrServiceInvalidPort)
		}

		scheme := topology.SchemeHTTP
		if p.AppProtocol == string(topology.SchemeHTTPS) {
			scheme = topology.SchemeHTTPS
		}

		h.WithEndpoint(endpointName(p, scheme), published, int(p.Target), scheme)
	}

	keys := make([]string, 0, len(svc.Environment))
	for k := range svc.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		// Unresolved "KEY" entries without a value are skipped
		if v := svc.Environment[k]; v != nil {
			h.WithEnvironment(k, *v)
		}
	}

	return nil
}

// endpointName uses the port's declared name, falling back to the scheme
// with the target port appended.
func endpointName(p types.ServicePortConfig, scheme topology.Scheme) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%s-%d", scheme, p.Target)
}
