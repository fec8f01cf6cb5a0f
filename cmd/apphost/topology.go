package main

import (
	"fmt"
	"os"

	"github.com/artpar/apphost/internal/core/compose"
	"github.com/artpar/apphost/internal/core/topology"
)

// declareTopology declares the services this host runs.
func declareTopology() *topology.Builder {
	b := topology.NewBuilder()

	b.AddService("cicd", "cicd").
		WithHTTPEndpoint(8085, 8085, "http").
		WithEnvironment("ASPNETCORE_URLS", "http://0.0.0.0:8085")

	return b
}

// loadTopology builds the topology from the configured compose file, or from
// the built-in declaration when none is set.
func loadTopology(cfg *Config) (*topology.Topology, error) {
	b := declareTopology()

	if path := cfg.Topology.ComposeFile; path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read compose file: %w", err)
		}
		b = topology.NewBuilder()
		if err := compose.LoadInto(string(content), b); err != nil {
			return nil, fmt.Errorf("load compose file %s: %w", path, err)
		}
	}

	return b.Build()
}
