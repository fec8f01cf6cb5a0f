// Package topology declares the services a host runs.
//
// This package is part of the functional core: it accumulates declarations
// in memory and validates them, with no I/O. The imperative shell
// (internal/shell/host) consumes the resulting Topology.
//
// # Usage
//
//	b := topology.NewBuilder()
//	b.AddService("web", "nginx").
//		WithHTTPEndpoint(8080, 80, "http").
//		WithEnvironment("LOG_LEVEL", "info")
//	topo, err := b.Build()
//
// Build reports every broken invariant at once in a *ValidationError.
package topology
