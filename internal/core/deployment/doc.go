// Package deployment provides pure functions for container planning.
//
// This package contains the functional core logic for transforming topology
// service declarations into Docker execution plans. All functions are pure
// (no I/O, no side effects).
//
// # Functions
//
//   - Naming: Generate consistent resource names (ContainerName, ShortID)
//   - Images: Normalize image references (NormalizeImage)
//   - Container: Build container plans from service specs (BuildContainerPlan)
//
// # Usage
//
// The imperative shell (internal/shell/docker) uses these pure functions
// to plan containers, then executes the plans via the Docker API.
//
//	plan := deployment.BuildContainerPlan(deployment.BuildContainerPlanParams{
//	    RunID:   runID,
//	    Service: svc,
//	})
package deployment
