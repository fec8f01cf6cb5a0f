package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coredeployment "github.com/artpar/apphost/internal/core/deployment"
	"github.com/artpar/apphost/internal/core/topology"
)

// =============================================================================
// Pull Policy
// =============================================================================

// PullPolicy controls when images are pulled before a container is created.
type PullPolicy string

const (
	PullMissing PullPolicy = "missing" // Pull only when the image is not present locally
	PullAlways  PullPolicy = "always"
	PullNever   PullPolicy = "never"
)

// ParsePullPolicy validates a configured pull policy. Empty means missing.
func ParsePullPolicy(s string) (PullPolicy, error) {
	switch PullPolicy(s) {
	case "", PullMissing:
		return PullMissing, nil
	case PullAlways, PullNever:
		return PullPolicy(s), nil
	}
	return "", fmt.Errorf("unknown pull policy %q (want missing, always or never)", s)
}

// =============================================================================
// Orchestrator - Runs Topology Services as Containers
// =============================================================================

// OrchestratorConfig configures how services become containers.
type OrchestratorConfig struct {
	RunID        string        // Identifies this host run in names and labels
	PullPolicy   PullPolicy    // Defaults to PullMissing
	StopTimeout  time.Duration // Grace period before the daemon kills a container
	RemoveOnStop bool          // Remove containers after stopping them
	HostIP       string        // Interface endpoints are published on; "" for all
}

// Orchestrator provisions and stops service containers using Docker.
type Orchestrator struct {
	docker Client
	logger *slog.Logger
	config OrchestratorConfig
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(docker Client, logger *slog.Logger, cfg OrchestratorConfig) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PullPolicy == "" {
		cfg.PullPolicy = PullMissing
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	return &Orchestrator{
		docker: docker,
		logger: logger.With("run_id", coredeployment.ShortID(cfg.RunID)),
		config: cfg,
	}
}

// =============================================================================
// Provision
// =============================================================================

// Provision creates and starts the container for one service.
// A container that was created but failed to start is removed again.
func (o *Orchestrator) Provision(ctx context.Context, svc topology.ServiceSpec) (coredeployment.Instance, error) {
	plan := coredeployment.BuildContainerPlan(coredeployment.BuildContainerPlanParams{
		RunID:   o.config.RunID,
		Service: svc,
		HostIP:  o.config.HostIP,
	})

	o.logger.Info("provisioning service",
		"service", svc.Name,
		"image", plan.Image,
		"container", plan.Name,
		"endpoints", len(plan.Ports),
	)

	if err := o.ensureImage(ctx, plan.Image); err != nil {
		return coredeployment.Instance{}, err
	}

	containerID, err := o.docker.CreateContainer(ctx, o.buildContainerSpec(plan))
	if err != nil {
		// A cancelled request may still have created the container.
		if ctx.Err() != nil {
			o.removeUnstarted(ctx, plan.Name)
		}
		return coredeployment.Instance{}, fmt.Errorf("failed to create container %s: %w", plan.Name, err)
	}
	o.logger.Debug("created container", "service", svc.Name, "container_id", shortContainerID(containerID))

	if err := o.docker.StartContainer(ctx, containerID); err != nil && !errors.Is(err, ErrContainerAlreadyRunning) {
		o.removeUnstarted(ctx, containerID)
		return coredeployment.Instance{}, fmt.Errorf("failed to start container %s: %w", plan.Name, err)
	}

	instance := coredeployment.Instance{
		Service:       svc.Name,
		ContainerID:   containerID,
		ContainerName: plan.Name,
		Image:         plan.Image,
		Ports:         plan.Ports,
	}

	if info, err := o.docker.InspectContainer(ctx, containerID); err == nil && info.StartedAt != nil {
		instance.StartedAt = *info.StartedAt
	}

	o.logger.Info("service started",
		"service", svc.Name,
		"container_id", shortContainerID(containerID),
	)
	return instance, nil
}

// removeUnstarted force-removes a container that never became part of the
// run. It ignores cancellation of ctx, which is usually why provisioning
// stopped.
func (o *Orchestrator) removeUnstarted(ctx context.Context, ref string) {
	cleanupCtx := context.WithoutCancel(ctx)
	err := o.docker.RemoveContainer(cleanupCtx, ref, RemoveOptions{Force: true})
	if err != nil && !errors.Is(err, ErrContainerNotFound) {
		o.logger.Warn("failed to remove unstarted container", "container", ref, "error", err)
	}
}

// ensureImage applies the pull policy to an image reference.
func (o *Orchestrator) ensureImage(ctx context.Context, image string) error {
	switch o.config.PullPolicy {
	case PullNever:
		return nil
	case PullAlways:
		o.logger.Info("pulling image", "image", image)
		if err := o.docker.PullImage(ctx, image); err != nil {
			return fmt.Errorf("failed to pull image %s: %w", image, err)
		}
		return nil
	}

	exists, err := o.docker.ImageExists(ctx, image)
	if err != nil {
		o.logger.Warn("failed to check image, pulling", "image", image, "error", err)
	}
	if exists {
		return nil
	}

	o.logger.Info("pulling image", "image", image)
	if err := o.docker.PullImage(ctx, image); err != nil {
		// Locally built images cannot be pulled; creation reports the real problem.
		o.logger.Warn("failed to pull image, trying anyway", "image", image, "error", err)
	}
	return nil
}

// buildContainerSpec converts a pure container plan to a Docker ContainerSpec.
func (o *Orchestrator) buildContainerSpec(plan coredeployment.ContainerPlan) ContainerSpec {
	spec := ContainerSpec{
		Name:   plan.Name,
		Image:  plan.Image,
		Env:    plan.Env,
		Labels: plan.Labels,
	}
	for _, p := range plan.Ports {
		spec.Ports = append(spec.Ports, PortBinding{
			ContainerPort: p.ContainerPort,
			HostPort:      p.HostPort,
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}
	return spec
}

// =============================================================================
// Stop
// =============================================================================

// Stop stops the container of a provisioned service and, when configured,
// removes it. A container that already exited is not an error.
func (o *Orchestrator) Stop(ctx context.Context, instance coredeployment.Instance) error {
	o.logger.Info("stopping service",
		"service", instance.Service,
		"container_id", shortContainerID(instance.ContainerID),
	)

	timeout := o.config.StopTimeout
	if err := o.docker.StopContainer(ctx, instance.ContainerID, &timeout); err != nil && !errors.Is(err, ErrContainerNotRunning) {
		return fmt.Errorf("failed to stop container %s: %w", instance.ContainerName, err)
	}

	if o.config.RemoveOnStop {
		if err := o.docker.RemoveContainer(ctx, instance.ContainerID, RemoveOptions{Force: true}); err != nil && !errors.Is(err, ErrContainerNotFound) {
			return fmt.Errorf("failed to remove container %s: %w", instance.ContainerName, err)
		}
	}

	o.logger.Info("service stopped", "service", instance.Service)
	return nil
}

// shortContainerID truncates a container ID for logging.
func shortContainerID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
