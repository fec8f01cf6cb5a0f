// Package host enacts a topology against a container runtime and supervises
// it until shutdown is requested.
package host

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/artpar/apphost/internal/core/deployment"
	"github.com/artpar/apphost/internal/core/lifecycle"
	"github.com/artpar/apphost/internal/core/topology"
)

// Runtime starts and stops service containers.
type Runtime interface {
	Provision(ctx context.Context, svc topology.ServiceSpec) (deployment.Instance, error)
	Stop(ctx context.Context, instance deployment.Instance) error
}

// Config configures a Runner.
type Config struct {
	// Signals that request shutdown. Defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	State     lifecycle.State       `json:"state"`
	Services  []string              `json:"services"`
	Instances []deployment.Instance `json:"instances"`
}

// Runner drives one topology through its lifecycle. A Runner runs once.
type Runner struct {
	runtime Runtime
	logger  *slog.Logger
	signals []os.Signal

	mu        sync.RWMutex
	machine   *lifecycle.Machine
	services  []string
	instances []deployment.Instance
	started   bool
	running   chan struct{}
}

// NewRunner creates a runner for the given runtime.
func NewRunner(runtime Runtime, logger *slog.Logger, cfg Config) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	signals := cfg.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	return &Runner{
		runtime: runtime,
		logger:  logger,
		signals: signals,
		machine: lifecycle.NewMachine(),
		running: make(chan struct{}),
	}
}

// Running is closed once every service has started.
func (r *Runner) Running() <-chan struct{} {
	return r.running
}

// State returns the current lifecycle state.
func (r *Runner) State() lifecycle.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.machine.Current()
}

// Snapshot returns the current state and started instances.
func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		State:     r.machine.Current(),
		Services:  slices.Clone(r.services),
		Instances: slices.Clone(r.instances),
	}
}

// =============================================================================
// Run
// =============================================================================

// Run starts every service of topo in declaration order and blocks until a
// shutdown signal arrives or ctx is cancelled. It then stops each started
// service exactly once.
//
// Run returns nil after an orderly shutdown, a *ProvisioningError when a
// service could not be started (later services are never attempted), or a
// *ShutdownError when some service did not stop cleanly.
func (r *Runner) Run(ctx context.Context, topo *topology.Topology) error {
	if err := r.begin(topo); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, r.signals...)
	defer signal.Stop(sigCh)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-sigCh:
			r.logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-runCtx.Done():
		}
	}()

	// Stopping must outlive the cancelled run context.
	stopCtx := context.WithoutCancel(ctx)

	for _, svc := range topo.Services() {
		if runCtx.Err() != nil {
			r.logger.Info("shutdown requested while starting services")
			return r.shutdown(stopCtx)
		}

		instance, err := r.runtime.Provision(runCtx, svc)
		if err != nil {
			if runCtx.Err() != nil {
				r.logger.Warn("shutdown requested while starting service", "service", svc.Name, "error", err)
				return r.shutdown(stopCtx)
			}
			return r.fail(stopCtx, &ProvisioningError{Service: svc.Name, Err: err})
		}

		r.mu.Lock()
		r.instances = append(r.instances, instance)
		r.mu.Unlock()
	}

	if err := r.transition(lifecycle.StateRunning); err != nil {
		return err
	}
	close(r.running)
	r.logger.Info("all services running", "services", topo.Len())

	<-runCtx.Done()
	if ctx.Err() != nil {
		r.logger.Info("context cancelled")
	}

	return r.shutdown(stopCtx)
}

// begin moves a fresh runner into the building state.
func (r *Runner) begin(topo *topology.Topology) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true

	if err := r.machine.Transition(lifecycle.StateBuilding); err != nil {
		return err
	}
	if topo == nil {
		_ = r.machine.Fail()
		return ErrNilTopology
	}
	r.services = topo.Names()

	r.logger.Info("starting topology", "services", r.services)
	return nil
}

func (r *Runner) transition(to lifecycle.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.Transition(to)
}

// fail cleans up after a provisioning failure and ends the run as failed.
func (r *Runner) fail(ctx context.Context, provErr *ProvisioningError) error {
	r.logger.Error("failed to start service", "service", provErr.Service, "error", provErr.Err)

	cleanupErr := r.stopAll(ctx)

	r.mu.Lock()
	_ = r.machine.Fail()
	r.mu.Unlock()

	if cleanupErr != nil {
		return errors.Join(provErr, cleanupErr)
	}
	return provErr
}

// shutdown stops all started services and ends the run.
func (r *Runner) shutdown(ctx context.Context) error {
	if err := r.transition(lifecycle.StateShuttingDown); err != nil {
		return err
	}
	r.logger.Info("initiating graceful shutdown")

	if err := r.stopAll(ctx); err != nil {
		r.mu.Lock()
		_ = r.machine.Fail()
		r.mu.Unlock()
		return err
	}

	if err := r.transition(lifecycle.StateStopped); err != nil {
		return err
	}
	r.logger.Info("shutdown complete")
	return nil
}

// stopAll stops started services in reverse start order. Every instance is
// handed to the runtime once, whether or not stopping it succeeds.
func (r *Runner) stopAll(ctx context.Context) error {
	r.mu.Lock()
	instances := r.instances
	r.instances = nil
	r.mu.Unlock()

	var failures []StopFailure
	for i := len(instances) - 1; i >= 0; i-- {
		inst := instances[i]
		if err := r.runtime.Stop(ctx, inst); err != nil {
			r.logger.Error("failed to stop service", "service", inst.Service, "error", err)
			failures = append(failures, StopFailure{Service: inst.Service, Err: err})
		}
	}

	if len(failures) > 0 {
		return &ShutdownError{Failures: failures}
	}
	return nil
}
