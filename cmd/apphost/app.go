package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/artpar/apphost/internal/core/topology"
	"github.com/artpar/apphost/internal/shell/api"
	"github.com/artpar/apphost/internal/shell/docker"
	"github.com/artpar/apphost/internal/shell/host"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess           = 0
	ExitConfigError       = 1
	ExitDockerError       = 2
	ExitProvisioningError = 3
	ExitShutdownError     = 4
	ExitDashboardError    = 5
)

// =============================================================================
// App
// =============================================================================

// App wires a topology to Docker and runs it until shutdown.
type App struct {
	config    *Config
	topology  *topology.Topology
	docker    docker.Client
	runner    *host.Runner
	dashboard *http.Server
	runID     string
	logger    *slog.Logger
}

// NewApp connects to Docker and prepares the runner for topo.
func NewApp(ctx context.Context, cfg *Config, topo *topology.Topology, logger *slog.Logger) (*App, error) {
	d, err := docker.NewDockerClient(ctx, cfg.Docker.Host)
	if err != nil {
		return nil, &AppError{
			Op:       "NewApp",
			Err:      err,
			ExitCode: ExitDockerError,
		}
	}

	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, &AppError{
			Op:       "NewApp",
			Err:      err,
			ExitCode: ExitDockerError,
		}
	}

	return newApp(cfg, topo, d, logger)
}

// newApp builds the app around an existing Docker client.
func newApp(cfg *Config, topo *topology.Topology, d docker.Client, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := docker.ParsePullPolicy(cfg.Docker.PullPolicy)
	if err != nil {
		return nil, &AppError{
			Op:       "NewApp",
			Err:      err,
			ExitCode: ExitConfigError,
		}
	}

	runID := uuid.NewString()
	orchestrator := docker.NewOrchestrator(d, logger, docker.OrchestratorConfig{
		RunID:        runID,
		PullPolicy:   policy,
		StopTimeout:  cfg.Docker.StopTimeout,
		RemoveOnStop: cfg.Docker.RemoveOnStop,
		HostIP:       cfg.Docker.HostIP,
	})
	runner := host.NewRunner(orchestrator, logger, host.Config{})

	var dashboard *http.Server
	if cfg.Dashboard.Enabled {
		handler := api.NewHandler(topo, runner, logger, "")
		dashboard = &http.Server{
			Addr:         cfg.Dashboard.Address(),
			Handler:      handler.Routes(),
			ReadTimeout:  cfg.Dashboard.ReadTimeout,
			WriteTimeout: cfg.Dashboard.WriteTimeout,
		}
	}

	return &App{
		config:    cfg,
		topology:  topo,
		docker:    d,
		runner:    runner,
		dashboard: dashboard,
		runID:     runID,
		logger:    logger,
	}, nil
}

// Start runs the topology and blocks until shutdown completes.
func (a *App) Start(ctx context.Context) error {
	defer a.closeDocker()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	if a.dashboard != nil {
		go func() {
			a.logger.Info("starting dashboard", "address", a.dashboard.Addr)
			if err := a.dashboard.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	a.logger.Info("running topology", "run_id", a.runID, "services", a.topology.Names())

	runDone := make(chan error, 1)
	go func() {
		runDone <- a.runner.Run(runCtx, a.topology)
	}()

	var runErr, dashErr error
	select {
	case runErr = <-runDone:
	case dashErr = <-errCh:
		a.logger.Error("dashboard failed, stopping services", "error", dashErr)
		cancel()
		runErr = <-runDone
	}

	a.shutdownDashboard(ctx)

	if dashErr != nil {
		return &AppError{
			Op:       "Start",
			Err:      errors.Join(dashErr, runErr),
			ExitCode: ExitDashboardError,
		}
	}
	if runErr != nil {
		return &AppError{
			Op:       "Start",
			Err:      runErr,
			ExitCode: exitCodeFor(runErr),
		}
	}
	return nil
}

func (a *App) shutdownDashboard(ctx context.Context) {
	if a.dashboard == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.Dashboard.ShutdownTimeout)
	defer cancel()

	if err := a.dashboard.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("dashboard shutdown error", "error", err)
	}
}

func (a *App) closeDocker() {
	if err := a.docker.Close(); err != nil {
		a.logger.Error("Docker client close error", "error", err)
	}
}

// exitCodeFor maps a runner error to the process exit code.
func exitCodeFor(err error) int {
	var provErr *host.ProvisioningError
	var shutdownErr *host.ShutdownError
	var validationErr *topology.ValidationError

	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &provErr):
		return ExitProvisioningError
	case errors.As(err, &shutdownErr):
		return ExitShutdownError
	case errors.As(err, &validationErr), errors.Is(err, host.ErrNilTopology):
		return ExitConfigError
	case errors.Is(err, docker.ErrConnectionFailed):
		return ExitDockerError
	}
	return ExitConfigError
}

// =============================================================================
// App Error
// =============================================================================

// AppError carries the exit code main should use for a failure.
type AppError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *AppError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}
