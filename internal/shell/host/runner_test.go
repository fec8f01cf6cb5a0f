package host

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/apphost/internal/core/deployment"
	"github.com/artpar/apphost/internal/core/lifecycle"
	"github.com/artpar/apphost/internal/core/topology"
)

// fakeRuntime records provision and stop calls.
type fakeRuntime struct {
	mu           sync.Mutex
	calls        []string
	provisionErr map[string]error
	stopErr      map[string]error
	// blockOn makes Provision for the named service wait for ctx.
	blockOn string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		provisionErr: make(map[string]error),
		stopErr:      make(map[string]error),
	}
}

func (f *fakeRuntime) Provision(ctx context.Context, svc topology.ServiceSpec) (deployment.Instance, error) {
	f.record("provision:" + svc.Name)

	if svc.Name == f.blockOn {
		<-ctx.Done()
		return deployment.Instance{}, ctx.Err()
	}
	if err := f.provisionErr[svc.Name]; err != nil {
		return deployment.Instance{}, err
	}
	return deployment.Instance{
		Service:       svc.Name,
		ContainerID:   "id-" + svc.Name,
		ContainerName: svc.Name + "-test",
		Image:         svc.Image,
		StartedAt:     time.Now(),
	}, nil
}

func (f *fakeRuntime) Stop(ctx context.Context, inst deployment.Instance) error {
	f.record("stop:" + inst.Service)
	return f.stopErr[inst.Service]
}

func (f *fakeRuntime) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRuntime) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func buildTopology(t *testing.T, names ...string) *topology.Topology {
	t.Helper()
	b := topology.NewBuilder()
	for i, name := range names {
		b.AddService(name, name).
			WithHTTPEndpoint(8080+i, 80, "http")
	}
	topo, err := b.Build()
	require.NoError(t, err)
	return topo
}

func cicdTopology(t *testing.T) *topology.Topology {
	t.Helper()
	b := topology.NewBuilder()
	b.AddService("cicd", "cicd").
		WithHTTPEndpoint(8085, 8085, "http").
		WithEnvironment("ASPNETCORE_URLS", "http://0.0.0.0:8085")
	topo, err := b.Build()
	require.NoError(t, err)
	return topo
}

type runResult struct {
	err error
}

func startRun(ctx context.Context, r *Runner, topo *topology.Topology) <-chan runResult {
	done := make(chan runResult, 1)
	go func() {
		done <- runResult{err: r.Run(ctx, topo)}
	}()
	return done
}

func waitRunning(t *testing.T, r *Runner) {
	t.Helper()
	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not reach running state")
	}
}

func waitDone(t *testing.T, done <-chan runResult) error {
	t.Helper()
	select {
	case res := <-done:
		return res.err
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not return")
		return nil
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRunner_RunThenShutdown(t *testing.T) {
	rt := newFakeRuntime()
	r := NewRunner(rt, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(ctx, r, cicdTopology(t))

	waitRunning(t, r)
	assert.Equal(t, lifecycle.StateRunning, r.State())

	snap := r.Snapshot()
	assert.Equal(t, []string{"cicd"}, snap.Services)
	require.Len(t, snap.Instances, 1)
	assert.Equal(t, "id-cicd", snap.Instances[0].ContainerID)

	cancel()
	err := waitDone(t, done)

	require.NoError(t, err)
	assert.Equal(t, []string{"provision:cicd", "stop:cicd"}, rt.Calls())
	assert.Equal(t, lifecycle.StateStopped, r.State())
	assert.Empty(t, r.Snapshot().Instances)
}

func TestRunner_StopsInReverseOrder(t *testing.T) {
	rt := newFakeRuntime()
	r := NewRunner(rt, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(ctx, r, buildTopology(t, "db", "api", "web"))

	waitRunning(t, r)
	cancel()
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, []string{
		"provision:db", "provision:api", "provision:web",
		"stop:web", "stop:api", "stop:db",
	}, rt.Calls())
}

func TestRunner_ProvisioningFailure(t *testing.T) {
	rt := newFakeRuntime()
	rt.provisionErr["api"] = errors.New("image not found")
	r := NewRunner(rt, nil, Config{})

	err := r.Run(context.Background(), buildTopology(t, "db", "api", "web"))

	var provErr *ProvisioningError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "api", provErr.Service)
	assert.Contains(t, err.Error(), "image not found")

	// web is never attempted and db is cleaned up.
	assert.Equal(t, []string{"provision:db", "provision:api", "stop:db"}, rt.Calls())
	assert.Equal(t, lifecycle.StateFailed, r.State())
}

func TestRunner_ProvisioningFailureWithCleanupFailure(t *testing.T) {
	rt := newFakeRuntime()
	rt.provisionErr["api"] = errors.New("boom")
	rt.stopErr["db"] = errors.New("stuck")
	r := NewRunner(rt, nil, Config{})

	err := r.Run(context.Background(), buildTopology(t, "db", "api"))

	var provErr *ProvisioningError
	require.ErrorAs(t, err, &provErr)
	var shutdownErr *ShutdownError
	require.ErrorAs(t, err, &shutdownErr)
	assert.Len(t, shutdownErr.Failures, 1)
	assert.Equal(t, lifecycle.StateFailed, r.State())
}

func TestRunner_StopFailureContinues(t *testing.T) {
	rt := newFakeRuntime()
	stuck := errors.New("container stuck")
	rt.stopErr["api"] = stuck
	r := NewRunner(rt, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(ctx, r, buildTopology(t, "db", "api", "web"))

	waitRunning(t, r)
	cancel()
	err := waitDone(t, done)

	var shutdownErr *ShutdownError
	require.ErrorAs(t, err, &shutdownErr)
	require.Len(t, shutdownErr.Failures, 1)
	assert.Equal(t, "api", shutdownErr.Failures[0].Service)
	assert.ErrorIs(t, err, stuck)

	assert.Equal(t, []string{
		"provision:db", "provision:api", "provision:web",
		"stop:web", "stop:api", "stop:db",
	}, rt.Calls())
	assert.Equal(t, lifecycle.StateFailed, r.State())
}

func TestRunner_ShutdownWhileStarting(t *testing.T) {
	rt := newFakeRuntime()
	rt.blockOn = "api"
	r := NewRunner(rt, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(ctx, r, buildTopology(t, "db", "api", "web"))

	require.Eventually(t, func() bool {
		return len(rt.Calls()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, []string{"provision:db", "provision:api", "stop:db"}, rt.Calls())
	assert.Equal(t, lifecycle.StateStopped, r.State())
}

func TestRunner_ShutdownWhileStartingLogsProvisionError(t *testing.T) {
	rt := newFakeRuntime()
	rt.blockOn = "cicd"
	var buf bytes.Buffer
	r := NewRunner(rt, slog.New(slog.NewTextHandler(&buf, nil)), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(ctx, r, cicdTopology(t))

	require.Eventually(t, func() bool {
		return len(rt.Calls()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, waitDone(t, done))

	out := buf.String()
	assert.Contains(t, out, `level=WARN msg="shutdown requested while starting service"`)
	assert.Contains(t, out, "service=cicd")
	assert.Contains(t, out, `error="context canceled"`)
}

func TestRunner_EmptyTopology(t *testing.T) {
	rt := newFakeRuntime()
	r := NewRunner(rt, nil, Config{})

	topo, err := topology.NewBuilder().Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(ctx, r, topo)

	waitRunning(t, r)
	cancel()
	require.NoError(t, waitDone(t, done))
	assert.Empty(t, rt.Calls())
}

func TestRunner_NilTopology(t *testing.T) {
	r := NewRunner(newFakeRuntime(), nil, Config{})

	err := r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilTopology)
	assert.Equal(t, lifecycle.StateFailed, r.State())
}

func TestRunner_RunOnce(t *testing.T) {
	rt := newFakeRuntime()
	r := NewRunner(rt, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(ctx, r, cicdTopology(t))
	waitRunning(t, r)
	cancel()
	require.NoError(t, waitDone(t, done))

	err := r.Run(context.Background(), cicdTopology(t))
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	// No second start attempt.
	assert.Equal(t, []string{"provision:cicd", "stop:cicd"}, rt.Calls())
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	rt := newFakeRuntime()
	r := NewRunner(rt, nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, r.Run(ctx, cicdTopology(t)))
	assert.Empty(t, rt.Calls())
	assert.Equal(t, lifecycle.StateStopped, r.State())
}

// =============================================================================
// Error Tests
// =============================================================================

func TestShutdownError(t *testing.T) {
	a := errors.New("a failed")
	b := errors.New("b failed")
	err := &ShutdownError{Failures: []StopFailure{
		{Service: "a", Err: a},
		{Service: "b", Err: b},
	}}

	assert.Equal(t, "shutdown: stop service a: a failed; stop service b: b failed", err.Error())
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
}

func TestProvisioningError(t *testing.T) {
	inner := errors.New("no such image")
	err := &ProvisioningError{Service: "cicd", Err: inner}

	assert.Equal(t, "provision service cicd: no such image", err.Error())
	assert.ErrorIs(t, err, inner)
}
