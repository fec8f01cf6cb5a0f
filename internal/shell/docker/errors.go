package docker

import (
	"errors"
	"fmt"
)

// Failure kinds the orchestrator and callers branch on.
var (
	ErrContainerNotFound       = errors.New("container not found")
	ErrContainerAlreadyExists  = errors.New("container already exists")
	ErrContainerNotRunning     = errors.New("container is not running")
	ErrContainerAlreadyRunning = errors.New("container is already running")
	ErrPortAlreadyAllocated    = errors.New("port is already allocated")

	ErrImageNotFound   = errors.New("image not found")
	ErrImagePullFailed = errors.New("image pull failed")

	ErrConnectionFailed = errors.New("docker connection failed")
)

// DockerError is a failed Docker Engine call. Kind classifies the failure
// with one of the sentinels above; Err is the daemon's own error. Either may
// be nil, and errors.Is matches both.
type DockerError struct {
	Op   string // Client method, e.g. "StartContainer"
	Ref  string // Container ID or name, or image reference
	Kind error
	Err  error
}

func (e *DockerError) Error() string {
	prefix := e.Op
	if e.Ref != "" {
		prefix += " " + e.Ref
	}

	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", prefix, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix + ": unknown error"
}

func (e *DockerError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewDockerError creates a DockerError.
func NewDockerError(op, ref string, kind, err error) *DockerError {
	return &DockerError{Op: op, Ref: ref, Kind: kind, Err: err}
}
