package host

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNilTopology    = errors.New("topology is nil")
	ErrAlreadyStarted = errors.New("runner has already been started")
)

// ProvisioningError reports a service the runtime could not start.
// It is fatal to the run.
type ProvisioningError struct {
	Service string
	Err     error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision service %s: %v", e.Service, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// StopFailure is a single service that did not stop cleanly.
type StopFailure struct {
	Service string
	Err     error
}

func (f StopFailure) Error() string {
	return fmt.Sprintf("stop service %s: %v", f.Service, f.Err)
}

func (f StopFailure) Unwrap() error {
	return f.Err
}

// ShutdownError collects every service that failed to stop. The remaining
// services are still stopped when one fails.
type ShutdownError struct {
	Failures []StopFailure
}

func (e *ShutdownError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return "shutdown: " + strings.Join(msgs, "; ")
}

func (e *ShutdownError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
