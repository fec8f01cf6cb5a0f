package topology

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrEmptyName            = errors.New("name must not be empty")
	ErrEmptyImage           = errors.New("image must not be empty")
	ErrDuplicateService     = errors.New("duplicate service name")
	ErrDuplicateEndpoint    = errors.New("duplicate endpoint name")
	ErrDuplicateEnvironment = errors.New("duplicate environment variable")
	ErrInvalidPort          = errors.New("port must be between 1 and 65535")
	ErrInvalidScheme        = errors.New("scheme must be http or https")
)

// Violation is a single broken topology invariant.
type Violation struct {
	Service string // Service the violation belongs to
	Field   string // e.g., "endpoints.http.hostPort"
	Message string
	Err     error
}

func (v Violation) Error() string {
	switch {
	case v.Service != "" && v.Field != "":
		return fmt.Sprintf("services.%s.%s: %s", v.Service, v.Field, v.Message)
	case v.Service != "":
		return fmt.Sprintf("services.%s: %s", v.Service, v.Message)
	default:
		return v.Message
	}
}

func (v Violation) Unwrap() error {
	return v.Err
}

// ValidationError is returned by Build when the declared topology breaks
// one or more invariants. Every violation found is reported.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "invalid topology: " + e.Violations[0].Error()
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Error())
	}
	return fmt.Sprintf("invalid topology (%d violations): %s", len(e.Violations), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual violations so errors.Is matches their sentinels.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Violations))
	for _, v := range e.Violations {
		errs = append(errs, v)
	}
	return errs
}
