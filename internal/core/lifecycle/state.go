// Package lifecycle defines the states a host run moves through.
// This is part of the Functional Core - all functions are pure with no I/O.
package lifecycle

import "errors"

// =============================================================================
// Errors
// =============================================================================

var ErrInvalidTransition = errors.New("invalid state transition")

// =============================================================================
// State
// =============================================================================

// State is the lifecycle state of a host run.
type State string

const (
	StateCreated      State = "created"
	StateBuilding     State = "building"
	StateRunning      State = "running"
	StateShuttingDown State = "shutting_down"
	StateStopped      State = "stopped"
	StateFailed       State = "failed"
)

// validTransitions defines the allowed state transitions.
// A run only moves forward; there is no way back into running. Shutdown may
// be requested while services are still being started.
var validTransitions = map[State][]State{
	StateCreated:      {StateBuilding},
	StateBuilding:     {StateRunning, StateShuttingDown, StateFailed},
	StateRunning:      {StateShuttingDown, StateFailed},
	StateShuttingDown: {StateStopped, StateFailed},
	StateStopped:      {}, // Terminal state
	StateFailed:       {}, // Terminal state
}

// ValidateTransition checks if a state transition is valid.
func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return ErrInvalidTransition
}

// IsTerminal reports whether no further transition is possible from s.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// Machine tracks the current state and rejects invalid transitions.
// It is not safe for concurrent use; callers guard it.
type Machine struct {
	current State
}

// NewMachine returns a machine in the created state.
func NewMachine() *Machine {
	return &Machine{current: StateCreated}
}

// Current returns the current state.
func (m *Machine) Current() State {
	return m.current
}

// Transition moves to the given state if allowed.
func (m *Machine) Transition(to State) error {
	if err := ValidateTransition(m.current, to); err != nil {
		return err
	}
	m.current = to
	return nil
}

// Fail moves to the failed state from any non-terminal state.
func (m *Machine) Fail() error {
	if m.current == StateCreated {
		m.current = StateFailed
		return nil
	}
	return m.Transition(StateFailed)
}
