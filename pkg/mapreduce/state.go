package mapreduce

import (
	"fmt"
	"sync"
)

type State string

const (
	StateInit       State = "init"
	StateRetrieving State = "retrieving"
	StateMapping    State = "mapping"
	StateReducing   State = "reducing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// mapping -> failed is only taken for run-level aborts; per-document
// failures never leave the mapping state early.
var allowedTransitions = map[State]map[State]struct{}{
	StateInit: {
		StateRetrieving: {},
	},
	StateRetrieving: {
		StateMapping:  {},
		StateReducing: {},
		StateFailed:   {},
	},
	StateMapping: {
		StateReducing: {},
		StateFailed:   {},
	},
	StateReducing: {
		StateDone:   {},
		StateFailed: {},
	},
	StateDone:   {},
	StateFailed: {},
}

func ValidateState(state State) error {
	if _, ok := allowedTransitions[state]; !ok {
		return fmt.Errorf("invalid run state: %q", state)
	}
	return nil
}

func ValidateTransition(from, to State) error {
	if err := ValidateState(from); err != nil {
		return err
	}
	if err := ValidateState(to); err != nil {
		return err
	}
	if _, ok := allowedTransitions[from][to]; !ok {
		return fmt.Errorf("%w: invalid run transition: %s -> %s", ErrInvariantViolation, from, to)
	}
	return nil
}

// IsTerminal reports whether no transition leaves state.
func IsTerminal(state State) bool {
	return len(allowedTransitions[state]) == 0
}

// stateMachine tracks the current state of one run and records every state
// visited, in order.
type stateMachine struct {
	mu      sync.Mutex
	current State
	history []State
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateInit, history: []State{StateInit}}
}

func (m *stateMachine) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ValidateTransition(m.current, to); err != nil {
		return err
	}
	m.current = to
	m.history = append(m.history, to)
	return nil
}

func (m *stateMachine) state() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *stateMachine) visited() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}
