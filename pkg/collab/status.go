package collab

import (
	"fmt"
	"sync"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
)

// State is a connection status.
type State int

const (
	Idle State = iota
	Connecting
	Waiting
	Syncing
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Waiting:
		return "waiting"
	case Syncing:
		return "syncing"
	case Ready:
		return "ready"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is the current state. Message is set in the Error state.
type Status struct {
	State   State
	Message string
}

var transitions = map[State][]State{
	Idle:       {Connecting},
	Connecting: {Waiting, Syncing},
	Waiting:    {Syncing},
	Syncing:    {Ready},
	Error:      {Connecting},
}

func allowed(from, to State) bool {
	if to == Error || to == Idle {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StatusMachine tracks the connection status of a session. It is safe for
// concurrent use.
type StatusMachine struct {
	mu        sync.Mutex
	status    Status
	listeners []func(Status)
	logger    logger.Logger
}

// NewStatusMachine starts in Idle.
func NewStatusMachine(log logger.Logger) *StatusMachine {
	return &StatusMachine{logger: logger.OrNop(log)}
}

// Status returns the current status.
func (m *StatusMachine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// OnChange registers fn to be called after every transition.
func (m *StatusMachine) OnChange(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Transition moves to state to. Transitions outside the connection flow are
// refused with ErrIllegalTransition.
func (m *StatusMachine) Transition(to State) error {
	return m.set(Status{State: to})
}

// Fail moves to Error with a message meant for people.
func (m *StatusMachine) Fail(message string) error {
	return m.set(Status{State: Error, Message: message})
}

func (m *StatusMachine) set(next Status) error {
	m.mu.Lock()
	from := m.status.State
	if !allowed(from, next.State) {
		m.mu.Unlock()
		m.logger.Warn("illegal connection status transition", "from", from.String(), "to", next.State.String())
		return fmt.Errorf("%w: %s to %s", constants.ErrIllegalTransition, from, next.State)
	}
	if m.status == next {
		m.mu.Unlock()
		return nil
	}
	m.status = next
	fns := append([]func(Status){}, m.listeners...)
	m.mu.Unlock()

	m.logger.Debug("connection status changed", "from", from.String(), "to", next.State.String())
	for _, fn := range fns {
		fn(next)
	}
	return nil
}
