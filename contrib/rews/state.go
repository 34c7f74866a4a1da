package rews

import "fmt"

// State is the lifecycle of a Relay.
type State int

const (
	StateUnknown State = iota
	StateDisconnected
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	}
	return "InvalidState"
}

var transitions = map[State][]State{
	StateDisconnected: {StateConnecting, StateDisconnected, StateClosing},
	StateConnecting:   {StateConnected, StateDisconnected},
	// Connected goes back to Connecting when a lost connection is replaced.
	StateConnected: {StateConnecting, StateClosing, StateDisconnected},
	StateClosing:   {StateClosed},
}

func (s State) validateTransitionTo(to State) error {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("invalid state transition from %v to %v", s, to)
}
