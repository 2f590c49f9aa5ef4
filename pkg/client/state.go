// Package client provides a managed WebSocket connection to a voicelink
// server: it performs the auth handshake, reconnects with exponential
// backoff when the link drops, and surfaces decoded wire messages.
package client

import "fmt"

// State is the connection lifecycle state.
type State int

const (
	// StateDisconnected is the initial state, before Connect is called or
	// after a clean Disconnect.
	StateDisconnected State = iota

	// StateConnecting covers dialing and the auth handshake of the first
	// connection attempt.
	StateConnecting

	// StateConnected means the handshake completed and the session is live.
	StateConnected

	// StateReconnecting means the link dropped and a retry cycle is running.
	StateReconnecting

	// StateFailed is terminal: every reconnection attempt was exhausted, or
	// the server rejected the credentials outright.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a state snapshot. Attempt is non-zero only while reconnecting,
// counting from 1.
type Status struct {
	State   State
	Attempt int
}

func (s Status) String() string {
	if s.State == StateReconnecting {
		return fmt.Sprintf("%s(attempt=%d)", s.State, s.Attempt)
	}
	return s.State.String()
}
