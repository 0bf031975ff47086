package dorabridge

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConnected is returned by Connect on a connected bridge.
	ErrAlreadyConnected = errors.New("dorabridge: already connected")

	// ErrNotConnected is returned by Send unless the bridge is connected.
	ErrNotConnected = errors.New("dorabridge: not connected")

	// ErrConnectionFailed is wrapped by every *ConnectionError.
	ErrConnectionFailed = errors.New("dorabridge: connection failed")

	// ErrChannelSend is returned when a command cannot be queued for the
	// worker, either because its queue is full or because it has exited.
	ErrChannelSend = errors.New("dorabridge: channel send failed")
)

// ConnectionError reports a Connect that did not reach StateConnected.
type ConnectionError struct {
	NodeID string
	// State is the state observed when Connect gave up.
	State  BridgeState
	Reason string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("dorabridge: connect %s: %s (state %s)", e.NodeID, e.Reason, e.State)
}

// Unwrap returns ErrConnectionFailed.
func (e *ConnectionError) Unwrap() error {
	return ErrConnectionFailed
}
