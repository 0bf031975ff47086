package dorabridge

import (
	"fmt"
	"sync"
)

// BridgeState is the connection state of a bridge.
type BridgeState int

const (
	StateDisconnected BridgeState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateError
)

// String returns the string representation of the state.
func (s BridgeState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("BridgeState(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s BridgeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *BridgeState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "disconnected":
		*s = StateDisconnected
	case "connecting":
		*s = StateConnecting
	case "connected":
		*s = StateConnected
	case "disconnecting":
		*s = StateDisconnecting
	case "error":
		*s = StateError
	default:
		return fmt.Errorf("dorabridge: unknown bridge state %q", b)
	}
	return nil
}

// stateCell is the state shared by a bridge handle and its worker.
type stateCell struct {
	mu sync.RWMutex
	s  BridgeState
}

func (c *stateCell) load() BridgeState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.s
}

func (c *stateCell) store(s BridgeState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.s = s
}

func (c *stateCell) compareAndSwap(old, new BridgeState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s != old {
		return false
	}
	c.s = new
	return true
}
