package dispatch

import (
	"fmt"

	"github.com/mofa-org/dorabridge/pkg/dorabridge"
)

// AggregateState summarizes the states of all bridges of a dataflow.
type AggregateState int

const (
	// AggregateIdle means no bridge is connected or connecting.
	AggregateIdle AggregateState = iota
	// AggregateConnecting means at least one bridge is connecting.
	AggregateConnecting
	// AggregatePartiallyConnected means some, but not all, bridges are
	// connected.
	AggregatePartiallyConnected
	// AggregateConnected means every bridge is connected.
	AggregateConnected
	// AggregateError means at least one bridge is in the error state.
	AggregateError
)

// String returns the string representation of the state.
func (s AggregateState) String() string {
	switch s {
	case AggregateIdle:
		return "idle"
	case AggregateConnecting:
		return "connecting"
	case AggregatePartiallyConnected:
		return "partially_connected"
	case AggregateConnected:
		return "connected"
	case AggregateError:
		return "error"
	default:
		return fmt.Sprintf("AggregateState(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s AggregateState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Aggregate derives the aggregate state from bridge states. An empty set
// is idle.
func Aggregate(states []dorabridge.BridgeState) AggregateState {
	if len(states) == 0 {
		return AggregateIdle
	}
	var connected, connecting int
	for _, s := range states {
		switch s {
		case dorabridge.StateError:
			return AggregateError
		case dorabridge.StateConnected:
			connected++
		case dorabridge.StateConnecting:
			connecting++
		}
	}
	switch {
	case connected == len(states):
		return AggregateConnected
	case connecting > 0:
		return AggregateConnecting
	case connected > 0:
		return AggregatePartiallyConnected
	default:
		return AggregateIdle
	}
}
