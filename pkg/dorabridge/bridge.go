package dorabridge

import (
	"context"
	"fmt"

	"github.com/mofa-org/dorabridge/pkg/dora"
)

// Bridge represents one UI-facing widget as one dataflow node.
//
// Connect registers the node from a worker goroutine and waits a short
// grace period for the registration to succeed. Send only queues data for
// the worker; it never blocks on the engine. Events produced by the worker
// are read from Subscribe.
type Bridge interface {
	// NodeID returns the id the bridge registers under.
	NodeID() string

	// State returns a snapshot of the connection state.
	State() BridgeState

	// IsConnected reports whether State is StateConnected.
	IsConnected() bool

	// Connect starts the worker. It returns ErrAlreadyConnected if the
	// bridge is connected, and a *ConnectionError if the worker does not
	// reach StateConnected within the grace period.
	Connect() error

	// Disconnect stops the worker, waiting a bounded time for it to exit.
	// On return the state is StateDisconnected.
	Disconnect() error

	// Send queues data for the output outputID. It returns ErrNotConnected
	// unless the bridge is connected. Outputs or payload kinds the bridge
	// does not produce are ignored.
	Send(outputID string, data DoraData) error

	// Subscribe returns the event channel. All subscribers share one
	// channel, so each event is received by exactly one of them.
	Subscribe() <-chan BridgeEvent

	// ExpectedInputs lists the dataflow inputs the bridge understands.
	ExpectedInputs() []string

	// ExpectedOutputs lists the dataflow outputs the bridge produces.
	ExpectedOutputs() []string

	// Close stops the worker and waits for it to exit. It must be called
	// once the bridge is no longer used; nothing releases the engine node
	// otherwise.
	Close() error
}

// EventKind identifies a BridgeEvent.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventError
	EventDataReceived
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	case EventDataReceived:
		return "data_received"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// BridgeEvent is produced by a bridge worker.
type BridgeEvent struct {
	Kind EventKind

	// Err is set for EventError.
	Err string

	// InputID, Data and Metadata are set for EventDataReceived.
	InputID  string
	Data     DoraData
	Metadata EventMetadata
}

// ConnectedEvent returns an EventConnected event.
func ConnectedEvent() BridgeEvent {
	return BridgeEvent{Kind: EventConnected}
}

// DisconnectedEvent returns an EventDisconnected event.
func DisconnectedEvent() BridgeEvent {
	return BridgeEvent{Kind: EventDisconnected}
}

// ErrorEvent returns an EventError event.
func ErrorEvent(msg string) BridgeEvent {
	return BridgeEvent{Kind: EventError, Err: msg}
}

// DataReceived returns an EventDataReceived event.
func DataReceived(inputID string, data DoraData, meta EventMetadata) BridgeEvent {
	return BridgeEvent{
		Kind:     EventDataReceived,
		InputID:  inputID,
		Data:     data,
		Metadata: meta,
	}
}

// SendData encodes data and publishes it on outputID.
func SendData(ctx context.Context, node dora.Node, outputID string, data DoraData) error {
	arr, params, err := EncodeData(data)
	if err != nil {
		return err
	}
	defer arr.Release()
	if err := node.SendOutput(ctx, outputID, params, arr); err != nil {
		return fmt.Errorf("dorabridge: send %s: %w", outputID, err)
	}
	return nil
}
