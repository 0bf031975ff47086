package dora

import (
	"context"
	"errors"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

var (
	// ErrClosed is returned when using a node that has been closed.
	ErrClosed = errors.New("dora: node closed")

	// ErrNotRegistered is returned when addressing a node id the engine does
	// not know.
	ErrNotRegistered = errors.New("dora: node not registered")

	// ErrAlreadyRegistered is returned by Init when the node id is already
	// held by another live node.
	ErrAlreadyRegistered = errors.New("dora: node already registered")
)

// Parameters are the typed key/value pairs attached to a record. Values are
// strings, integers, floats, booleans or lists of those.
type Parameters map[string]any

// Metadata is attached to every input record.
type Metadata struct {
	Parameters Parameters
}

// Event is an event delivered by the engine to a node.
type Event interface {
	event()
}

// Input carries one record sent to the node on the input ID.
type Input struct {
	ID       string
	Data     arrow.Array
	Metadata Metadata
}

// Stop asks the node to shut down.
type Stop struct {
	Cause string
}

// InputClosed reports that the upstream of input ID has finished.
type InputClosed struct {
	ID string
}

// Error is an engine-level error notification.
type Error struct {
	Message string
}

func (*Input) event()       {}
func (*Stop) event()        {}
func (*InputClosed) event() {}
func (*Error) event()       {}

// Node is a registered dataflow node.
type Node interface {
	// ID returns the node id used for registration.
	ID() string

	// SendOutput publishes data on the given output id.
	SendOutput(ctx context.Context, outputID string, params Parameters, data arrow.Array) error

	// Recv waits up to timeout for the next event. It returns false if no
	// event arrived in time.
	Recv(timeout time.Duration) (Event, bool)

	// Close unregisters the node.
	Close() error
}

// Connector registers dynamic nodes with an engine.
type Connector interface {
	Init(ctx context.Context, nodeID string) (Node, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, nodeID string) (Node, error)

// Init calls f(ctx, nodeID).
func (f ConnectorFunc) Init(ctx context.Context, nodeID string) (Node, error) {
	return f(ctx, nodeID)
}
