package dora

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// Output is a record published by a node registered with a PipeEngine.
type Output struct {
	NodeID   string
	OutputID string
	Params   Parameters
	Data     arrow.Array
}

// PipeEngine is an in-process engine. Nodes registered with Init receive
// events pushed with Deliver, and everything they publish is readable from
// Outputs. This is useful for testing and in-process dataflows.
type PipeEngine struct {
	mu       sync.Mutex
	nodes    map[string]*PipeNode
	outputs  map[string]chan Output
	failInit map[string]error
	notify   chan struct{}
}

// NewPipe creates an empty in-process engine.
func NewPipe() *PipeEngine {
	return &PipeEngine{
		nodes:    make(map[string]*PipeNode),
		outputs:  make(map[string]chan Output),
		failInit: make(map[string]error),
		notify:   make(chan struct{}),
	}
}

// FailInit makes every following Init for nodeID fail with err. Passing a
// nil err clears the failure.
func (e *PipeEngine) FailInit(nodeID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failInit, nodeID)
		return
	}
	e.failInit[nodeID] = err
}

// Init registers a node.
func (e *PipeEngine) Init(ctx context.Context, nodeID string) (Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.failInit[nodeID]; ok {
		return nil, fmt.Errorf("dora: init %s: %w", nodeID, err)
	}
	if _, ok := e.nodes[nodeID]; ok {
		return nil, fmt.Errorf("dora: init %s: %w", nodeID, ErrAlreadyRegistered)
	}
	n := &PipeNode{
		id:      nodeID,
		engine:  e,
		events:  make(chan Event, 256),
		outputs: e.outputChanLocked(nodeID),
		closed:  make(chan struct{}),
	}
	e.nodes[nodeID] = n
	e.broadcastLocked()
	return n, nil
}

// Registered reports whether a live node holds nodeID.
func (e *PipeEngine) Registered(nodeID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.nodes[nodeID]
	return ok
}

// WaitRegistered blocks until nodeID is registered (want=true) or
// unregistered (want=false), or ctx is done.
func (e *PipeEngine) WaitRegistered(ctx context.Context, nodeID string, want bool) error {
	for {
		e.mu.Lock()
		_, ok := e.nodes[nodeID]
		notify := e.notify
		e.mu.Unlock()
		if ok == want {
			return nil
		}
		select {
		case <-notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Deliver pushes an event to a registered node.
func (e *PipeEngine) Deliver(ctx context.Context, nodeID string, ev Event) error {
	e.mu.Lock()
	n, ok := e.nodes[nodeID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("dora: deliver to %s: %w", nodeID, ErrNotRegistered)
	}
	select {
	case n.events <- ev:
		return nil
	case <-n.closed:
		return fmt.Errorf("dora: deliver to %s: %w", nodeID, ErrClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendInput is a shorthand for delivering an Input event.
func (e *PipeEngine) SendInput(ctx context.Context, nodeID, inputID string, params Parameters, data arrow.Array) error {
	return e.Deliver(ctx, nodeID, &Input{
		ID:       inputID,
		Data:     data,
		Metadata: Metadata{Parameters: params},
	})
}

// StopNode delivers a Stop event to a registered node.
func (e *PipeEngine) StopNode(ctx context.Context, nodeID string) error {
	return e.Deliver(ctx, nodeID, &Stop{Cause: "engine stop"})
}

// Outputs returns the channel receiving everything nodeID publishes. The
// channel outlives individual registrations of the same node id. Readers
// own the Data of every Output and should release it.
func (e *PipeEngine) Outputs(nodeID string) <-chan Output {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outputChanLocked(nodeID)
}

func (e *PipeEngine) outputChanLocked(nodeID string) chan Output {
	ch, ok := e.outputs[nodeID]
	if !ok {
		ch = make(chan Output, 256)
		e.outputs[nodeID] = ch
	}
	return ch
}

func (e *PipeEngine) unregister(n *PipeNode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.nodes[n.id] == n {
		delete(e.nodes, n.id)
		e.broadcastLocked()
	}
}

func (e *PipeEngine) broadcastLocked() {
	close(e.notify)
	e.notify = make(chan struct{})
}

// PipeNode is a node registered with a PipeEngine.
type PipeNode struct {
	id      string
	engine  *PipeEngine
	events  chan Event
	outputs chan Output

	closeOnce sync.Once
	closed    chan struct{}
}

// ID returns the node id.
func (n *PipeNode) ID() string {
	return n.id
}

// SendOutput publishes data to the engine. The array is retained until the
// reader of Outputs releases it.
func (n *PipeNode) SendOutput(ctx context.Context, outputID string, params Parameters, data arrow.Array) error {
	select {
	case <-n.closed:
		return ErrClosed
	default:
	}
	if data != nil {
		data.Retain()
	}
	out := Output{
		NodeID:   n.id,
		OutputID: outputID,
		Params:   params,
		Data:     data,
	}
	select {
	case n.outputs <- out:
		return nil
	case <-n.closed:
	case <-ctx.Done():
	}
	if data != nil {
		data.Release()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// Recv waits up to timeout for an event.
func (n *PipeNode) Recv(timeout time.Duration) (Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-n.events:
		return ev, true
	case <-n.closed:
		return nil, false
	case <-timer.C:
		return nil, false
	}
}

// Close unregisters the node from its engine.
func (n *PipeNode) Close() error {
	n.closeOnce.Do(func() {
		close(n.closed)
		n.engine.unregister(n)
	})
	return nil
}

// Compile-time interface assertions
var (
	_ Connector = (*PipeEngine)(nil)
	_ Node      = (*PipeNode)(nil)
)
