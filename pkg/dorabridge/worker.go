package dorabridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mofa-org/dorabridge/pkg/dora"
)

// Handler supplies the bridge-specific half of a Worker.
type Handler[C any] interface {
	// SendCommand translates one queued command into engine sends.
	SendCommand(ctx context.Context, node dora.Node, cmd C) error

	// HandleInput decodes one input record and emits the resulting events.
	// Unrecognized inputs are dropped.
	HandleInput(in *dora.Input, emit func(BridgeEvent))
}

// Worker runs the engine side of a bridge on its own goroutine. Concrete
// bridges embed a *Worker and supply a Handler for their command type C.
//
// The worker registers the node, then loops: check for stop, drain queued
// commands in order, and wait up to PollTimeout for one engine event.
//
// The running goroutine keeps the worker reachable, so it is never
// reclaimed while connected. Owners must call Close (directly or through
// dispatch.Dispatcher.Close) to release the engine node.
type Worker[C any] struct {
	nodeID  string
	handler Handler[C]
	opts    Options
	log     *slog.Logger

	state  stateCell
	events chan BridgeEvent

	// mu serializes Connect, Disconnect and Close.
	mu  sync.Mutex
	gen atomic.Pointer[generation[C]]
}

// generation is one started worker goroutine.
type generation[C any] struct {
	cmds    chan C
	ctx     context.Context
	stop    context.CancelFunc
	settled chan struct{}
	done    chan struct{}

	// initErr is written before settled is closed.
	initErr error
}

// NewWorker creates a worker for nodeID. sendDelay is the delay applied
// after every command when opts.SendDelay is zero.
func NewWorker[C any](nodeID string, h Handler[C], opts Options, sendDelay time.Duration) *Worker[C] {
	opts = opts.withDefaults(sendDelay)
	return &Worker[C]{
		nodeID:  nodeID,
		handler: h,
		opts:    opts,
		log:     NodeLogger(opts, nodeID),
		events:  make(chan BridgeEvent, opts.EventBuffer),
	}
}

// NodeID returns the id the node registers under.
func (w *Worker[C]) NodeID() string {
	return w.nodeID
}

// State returns a snapshot of the connection state.
func (w *Worker[C]) State() BridgeState {
	return w.state.load()
}

// IsConnected reports whether the worker is registered and running.
func (w *Worker[C]) IsConnected() bool {
	return w.state.load() == StateConnected
}

// Subscribe returns the event channel.
func (w *Worker[C]) Subscribe() <-chan BridgeEvent {
	return w.events
}

// Logger returns the logger scoped to the node.
func (w *Worker[C]) Logger() *slog.Logger {
	return w.log
}

// Connect starts a worker goroutine and waits up to ConnectGrace for it to
// register. A previous worker that has not exited yet is stopped first; if
// it does not exit within DisconnectTimeout, Connect fails without starting
// a second one.
func (w *Worker[C]) Connect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.load() == StateConnected {
		return ErrAlreadyConnected
	}
	if w.opts.Connector == nil {
		return &ConnectionError{NodeID: w.nodeID, State: w.state.load(), Reason: "no connector"}
	}
	if prev := w.gen.Load(); prev != nil && !w.waitExit(prev, w.opts.DisconnectTimeout) {
		return &ConnectionError{
			NodeID: w.nodeID,
			State:  w.state.load(),
			Reason: "previous worker still shutting down",
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &generation[C]{
		cmds:    make(chan C, w.opts.CommandBuffer),
		ctx:     ctx,
		stop:    cancel,
		settled: make(chan struct{}),
		done:    make(chan struct{}),
	}
	w.state.store(StateConnecting)
	w.gen.Store(g)
	go w.run(g)

	timer := time.NewTimer(w.opts.ConnectGrace)
	defer timer.Stop()
	select {
	case <-g.settled:
	case <-timer.C:
	}

	state := w.state.load()
	if state == StateConnected {
		return nil
	}
	reason := "worker did not connect in time"
	select {
	case <-g.settled:
		if g.initErr != nil {
			reason = g.initErr.Error()
		}
	default:
	}
	return &ConnectionError{NodeID: w.nodeID, State: state, Reason: reason}
}

// Disconnect asks the worker to stop and waits up to DisconnectTimeout for
// it to exit. The state is StateDisconnected on return even if the worker
// is still finishing.
func (w *Worker[C]) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if g := w.gen.Load(); g != nil {
		w.state.compareAndSwap(StateConnected, StateDisconnecting)
		if !w.waitExit(g, w.opts.DisconnectTimeout) {
			w.log.Warn("worker did not stop in time", "timeout", w.opts.DisconnectTimeout)
		}
	}
	w.state.store(StateDisconnected)
	return nil
}

// Close stops the worker and waits for it to exit, however long it takes.
// The engine node is closed before Close returns.
func (w *Worker[C]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if g := w.gen.Load(); g != nil {
		g.stop()
		<-g.done
	}
	w.state.store(StateDisconnected)
	return nil
}

// waitExit stops g and reports whether it exited within timeout.
func (w *Worker[C]) waitExit(g *generation[C], timeout time.Duration) bool {
	g.stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-g.done:
		return true
	case <-timer.C:
		return false
	}
}

// Enqueue queues cmd for the running worker. It returns ErrNotConnected
// unless the worker is connected, and ErrChannelSend when the queue is full
// or the worker is stopping.
func (w *Worker[C]) Enqueue(cmd C) error {
	if w.state.load() != StateConnected {
		return ErrNotConnected
	}
	g := w.gen.Load()
	if g == nil {
		return ErrNotConnected
	}
	if g.ctx.Err() != nil {
		return fmt.Errorf("%w: worker stopping", ErrChannelSend)
	}
	select {
	case g.cmds <- cmd:
		return nil
	default:
		return fmt.Errorf("%w: command queue full", ErrChannelSend)
	}
}

// Emit sends ev to subscribers without blocking. The event is dropped when
// the channel is full.
func (w *Worker[C]) Emit(ev BridgeEvent) {
	select {
	case w.events <- ev:
	default:
		w.log.Debug("event channel full, dropping event", "kind", ev.Kind)
	}
}

func (w *Worker[C]) run(g *generation[C]) {
	defer close(g.done)

	node, err := w.opts.Connector.Init(g.ctx, w.nodeID)
	if err != nil {
		w.log.Error("register node failed", "error", err)
		g.initErr = err
		// A Disconnect that gave up waiting has already reported
		// Disconnected; a late failure must not override it.
		failed := w.state.compareAndSwap(StateConnecting, StateError)
		close(g.settled)
		if failed {
			w.Emit(ErrorEvent(err.Error()))
		}
		return
	}
	defer node.Close()

	if !w.state.compareAndSwap(StateConnecting, StateConnected) {
		// Disconnected while registering.
		close(g.settled)
		return
	}
	close(g.settled)
	w.log.Info("node registered")
	w.Emit(ConnectedEvent())

	w.loop(g, node)

	w.state.store(StateDisconnected)
	w.Emit(DisconnectedEvent())
	w.log.Info("node stopped")
}

func (w *Worker[C]) loop(g *generation[C], node dora.Node) {
	for {
		if g.ctx.Err() != nil {
			return
		}
		if !w.drain(g, node) {
			return
		}

		ev, ok := node.Recv(w.opts.PollTimeout)
		if !ok {
			continue
		}
		switch ev := ev.(type) {
		case *dora.Input:
			w.handler.HandleInput(ev, w.Emit)
		case *dora.Stop:
			w.log.Info("engine requested stop", "cause", ev.Cause)
			return
		case *dora.InputClosed:
			w.log.Debug("input closed", "input", ev.ID)
		case *dora.Error:
			w.log.Debug("engine error ignored", "message", ev.Message)
		default:
			w.log.Debug("engine event ignored", "event", fmt.Sprintf("%T", ev))
		}
	}
}

// drain sends every queued command. It returns false if the worker was
// stopped meanwhile.
func (w *Worker[C]) drain(g *generation[C], node dora.Node) bool {
	for {
		select {
		case cmd := <-g.cmds:
			if err := w.handler.SendCommand(g.ctx, node, cmd); err != nil {
				w.log.Warn("send command failed", "error", err)
			}
			if w.opts.SendDelay > 0 {
				select {
				case <-time.After(w.opts.SendDelay):
				case <-g.ctx.Done():
					return false
				}
			}
		default:
			return true
		}
	}
}
