package dorabridge

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/mofa-org/dorabridge/pkg/dora"
)

type echoHandler struct {
	started chan string
	block   chan struct{}
}

func (h *echoHandler) SendCommand(ctx context.Context, node dora.Node, cmd string) error {
	if h.started != nil {
		h.started <- cmd
	}
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return SendData(ctx, node, "text", TextValue(cmd))
}

func (h *echoHandler) HandleInput(in *dora.Input, emit func(BridgeEvent)) {
	if s, ok := ExtractText(in.Data); ok {
		emit(DataReceived(in.ID, TextValue(s), MetadataFromParameters(in.Metadata.Parameters)))
	}
}

type countingConnector struct {
	dora.Connector
	inits atomic.Int32
}

func (c *countingConnector) Init(ctx context.Context, nodeID string) (dora.Node, error) {
	c.inits.Add(1)
	return c.Connector.Init(ctx, nodeID)
}

func testOptions(conn dora.Connector) Options {
	return Options{
		Connector:         conn,
		ConnectGrace:      time.Second,
		DisconnectTimeout: time.Second,
		PollTimeout:       10 * time.Millisecond,
		SendDelay:         -1,
	}
}

func nextEvent(t *testing.T, ch <-chan BridgeEvent, kind EventKind) BridgeEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %v event", kind)
		}
	}
}

func nextOutput(t *testing.T, ch <-chan dora.Output) dora.Output {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for output")
	}
	return dora.Output{}
}

func TestWorker_ConnectDisconnect(t *testing.T) {
	pipe := dora.NewPipe()
	conn := &countingConnector{Connector: pipe}
	w := NewWorker[string]("mofa-test", &echoHandler{}, testOptions(conn), 0)
	events := w.Subscribe()

	if w.State() != StateDisconnected {
		t.Fatalf("initial state = %v", w.State())
	}
	if err := w.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !w.IsConnected() {
		t.Fatalf("state = %v; want connected", w.State())
	}
	nextEvent(t, events, EventConnected)
	if !pipe.Registered("mofa-test") {
		t.Error("node not registered with engine")
	}

	if err := w.Connect(); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect = %v; want ErrAlreadyConnected", err)
	}
	if n := conn.inits.Load(); n != 1 {
		t.Errorf("Init called %d times; want 1", n)
	}

	if err := w.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if w.State() != StateDisconnected {
		t.Errorf("state after Disconnect = %v", w.State())
	}
	nextEvent(t, events, EventDisconnected)
	select {
	case ev := <-events:
		t.Errorf("unexpected event after disconnect: %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
	if pipe.Registered("mofa-test") {
		t.Error("node still registered after Disconnect")
	}
}

func TestWorker_EnqueueNotConnected(t *testing.T) {
	w := NewWorker[string]("mofa-test", &echoHandler{}, testOptions(dora.NewPipe()), 0)
	if err := w.Enqueue("hello"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Enqueue = %v; want ErrNotConnected", err)
	}
	if w.gen.Load() != nil {
		t.Error("Enqueue on a never connected worker created a generation")
	}
}

func TestWorker_CommandsInOrder(t *testing.T) {
	pipe := dora.NewPipe()
	w := NewWorker[string]("mofa-test", &echoHandler{}, testOptions(pipe), 0)
	if err := w.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer w.Close()

	for _, s := range []string{"a", "b", "c"} {
		if err := w.Enqueue(s); err != nil {
			t.Fatalf("Enqueue(%q): %v", s, err)
		}
	}
	outputs := pipe.Outputs("mofa-test")
	for _, want := range []string{"a", "b", "c"} {
		out := nextOutput(t, outputs)
		got, _ := ExtractText(out.Data)
		out.Data.Release()
		if out.OutputID != "text" || got != want {
			t.Errorf("output = %s %q; want text %q", out.OutputID, got, want)
		}
	}
}

func TestWorker_EnqueueQueueFull(t *testing.T) {
	pipe := dora.NewPipe()
	h := &echoHandler{started: make(chan string, 4), block: make(chan struct{})}
	opts := testOptions(pipe)
	opts.CommandBuffer = 1
	w := NewWorker[string]("mofa-test", h, opts, 0)
	if err := w.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer w.Close()

	if err := w.Enqueue("first"); err != nil {
		t.Fatalf("Enqueue(first): %v", err)
	}
	select {
	case <-h.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not pick up the first command")
	}
	if err := w.Enqueue("second"); err != nil {
		t.Fatalf("Enqueue(second): %v", err)
	}
	if err := w.Enqueue("third"); !errors.Is(err, ErrChannelSend) {
		t.Errorf("Enqueue(third) = %v; want ErrChannelSend", err)
	}
	close(h.block)
}

func TestWorker_Inputs(t *testing.T) {
	pipe := dora.NewPipe()
	w := NewWorker[string]("mofa-test", &echoHandler{}, testOptions(pipe), 0)
	events := w.Subscribe()
	if err := w.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	arr := EncodeText("ping")
	defer arr.Release()
	if err := pipe.Deliver(ctx, "mofa-test", &dora.InputClosed{ID: "x"}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if err := pipe.Deliver(ctx, "mofa-test", &dora.Error{Message: "hiccup"}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if err := pipe.SendInput(ctx, "mofa-test", "status", dora.Parameters{"k": 1}, arr); err != nil {
		t.Fatalf("SendInput: %v", err)
	}

	ev := nextEvent(t, events, EventDataReceived)
	text, _ := ev.Data.Text()
	if ev.InputID != "status" || text != "ping" {
		t.Errorf("event = %+v", ev)
	}
	if v, _ := ev.Metadata.Get("k"); v != "1" {
		t.Errorf("metadata k = %q; want 1", v)
	}
	if !w.IsConnected() {
		t.Error("transient engine events should not disconnect the bridge")
	}
}

func TestWorker_InitFailureThenRetry(t *testing.T) {
	pipe := dora.NewPipe()
	pipe.FailInit("mofa-test", errors.New("daemon unreachable"))
	w := NewWorker[string]("mofa-test", &echoHandler{}, testOptions(pipe), 0)
	events := w.Subscribe()

	err := w.Connect()
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect = %v; want ErrConnectionFailed", err)
	}
	var cerr *ConnectionError
	if !errors.As(err, &cerr) || cerr.State != StateError {
		t.Errorf("ConnectionError = %+v; want state error", cerr)
	}
	if w.State() != StateError {
		t.Errorf("state = %v; want error", w.State())
	}
	ev := nextEvent(t, events, EventError)
	if ev.Err == "" {
		t.Error("error event without message")
	}
	if err := w.Enqueue("x"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Enqueue in error state = %v; want ErrNotConnected", err)
	}

	pipe.FailInit("mofa-test", nil)
	if err := w.Connect(); err != nil {
		t.Fatalf("retry Connect: %v", err)
	}
	if !w.IsConnected() {
		t.Errorf("state after retry = %v", w.State())
	}
	w.Close()
}

func TestWorker_NoConnector(t *testing.T) {
	w := NewWorker[string]("mofa-test", &echoHandler{}, Options{}, 0)
	if err := w.Connect(); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect = %v; want ErrConnectionFailed", err)
	}
}

func TestWorker_EngineStop(t *testing.T) {
	pipe := dora.NewPipe()
	w := NewWorker[string]("mofa-test", &echoHandler{}, testOptions(pipe), 0)
	events := w.Subscribe()
	if err := w.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	nextEvent(t, events, EventConnected)

	if err := pipe.StopNode(context.Background(), "mofa-test"); err != nil {
		t.Fatalf("StopNode: %v", err)
	}
	nextEvent(t, events, EventDisconnected)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pipe.WaitRegistered(ctx, "mofa-test", false); err != nil {
		t.Fatalf("node not unregistered: %v", err)
	}
	if w.State() != StateDisconnected {
		t.Errorf("state = %v; want disconnected", w.State())
	}

	// The bridge can reconnect after the engine stopped it.
	if err := w.Connect(); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	w.Close()
}

func TestWorker_EventOverflowDrops(t *testing.T) {
	pipe := dora.NewPipe()
	opts := testOptions(pipe)
	opts.EventBuffer = 2
	w := NewWorker[string]("mofa-test", &echoHandler{}, opts, 0)
	if err := w.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	arr := EncodeText("burst")
	defer arr.Release()
	for i := 0; i < 50; i++ {
		if err := pipe.SendInput(context.Background(), "mofa-test", "status", nil, arr); err != nil {
			t.Fatalf("SendInput %d: %v", i, err)
		}
	}

	done := make(chan struct{})
	go func() {
		w.Disconnect()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Disconnect blocked with a full event channel")
	}
	if n := len(w.Subscribe()); n > 2 {
		t.Errorf("event channel holds %d events; capacity is 2", n)
	}
}

// stubbornNode ignores its poll timeout until released.
type stubbornNode struct {
	id      string
	release chan struct{}
}

func (n *stubbornNode) ID() string { return n.id }

func (n *stubbornNode) SendOutput(context.Context, string, dora.Parameters, arrow.Array) error {
	return nil
}

func (n *stubbornNode) Recv(time.Duration) (dora.Event, bool) {
	<-n.release
	return nil, false
}

func (n *stubbornNode) Close() error { return nil }

func TestWorker_ReconnectWhileShuttingDown(t *testing.T) {
	release := make(chan struct{})
	var inits atomic.Int32
	conn := dora.ConnectorFunc(func(ctx context.Context, nodeID string) (dora.Node, error) {
		inits.Add(1)
		return &stubbornNode{id: nodeID, release: release}, nil
	})
	opts := testOptions(conn)
	opts.DisconnectTimeout = 50 * time.Millisecond
	w := NewWorker[string]("mofa-test", &echoHandler{}, opts, 0)

	if err := w.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	start := time.Now()
	if err := w.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Disconnect took %v; want bounded by the timeout", elapsed)
	}
	if w.State() != StateDisconnected {
		t.Errorf("state after timed out Disconnect = %v", w.State())
	}

	err := w.Connect()
	var cerr *ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Connect during shutdown = %v; want *ConnectionError", err)
	}
	if n := inits.Load(); n != 1 {
		t.Errorf("Init called %d times; want 1", n)
	}

	close(release)
	if err := w.Connect(); err != nil {
		t.Fatalf("Connect after worker exit: %v", err)
	}
	if n := inits.Load(); n != 2 {
		t.Errorf("Init called %d times; want 2", n)
	}
	w.Close()
}

func TestWorker_LateInitFailureAfterDisconnect(t *testing.T) {
	release := make(chan struct{})
	conn := dora.ConnectorFunc(func(ctx context.Context, nodeID string) (dora.Node, error) {
		<-release
		return nil, errors.New("daemon unreachable")
	})
	opts := testOptions(conn)
	opts.ConnectGrace = 20 * time.Millisecond
	opts.DisconnectTimeout = 30 * time.Millisecond
	w := NewWorker[string]("mofa-test", &echoHandler{}, opts, 0)
	events := w.Subscribe()

	err := w.Connect()
	var cerr *ConnectionError
	if !errors.As(err, &cerr) || cerr.State != StateConnecting {
		t.Fatalf("Connect = %v; want ConnectionError in state connecting", err)
	}
	if err := w.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if w.State() != StateDisconnected {
		t.Fatalf("state after Disconnect = %v", w.State())
	}

	close(release)
	select {
	case <-w.gen.Load().done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit")
	}
	if w.State() != StateDisconnected {
		t.Errorf("state after late Init failure = %v; want disconnected", w.State())
	}
drain:
	for {
		select {
		case ev := <-events:
			if ev.Kind == EventError {
				t.Errorf("error event %q published after Disconnect returned", ev.Err)
			}
		default:
			break drain
		}
	}
}

func TestWorker_CloseReleasesNode(t *testing.T) {
	pipe := dora.NewPipe()
	w := NewWorker[string]("mofa-test", &echoHandler{}, testOptions(pipe), 0)
	events := w.Subscribe()

	if err := w.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// No polling: the node is gone by the time Close returns.
	if pipe.Registered("mofa-test") {
		t.Error("node still registered after Close")
	}
	if w.State() != StateDisconnected {
		t.Errorf("state after Close = %v", w.State())
	}
	nextEvent(t, events, EventDisconnected)
}

func TestWorker_CloseWithoutConnect(t *testing.T) {
	w := NewWorker[string]("mofa-test", &echoHandler{}, testOptions(dora.NewPipe()), 0)
	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Disconnect(); err != nil {
		t.Errorf("Disconnect: %v", err)
	}
	if w.State() != StateDisconnected {
		t.Errorf("state = %v", w.State())
	}
}
