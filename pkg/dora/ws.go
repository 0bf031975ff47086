package dora

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Envelope types exchanged with a node gateway.
const (
	EnvelopeRegister    = "register"
	EnvelopeRegistered  = "registered"
	EnvelopeOutput      = "output"
	EnvelopeInput       = "input"
	EnvelopeInputClosed = "input_closed"
	EnvelopeStop        = "stop"
	EnvelopeError       = "error"
)

// Envelope is one websocket frame of the gateway protocol, encoded with
// msgpack. Data holds an Arrow IPC stream (see MarshalArray).
type Envelope struct {
	Type    string         `msgpack:"type"`
	Node    string         `msgpack:"node,omitempty"`
	Session string         `msgpack:"session,omitempty"`
	ID      string         `msgpack:"id,omitempty"`
	Params  map[string]any `msgpack:"params,omitempty"`
	Data    []byte         `msgpack:"data,omitempty"`
	Message string         `msgpack:"message,omitempty"`
}

const defaultHandshakeTimeout = 5 * time.Second

// WSConnector registers nodes with a websocket node gateway at Addr. Each
// node gets its own connection to "<Addr>/nodes/<node id>".
type WSConnector struct {
	// Addr is the gateway base URL, e.g. "ws://127.0.0.1:6060".
	Addr string

	// Header is sent with the websocket handshake.
	Header http.Header

	// HandshakeTimeout bounds dialing plus registration. Defaults to 5s.
	HandshakeTimeout time.Duration

	// Logger receives connection lifecycle logs. If nil, slog.Default() is
	// used.
	Logger *slog.Logger
}

func (c *WSConnector) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Init dials the gateway and registers nodeID.
func (c *WSConnector) Init(ctx context.Context, nodeID string) (Node, error) {
	if c.Addr == "" {
		return nil, errors.New("dora: gateway address is required")
	}
	timeout := c.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := strings.TrimRight(c.Addr, "/") + "/nodes/" + url.PathEscape(nodeID)
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.DialContext(ctx, u, c.Header)
	if err != nil {
		return nil, fmt.Errorf("dora: dial %s: %w", u, err)
	}

	session := uuid.NewString()
	if deadline, ok := ctx.Deadline(); ok {
		ws.SetWriteDeadline(deadline)
		ws.SetReadDeadline(deadline)
	}
	if err := writeEnvelope(ws, &Envelope{Type: EnvelopeRegister, Node: nodeID, Session: session}); err != nil {
		ws.Close()
		return nil, fmt.Errorf("dora: register %s: %w", nodeID, err)
	}
	reply, err := readEnvelope(ws)
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("dora: register %s: %w", nodeID, err)
	}
	switch reply.Type {
	case EnvelopeRegistered:
	case EnvelopeError:
		ws.Close()
		return nil, fmt.Errorf("dora: register %s: gateway refused: %s", nodeID, reply.Message)
	default:
		ws.Close()
		return nil, fmt.Errorf("dora: register %s: unexpected %q reply", nodeID, reply.Type)
	}
	ws.SetWriteDeadline(time.Time{})
	ws.SetReadDeadline(time.Time{})

	n := &wsNode{
		id:      nodeID,
		session: session,
		ws:      ws,
		events:  make(chan Event, 256),
		closed:  make(chan struct{}),
		logger:  c.logger().With("node", nodeID, "session", session),
	}
	go n.readLoop()
	n.logger.Info("registered with gateway", "addr", c.Addr)
	return n, nil
}

type wsNode struct {
	id      string
	session string
	ws      *websocket.Conn
	events  chan Event
	logger  *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func (n *wsNode) ID() string {
	return n.id
}

func (n *wsNode) SendOutput(ctx context.Context, outputID string, params Parameters, data arrow.Array) error {
	select {
	case <-n.closed:
		return ErrClosed
	default:
	}
	payload, err := MarshalArray(data)
	if err != nil {
		return err
	}
	env := &Envelope{
		Type:   EnvelopeOutput,
		Node:   n.id,
		ID:     outputID,
		Params: params,
		Data:   payload,
	}

	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		n.ws.SetWriteDeadline(deadline)
		defer n.ws.SetWriteDeadline(time.Time{})
	}
	if err := writeEnvelope(n.ws, env); err != nil {
		return fmt.Errorf("dora: send output %s: %w", outputID, err)
	}
	return nil
}

func (n *wsNode) Recv(timeout time.Duration) (Event, bool) {
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

func (n *wsNode) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.closed)
		n.writeMu.Lock()
		n.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		n.writeMu.Unlock()
		err = n.ws.Close()
	})
	return err
}

func (n *wsNode) readLoop() {
	for {
		env, err := readEnvelope(n.ws)
		if err != nil {
			select {
			case <-n.closed:
				return
			default:
			}
			n.logger.Warn("gateway connection lost", "error", err)
			n.push(&Stop{Cause: err.Error()})
			return
		}
		ev, err := envelopeEvent(env)
		if err != nil {
			n.logger.Debug("dropping gateway frame", "type", env.Type, "error", err)
			continue
		}
		if !n.push(ev) {
			return
		}
	}
}

func (n *wsNode) push(ev Event) bool {
	select {
	case n.events <- ev:
		return true
	case <-n.closed:
		return false
	}
}

func envelopeEvent(env *Envelope) (Event, error) {
	switch env.Type {
	case EnvelopeInput:
		data, err := UnmarshalArray(env.Data)
		if err != nil {
			return nil, err
		}
		return &Input{
			ID:       env.ID,
			Data:     data,
			Metadata: Metadata{Parameters: env.Params},
		}, nil
	case EnvelopeInputClosed:
		return &InputClosed{ID: env.ID}, nil
	case EnvelopeStop:
		return &Stop{Cause: env.Message}, nil
	case EnvelopeError:
		return &Error{Message: env.Message}, nil
	default:
		return nil, fmt.Errorf("unknown envelope type %q", env.Type)
	}
}

func writeEnvelope(ws *websocket.Conn, env *Envelope) error {
	b, err := msgpack.Marshal(env)
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.BinaryMessage, b)
}

func readEnvelope(ws *websocket.Conn) (*Envelope, error) {
	_, b, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &env, nil
}

var _ Connector = (*WSConnector)(nil)
