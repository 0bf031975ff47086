// Package dora defines the node-side client contract of a dora dataflow
// engine.
//
// The engine routes typed Arrow arrays between named nodes. A process joins
// a running dataflow as a dynamic node by calling [Connector.Init] with the
// node id declared in the dataflow description, then exchanges data through
// the returned [Node]:
//
//	node, err := connector.Init(ctx, "mofa-cast-controller")
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	// Publish one output.
//	node.SendOutput(ctx, "text", nil, arr)
//
//	// Poll for inputs; ok is false on timeout.
//	ev, ok := node.Recv(100 * time.Millisecond)
//
// Two connectors are provided:
//
//   - [PipeEngine]: an in-process engine. Nodes registered with it exchange
//     events through channels. Used by tests and local demos.
//   - [WSConnector]: a client for a websocket node gateway. Frames are
//     msgpack envelopes whose payload is an Arrow IPC stream (see
//     [MarshalArray]).
//
// Events received from the engine are one of [*Input], [*Stop],
// [*InputClosed] or [*Error].
package dora
