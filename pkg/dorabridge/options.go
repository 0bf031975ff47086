package dorabridge

import (
	"log/slog"
	"time"

	"github.com/mofa-org/dorabridge/pkg/dora"
)

// Defaults applied to zero Options fields.
const (
	DefaultConnectGrace      = 200 * time.Millisecond
	DefaultDisconnectTimeout = 2 * time.Second
	DefaultPollTimeout       = 100 * time.Millisecond
	DefaultEventBuffer       = 1000
	DefaultCommandBuffer     = 100
)

// Options configures a bridge worker. The zero value is usable once
// Connector is set.
type Options struct {
	// Connector registers the bridge node with the dataflow engine.
	Connector dora.Connector

	// ConnectGrace is how long Connect waits for the worker to register.
	ConnectGrace time.Duration

	// DisconnectTimeout bounds the wait for the worker to exit.
	DisconnectTimeout time.Duration

	// PollTimeout bounds each engine receive, and therefore the latency
	// of observing a stop request.
	PollTimeout time.Duration

	// SendDelay is slept after every command sent to the engine. Zero
	// selects the bridge default; negative disables the delay.
	SendDelay time.Duration

	EventBuffer   int
	CommandBuffer int

	Logger *slog.Logger
}

func (o Options) withDefaults(sendDelay time.Duration) Options {
	if o.ConnectGrace <= 0 {
		o.ConnectGrace = DefaultConnectGrace
	}
	if o.DisconnectTimeout <= 0 {
		o.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = DefaultPollTimeout
	}
	switch {
	case o.SendDelay == 0:
		o.SendDelay = sendDelay
	case o.SendDelay < 0:
		o.SendDelay = 0
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultEventBuffer
	}
	if o.CommandBuffer <= 0 {
		o.CommandBuffer = DefaultCommandBuffer
	}
	return o
}

// NodeLogger returns the logger of opts, or slog.Default, scoped to nodeID.
func NodeLogger(opts Options, nodeID string) *slog.Logger {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("node", nodeID)
}
