package widgets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/mofa-org/dorabridge/pkg/dora"
	"github.com/mofa-org/dorabridge/pkg/dorabridge"
)

// output is a queued engine send.
type output struct {
	id     string
	encode func() (arrow.Array, dora.Parameters, error)
}

func dataOutput(id string, d dorabridge.DoraData) output {
	return output{id: id, encode: func() (arrow.Array, dora.Parameters, error) {
		return dorabridge.EncodeData(d)
	}}
}

func float64Output(id string, values ...float64) output {
	return output{id: id, encode: func() (arrow.Array, dora.Parameters, error) {
		return dorabridge.EncodeFloat64(values), nil, nil
	}}
}

func sendOutput(ctx context.Context, node dora.Node, out output) error {
	arr, params, err := out.encode()
	if err != nil {
		return err
	}
	defer arr.Release()
	if err := node.SendOutput(ctx, out.id, params, arr); err != nil {
		return fmt.Errorf("widgets: send %s: %w", out.id, err)
	}
	return nil
}

// outputSender implements the SendCommand half of bridges whose commands
// are outputs.
type outputSender struct {
	log *slog.Logger
}

func (s outputSender) SendCommand(ctx context.Context, node dora.Node, out output) error {
	s.log.Debug("sending output", "output", out.id)
	return sendOutput(ctx, node, out)
}

func defaultNodeID(nodeID string, t dorabridge.NodeType) string {
	if nodeID == "" {
		return t.NodeID()
	}
	return nodeID
}

// inputSuffix returns the part of id after prefix and an optional "_".
func inputSuffix(id, prefix string) string {
	return strings.TrimPrefix(strings.TrimPrefix(id, prefix), "_")
}

func ignoreOutput(log *slog.Logger, outputID string, d dorabridge.DoraData) {
	log.Warn("unknown output", "output", outputID, "kind", d.Kind())
}
