package widgets

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mofa-org/dorabridge/pkg/dora"
	"github.com/mofa-org/dorabridge/pkg/dorabridge"
)

// CastSendDelay is slept after every text segment so the TTS node, which
// synthesizes one segment at a time, is not flooded.
const CastSendDelay = 100 * time.Millisecond

// CastController sends script segments to a TTS node and receives the
// synthesized audio, segment completion signals and TTS logs.
type CastController struct {
	*dorabridge.Worker[string]
	log *slog.Logger
}

// NewCastController creates a cast controller bridge. An empty nodeID
// selects "mofa-cast-controller".
func NewCastController(nodeID string, opts dorabridge.Options) *CastController {
	nodeID = defaultNodeID(nodeID, dorabridge.NodeMoFACast)
	log := dorabridge.NodeLogger(opts, nodeID)
	return &CastController{
		Worker: dorabridge.NewWorker[string](nodeID, castHandler{log: log}, opts, CastSendDelay),
		log:    log,
	}
}

// SendText queues one text segment for the "text" output.
func (c *CastController) SendText(text string) error {
	return c.Send("text", dorabridge.TextValue(text))
}

// Send implements dorabridge.Bridge.
func (c *CastController) Send(outputID string, data dorabridge.DoraData) error {
	if !c.IsConnected() {
		return dorabridge.ErrNotConnected
	}
	text, ok := data.Text()
	if outputID != "text" || !ok {
		ignoreOutput(c.log, outputID, data)
		return nil
	}
	c.log.Debug("queueing text", "chars", len(text))
	return c.Enqueue(text)
}

// ExpectedInputs implements dorabridge.Bridge.
func (c *CastController) ExpectedInputs() []string {
	return []string{"audio", "segment_complete", "log", "log_tts"}
}

// ExpectedOutputs implements dorabridge.Bridge.
func (c *CastController) ExpectedOutputs() []string {
	return []string{"text"}
}

type castHandler struct {
	log *slog.Logger
}

func (h castHandler) SendCommand(ctx context.Context, node dora.Node, text string) error {
	h.log.Debug("sending text", "chars", len(text))
	return sendOutput(ctx, node, dataOutput("text", dorabridge.TextValue(text)))
}

func (h castHandler) HandleInput(in *dora.Input, emit func(dorabridge.BridgeEvent)) {
	meta := dorabridge.MetadataFromParameters(in.Metadata.Parameters)
	switch {
	case strings.HasPrefix(in.ID, "audio"):
		audio, ok := dorabridge.ExtractAudio(in.Data, meta)
		if !ok {
			h.log.Warn("no audio in input", "input", in.ID)
			return
		}
		h.log.Debug("audio received", "input", in.ID, "samples", len(audio.Samples), "rate", audio.SampleRate)
		emit(dorabridge.DataReceived(in.ID, dorabridge.AudioValue(audio), meta))
	case strings.HasPrefix(in.ID, "segment_complete"):
		h.log.Debug("segment complete", "input", in.ID)
		emit(dorabridge.DataReceived(in.ID, dorabridge.Empty(), meta))
	case in.ID == "log" || in.ID == "log_tts":
		text, ok := dorabridge.ExtractText(in.Data)
		if !ok {
			h.log.Warn("no text in log input", "input", in.ID)
			return
		}
		emit(dorabridge.DataReceived(in.ID, dorabridge.LogValue(dorabridge.ParseLogEntry(text, in.ID)), meta))
	default:
		h.log.Debug("unhandled input", "input", in.ID)
	}
}

var _ dorabridge.Bridge = (*CastController)(nil)
