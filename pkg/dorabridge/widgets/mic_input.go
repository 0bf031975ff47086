package widgets

import (
	"log/slog"

	"github.com/mofa-org/dorabridge/pkg/dora"
	"github.com/mofa-org/dorabridge/pkg/dorabridge"
)

// MicInput publishes captured microphone audio and receives control
// commands such as "start" and "stop" for the capture.
type MicInput struct {
	*dorabridge.Worker[output]
	log *slog.Logger
}

// NewMicInput creates a mic input bridge. An empty nodeID selects
// "mofa-mic-input".
func NewMicInput(nodeID string, opts dorabridge.Options) *MicInput {
	nodeID = defaultNodeID(nodeID, dorabridge.NodeMicInput)
	log := dorabridge.NodeLogger(opts, nodeID)
	h := &micHandler{outputSender: outputSender{log: log}}
	return &MicInput{
		Worker: dorabridge.NewWorker[output](nodeID, h, opts, 0),
		log:    log,
	}
}

// SendAudio queues captured samples for the "audio" output.
func (m *MicInput) SendAudio(a *dorabridge.AudioData) error {
	return m.Send("audio", dorabridge.AudioValue(a))
}

// Send implements dorabridge.Bridge.
func (m *MicInput) Send(outputID string, data dorabridge.DoraData) error {
	if !m.IsConnected() {
		return dorabridge.ErrNotConnected
	}
	if a, ok := data.Audio(); outputID == "audio" && ok && a != nil && len(a.Samples) > 0 {
		return m.Enqueue(dataOutput(outputID, data))
	}
	ignoreOutput(m.log, outputID, data)
	return nil
}

// ExpectedInputs implements dorabridge.Bridge.
func (m *MicInput) ExpectedInputs() []string {
	return []string{"control"}
}

// ExpectedOutputs implements dorabridge.Bridge.
func (m *MicInput) ExpectedOutputs() []string {
	return []string{"audio"}
}

type micHandler struct {
	outputSender
}

func (h *micHandler) HandleInput(in *dora.Input, emit func(dorabridge.BridgeEvent)) {
	if in.ID != "control" {
		h.log.Debug("unhandled input", "input", in.ID)
		return
	}
	text, ok := dorabridge.ExtractText(in.Data)
	if !ok {
		h.log.Debug("no text in control input", "input", in.ID)
		return
	}
	cmd, err := dorabridge.ParseControlCommand(text)
	if err != nil {
		h.log.Warn("invalid control command", "error", err)
		return
	}
	emit(dorabridge.DataReceived(in.ID, dorabridge.ControlValue(cmd), dorabridge.MetadataFromParameters(in.Metadata.Parameters)))
}

var _ dorabridge.Bridge = (*MicInput)(nil)
