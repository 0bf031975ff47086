package widgets

import (
	"log/slog"
	"strings"

	"github.com/mofa-org/dorabridge/pkg/dora"
	"github.com/mofa-org/dorabridge/pkg/dorabridge"
)

// PromptInput sends user prompts and control commands into the dataflow
// and receives the streamed LLM replies.
//
// Inputs named "text*" or "llm*_text" are LLM chunks and arrive as
// assistant chat messages. A chunk is streaming until its session_status
// parameter is "ended". Inputs "status" and "log" arrive as plain text.
type PromptInput struct {
	*dorabridge.Worker[output]
	log *slog.Logger
}

// NewPromptInput creates a prompt input bridge. An empty nodeID selects
// "mofa-prompt-input".
func NewPromptInput(nodeID string, opts dorabridge.Options) *PromptInput {
	nodeID = defaultNodeID(nodeID, dorabridge.NodePromptInput)
	log := dorabridge.NodeLogger(opts, nodeID)
	h := &promptHandler{outputSender: outputSender{log: log}}
	return &PromptInput{
		Worker: dorabridge.NewWorker[output](nodeID, h, opts, 0),
		log:    log,
	}
}

// NewChatViewer creates a PromptInput registered as the chat viewer node.
// The viewer only consumes the conversation.
func NewChatViewer(nodeID string, opts dorabridge.Options) *PromptInput {
	return NewPromptInput(defaultNodeID(nodeID, dorabridge.NodeChatViewer), opts)
}

// SendPrompt queues a user prompt.
func (p *PromptInput) SendPrompt(text string) error {
	return p.Send("prompt", dorabridge.TextValue(text))
}

// SendControl queues a control command.
func (p *PromptInput) SendControl(cmd *dorabridge.ControlCommand) error {
	return p.Send("control", dorabridge.ControlValue(cmd))
}

// Send implements dorabridge.Bridge. "prompt" accepts text or a chat
// message; "control" accepts a control command or its text form.
func (p *PromptInput) Send(outputID string, data dorabridge.DoraData) error {
	if !p.IsConnected() {
		return dorabridge.ErrNotConnected
	}
	switch outputID {
	case "prompt":
		switch data.Kind() {
		case dorabridge.KindText:
			return p.Enqueue(dataOutput(outputID, data))
		case dorabridge.KindChat:
			if m, _ := data.Chat(); m != nil {
				return p.Enqueue(dataOutput(outputID, dorabridge.TextValue(m.Content)))
			}
		}
	case "control":
		switch data.Kind() {
		case dorabridge.KindControl:
			return p.Enqueue(dataOutput(outputID, data))
		case dorabridge.KindText:
			s, _ := data.Text()
			cmd, err := dorabridge.ParseControlCommand(s)
			if err != nil {
				p.log.Warn("invalid control command", "value", s)
				return nil
			}
			return p.Enqueue(dataOutput(outputID, dorabridge.ControlValue(cmd)))
		}
	}
	ignoreOutput(p.log, outputID, data)
	return nil
}

// ExpectedInputs implements dorabridge.Bridge.
func (p *PromptInput) ExpectedInputs() []string {
	return []string{"text", "status", "log"}
}

// ExpectedOutputs implements dorabridge.Bridge.
func (p *PromptInput) ExpectedOutputs() []string {
	return []string{"prompt", "control"}
}

type promptHandler struct {
	outputSender
}

func isLLMText(id string) bool {
	return strings.HasPrefix(id, "text") ||
		(strings.HasPrefix(id, "llm") && strings.HasSuffix(id, "_text"))
}

func (h *promptHandler) HandleInput(in *dora.Input, emit func(dorabridge.BridgeEvent)) {
	meta := dorabridge.MetadataFromParameters(in.Metadata.Parameters)
	text, ok := dorabridge.ExtractText(in.Data)
	if !ok {
		h.log.Debug("no text in input", "input", in.ID)
		return
	}

	switch {
	case isLLMText(in.ID):
		sender := in.ID
		if v, ok := meta.Get(dorabridge.ParamNode); ok && v != "" {
			sender = v
		}
		status, _ := meta.Get(dorabridge.ParamSessionStatus)
		session, _ := meta.Get(dorabridge.ParamSessionID)
		emit(dorabridge.DataReceived(in.ID, dorabridge.ChatValue(&dorabridge.ChatMessage{
			Content:     text,
			Sender:      sender,
			Role:        dorabridge.RoleAssistant,
			Timestamp:   dorabridge.NowMillis(),
			IsStreaming: status != "ended",
			SessionID:   session,
		}), meta))
	case in.ID == "status" || in.ID == "log":
		emit(dorabridge.DataReceived(in.ID, dorabridge.TextValue(text), meta))
	default:
		h.log.Debug("unhandled input", "input", in.ID)
	}
}

var _ dorabridge.Bridge = (*PromptInput)(nil)
