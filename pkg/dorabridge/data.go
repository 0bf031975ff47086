package dorabridge

// DataKind identifies the active variant of DoraData.
type DataKind int

const (
	KindEmpty DataKind = iota
	KindAudio
	KindText
	KindLog
	KindChat
	KindControl
)

// String returns the string representation of the kind.
func (k DataKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	case KindLog:
		return "log"
	case KindChat:
		return "chat"
	case KindControl:
		return "control"
	default:
		return "empty"
	}
}

// DoraData is a payload crossing the bridge. Exactly one variant is active;
// the zero value is Empty.
type DoraData struct {
	kind    DataKind
	audio   *AudioData
	text    string
	log     *LogEntry
	chat    *ChatMessage
	control *ControlCommand
}

// Empty returns the empty payload, used for pure signals.
func Empty() DoraData {
	return DoraData{}
}

// AudioValue wraps audio samples.
func AudioValue(a *AudioData) DoraData {
	return DoraData{kind: KindAudio, audio: a}
}

// TextValue wraps a text payload.
func TextValue(s string) DoraData {
	return DoraData{kind: KindText, text: s}
}

// LogValue wraps a log entry.
func LogValue(e *LogEntry) DoraData {
	return DoraData{kind: KindLog, log: e}
}

// ChatValue wraps a chat message.
func ChatValue(m *ChatMessage) DoraData {
	return DoraData{kind: KindChat, chat: m}
}

// ControlValue wraps a control command.
func ControlValue(c *ControlCommand) DoraData {
	return DoraData{kind: KindControl, control: c}
}

// Kind returns the active variant.
func (d DoraData) Kind() DataKind {
	return d.kind
}

// IsEmpty reports whether d is the empty payload.
func (d DoraData) IsEmpty() bool {
	return d.kind == KindEmpty
}

// Audio returns the audio payload.
func (d DoraData) Audio() (*AudioData, bool) {
	return d.audio, d.kind == KindAudio
}

// Text returns the text payload.
func (d DoraData) Text() (string, bool) {
	return d.text, d.kind == KindText
}

// Log returns the log payload.
func (d DoraData) Log() (*LogEntry, bool) {
	return d.log, d.kind == KindLog
}

// Chat returns the chat payload.
func (d DoraData) Chat() (*ChatMessage, bool) {
	return d.chat, d.kind == KindChat
}

// Control returns the control payload.
func (d DoraData) Control() (*ControlCommand, bool) {
	return d.control, d.kind == KindControl
}

// MessageRole is the author role of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ChatMessage is one (possibly partial) conversation message.
type ChatMessage struct {
	Content     string      `json:"content"`
	Sender      string      `json:"sender"`
	Role        MessageRole `json:"role"`
	Timestamp   Millis      `json:"timestamp"`
	IsStreaming bool        `json:"is_streaming,omitempty"`
	SessionID   string      `json:"session_id,omitempty"`
}

// ControlCommand is a command for dataflow nodes, e.g. "start" or "reset".
type ControlCommand struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// NewControlCommand creates a command with no parameters.
func NewControlCommand(action string) *ControlCommand {
	return &ControlCommand{Action: action}
}

// StartCommand returns the "start" command.
func StartCommand() *ControlCommand { return NewControlCommand("start") }

// StopCommand returns the "stop" command.
func StopCommand() *ControlCommand { return NewControlCommand("stop") }

// ResetCommand returns the "reset" command.
func ResetCommand() *ControlCommand { return NewControlCommand("reset") }

// With returns c with key set to value.
func (c *ControlCommand) With(key string, value any) *ControlCommand {
	if c.Params == nil {
		c.Params = make(map[string]any)
	}
	c.Params[key] = value
	return c
}
