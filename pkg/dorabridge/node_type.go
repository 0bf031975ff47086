package dorabridge

import "strings"

// NodePrefix marks MoFA built-in dynamic nodes in a dataflow.
const NodePrefix = "mofa-"

// NodeType is a known MoFA widget node.
type NodeType int

const (
	// NodeAudioPlayer receives audio for playback.
	NodeAudioPlayer NodeType = iota
	// NodeSystemLog receives logs from many nodes.
	NodeSystemLog
	// NodePromptInput sends user prompts to an LLM.
	NodePromptInput
	// NodeMicInput publishes captured microphone audio.
	NodeMicInput
	// NodeChatViewer displays the conversation.
	NodeChatViewer
	// NodeParticipantPanel receives audio to compute speaker levels.
	NodeParticipantPanel
	// NodeMoFACast sends script segments to TTS and receives audio.
	NodeMoFACast
)

var nodeTypeIDs = [...]string{
	NodeAudioPlayer:      "mofa-audio-player",
	NodeSystemLog:        "mofa-system-log",
	NodePromptInput:      "mofa-prompt-input",
	NodeMicInput:         "mofa-mic-input",
	NodeChatViewer:       "mofa-chat-viewer",
	NodeParticipantPanel: "mofa-participant-panel",
	NodeMoFACast:         "mofa-cast-controller",
}

// NodeID returns the fixed dataflow node id of t.
func (t NodeType) NodeID() string {
	if t < 0 || int(t) >= len(nodeTypeIDs) {
		return ""
	}
	return nodeTypeIDs[t]
}

// String returns the node id.
func (t NodeType) String() string {
	if id := t.NodeID(); id != "" {
		return id
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (t NodeType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// NodeTypeFromID returns the node type registered under id.
func NodeTypeFromID(id string) (NodeType, bool) {
	for i, known := range nodeTypeIDs {
		if known == id {
			return NodeType(i), true
		}
	}
	return 0, false
}

// IsMofaNode reports whether id carries the MoFA node prefix.
func IsMofaNode(id string) bool {
	return strings.HasPrefix(id, NodePrefix)
}

// AllNodeTypes returns every known node type.
func AllNodeTypes() []NodeType {
	types := make([]NodeType, len(nodeTypeIDs))
	for i := range nodeTypeIDs {
		types[i] = NodeType(i)
	}
	return types
}
