package dorabridge

import "testing"

func TestNodeType_Bijection(t *testing.T) {
	tests := []struct {
		typ NodeType
		id  string
	}{
		{NodeAudioPlayer, "mofa-audio-player"},
		{NodeSystemLog, "mofa-system-log"},
		{NodePromptInput, "mofa-prompt-input"},
		{NodeMicInput, "mofa-mic-input"},
		{NodeChatViewer, "mofa-chat-viewer"},
		{NodeParticipantPanel, "mofa-participant-panel"},
		{NodeMoFACast, "mofa-cast-controller"},
	}

	if len(AllNodeTypes()) != len(tests) {
		t.Fatalf("AllNodeTypes() has %d types; want %d", len(AllNodeTypes()), len(tests))
	}
	for _, tc := range tests {
		if got := tc.typ.NodeID(); got != tc.id {
			t.Errorf("%v.NodeID() = %q; want %q", tc.typ, got, tc.id)
		}
		got, ok := NodeTypeFromID(tc.id)
		if !ok || got != tc.typ {
			t.Errorf("NodeTypeFromID(%q) = %v, %v; want %v, true", tc.id, got, ok, tc.typ)
		}
		if !IsMofaNode(tc.id) {
			t.Errorf("IsMofaNode(%q) = false", tc.id)
		}
	}
}

func TestNodeTypeFromID_Unknown(t *testing.T) {
	for _, id := range []string{"", "mofa-", "mofa-anything", "cast-controller", "MOFA-CAST-CONTROLLER", "mofa-cast-controller "} {
		if typ, ok := NodeTypeFromID(id); ok {
			t.Errorf("NodeTypeFromID(%q) = %v; want no match", id, typ)
		}
	}
}

func TestIsMofaNode(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"mofa-anything", true},
		{"mofa-cast-controller", true},
		{"other-node", false},
		{"mofa", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := IsMofaNode(tc.id); got != tc.want {
			t.Errorf("IsMofaNode(%q) = %v; want %v", tc.id, got, tc.want)
		}
	}
}

func TestNodeType_OutOfRange(t *testing.T) {
	if id := NodeType(99).NodeID(); id != "" {
		t.Errorf("NodeType(99).NodeID() = %q; want empty", id)
	}
	if s := NodeType(-1).String(); s != "unknown" {
		t.Errorf("NodeType(-1).String() = %q; want unknown", s)
	}
}
