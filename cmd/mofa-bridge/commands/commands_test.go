package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mofa-org/dorabridge/cmd/mofa-bridge/internal/config"
	"github.com/mofa-org/dorabridge/pkg/cli"
	"github.com/mofa-org/dorabridge/pkg/dora"
	"github.com/mofa-org/dorabridge/pkg/dorabridge"
)

const testDataflow = `nodes:
  - id: mofa-cast-controller
    path: dynamic
    inputs:
      audio: tts/audio
    outputs:
      - text
  - id: tts
    path: tts.py
    inputs:
      text: mofa-cast-controller/text
    outputs:
      - audio
      - log
    env:
      VOICE: ${TTS_VOICE:-Doubao}
`

func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)
	return dir
}

func execute(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout, oldStderr := os.Stdout, os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout, os.Stderr = wOut, wErr

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); io.Copy(&outBuf, rOut) }()
	go func() { defer wg.Done(); io.Copy(&errBuf, rErr) }()

	verbose = false
	contextName = ""
	formatOutput = "yaml"
	outputFile = ""

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	wg.Wait()
	os.Stdout, os.Stderr = oldStdout, oldStderr

	stdout, stderr = outBuf.String(), errBuf.String()
	if err != nil {
		exitCode = 1
		stderr += err.Error()
	}
	resetFlags(rootCmd)
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func writeTestYAML(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// testGateway accepts every node registration and discards node outputs.
func testGateway(t *testing.T) string {
	t.Helper()
	var up websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var reg dora.Envelope
		if err := msgpack.Unmarshal(data, &reg); err != nil {
			return
		}
		reply, _ := msgpack.Marshal(&dora.Envelope{Type: dora.EnvelopeRegistered, Node: reg.Node, Session: reg.Session})
		if err := ws.WriteMessage(websocket.BinaryMessage, reply); err != nil {
			return
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestVersion(t *testing.T) {
	setupTestEnv(t)

	stdout, _, code := execute(t, "version")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(stdout, "mofa-bridge") {
		t.Fatalf("expected 'mofa-bridge', got: %s", stdout)
	}

	stdout, _, code = execute(t, "version", "-o", "json")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(stdout, `"version"`) {
		t.Fatalf("expected JSON, got: %s", stdout)
	}
}

func TestConfigContexts(t *testing.T) {
	setupTestEnv(t)

	stdout, _, code := execute(t, "config", "list-contexts")
	if code != 0 || !strings.Contains(stdout, "No contexts") {
		t.Fatalf("list-contexts on empty config: %d %s", code, stdout)
	}

	if stdout, _, code = execute(t, "config", "add-context", "local"); code != 0 || !strings.Contains(stdout, "created") {
		t.Fatalf("add-context: %d %s", code, stdout)
	}
	if _, stderr, code := execute(t, "config", "add-context", "local"); code == 0 || !strings.Contains(stderr, "already exists") {
		t.Fatalf("duplicate add-context: %d %s", code, stderr)
	}
	if _, _, code = execute(t, "config", "use-context", "local"); code != 0 {
		t.Fatalf("use-context exit %d", code)
	}
	if stdout, _, _ = execute(t, "config", "current-context"); strings.TrimSpace(stdout) != "local" {
		t.Fatalf("current-context = %q", stdout)
	}

	if _, stderr, code := execute(t, "config", "set", "local", "engine", "addr", "ws://10.0.0.2:6060"); code != 0 {
		t.Fatalf("set addr: %s", stderr)
	}
	if _, _, code := execute(t, "config", "set", "local", "engine", "connect_grace", "later"); code == 0 {
		t.Fatal("set with an invalid duration should fail")
	}

	stdout, stderr, code := execute(t, "config", "show", "-o", "json")
	if code != 0 {
		t.Fatalf("show: %s", stderr)
	}
	var shown map[string]any
	if err := json.Unmarshal([]byte(stdout), &shown); err != nil {
		t.Fatalf("show output is not JSON: %v\n%s", err, stdout)
	}
	if shown["addr"] != "ws://10.0.0.2:6060" {
		t.Errorf("shown = %v", shown)
	}

	stdout, _, _ = execute(t, "config", "list-contexts")
	if !strings.Contains(stdout, "*") || !strings.Contains(stdout, "engine") {
		t.Errorf("list-contexts = %s", stdout)
	}

	if _, _, code = execute(t, "config", "delete-context", "local"); code != 0 {
		t.Fatalf("delete-context exit %d", code)
	}
	if stdout, _, _ = execute(t, "config", "current-context"); !strings.Contains(stdout, "No current context") {
		t.Errorf("current-context after delete = %q", stdout)
	}
}

func TestParse(t *testing.T) {
	setupTestEnv(t)
	path := writeTestYAML(t, "cast.yml", testDataflow)

	stdout, stderr, code := execute(t, "parse", path, "-o", "json")
	if code != 0 {
		t.Fatalf("parse: %s", stderr)
	}
	var res struct {
		Nodes    []map[string]any `json:"nodes"`
		Bindings []struct {
			NodeID   string   `json:"node_id"`
			NodeType string   `json:"node_type"`
			Outputs  []string `json:"outputs"`
		} `json:"bindings"`
		Env        []map[string]any `json:"env"`
		LogSources []map[string]any `json:"log_sources"`
	}
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("parse output is not JSON: %v\n%s", err, stdout)
	}
	if len(res.Nodes) != 2 {
		t.Errorf("nodes = %v", res.Nodes)
	}
	if len(res.Bindings) != 1 || res.Bindings[0].NodeType != "mofa-cast-controller" || res.Bindings[0].Outputs[0] != "text" {
		t.Errorf("bindings = %+v", res.Bindings)
	}
	if len(res.Env) != 1 || res.Env[0]["variable"] != "TTS_VOICE" {
		t.Errorf("env = %v", res.Env)
	}
	if len(res.LogSources) != 1 || res.LogSources[0]["node"] != "tts" {
		t.Errorf("log_sources = %v", res.LogSources)
	}

	stdout, _, code = execute(t, "parse", path, "-o", "table")
	if code != 0 || !strings.Contains(stdout, "WIDGET") || !strings.Contains(stdout, "audio=tts/audio") {
		t.Errorf("table output: %d\n%s", code, stdout)
	}

	if _, _, code = execute(t, "parse", filepath.Join(t.TempDir(), "missing.yml")); code == 0 {
		t.Error("parse of a missing file should fail")
	}
}

func TestEnv(t *testing.T) {
	setupTestEnv(t)

	path := writeTestYAML(t, "cast.yml", testDataflow)
	stdout, stderr, code := execute(t, "env", path)
	if code != 0 {
		t.Fatalf("env: %s", stderr)
	}
	if !strings.Contains(stdout, "TTS_VOICE") || !strings.Contains(stdout, "default") {
		t.Errorf("env output = %s", stdout)
	}

	missing := writeTestYAML(t, "llm.yml", "nodes:\n  - id: llm\n    env:\n      KEY: $MOFA_BRIDGE_TEST_UNSET_KEY\n")
	stdout, stderr, code = execute(t, "env", missing)
	if code == 0 {
		t.Fatal("env should fail when a variable is missing")
	}
	if !strings.Contains(stdout, "missing") || !strings.Contains(stderr, "not set") {
		t.Errorf("stdout=%s stderr=%s", stdout, stderr)
	}
}

func TestRun(t *testing.T) {
	setupTestEnv(t)
	addr := testGateway(t)
	path := writeTestYAML(t, "cast.yml", testDataflow)

	stdout, stderr, code := execute(t, "run", path, "--addr", addr, "--duration", "300ms")
	if code != 0 {
		t.Fatalf("run: %s", stderr)
	}
	if !strings.Contains(stdout, "mofa-cast-controller") || !strings.Contains(stdout, "connected") {
		t.Errorf("run output = %s", stdout)
	}
}

func TestRun_NoWidgets(t *testing.T) {
	setupTestEnv(t)
	path := writeTestYAML(t, "plain.yml", "nodes:\n  - id: tts\n    path: tts.py\n")

	_, stderr, code := execute(t, "run", path, "--addr", "ws://127.0.0.1:1")
	if code == 0 || !strings.Contains(stderr, "no widget nodes") {
		t.Errorf("run without widgets: %d %s", code, stderr)
	}
}

func TestEventLine(t *testing.T) {
	s := cli.NewStyles(cli.DefaultTheme)
	audio := &dorabridge.AudioData{Samples: make([]float32, 12000), SampleRate: 24000, Channels: 1, ParticipantID: "alice"}

	tests := []struct {
		name string
		ev   dorabridge.BridgeEvent
		want []string
	}{
		{"connected", dorabridge.ConnectedEvent(), []string{"connected"}},
		{"error", dorabridge.ErrorEvent("boom"), []string{"error", "boom"}},
		{"audio", dorabridge.DataReceived("audio", dorabridge.AudioValue(audio), dorabridge.EventMetadata{}),
			[]string{"audio", "12000 samples", "24kHz", "500ms", "participant=alice"}},
		{"text", dorabridge.DataReceived("text", dorabridge.TextValue("hello\nworld"), dorabridge.EventMetadata{}),
			[]string{"text hello world"}},
		{"log", dorabridge.DataReceived("log", dorabridge.LogValue(&dorabridge.LogEntry{Level: dorabridge.LogWarning, NodeID: "tts", Message: "slow"}), dorabridge.EventMetadata{}),
			[]string{"tts: slow"}},
		{"control", dorabridge.DataReceived("control", dorabridge.ControlValue(dorabridge.ResetCommand()), dorabridge.EventMetadata{}),
			[]string{"control reset"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			line := eventLine(s, 20, "mofa-cast-controller", tc.ev)
			if !strings.Contains(line, "mofa-cast-controller") {
				t.Errorf("line %q lacks the node id", line)
			}
			for _, w := range tc.want {
				if !strings.Contains(line, w) {
					t.Errorf("line %q lacks %q", line, w)
				}
			}
		})
	}
}
