package widgets

import (
	"log/slog"

	"github.com/mofa-org/dorabridge/pkg/dora"
	"github.com/mofa-org/dorabridge/pkg/dorabridge"
)

// SystemLog collects log lines from every node wired to it. Each input is
// a log source; lines are parsed as JSON log entries when possible.
type SystemLog struct {
	*dorabridge.Worker[output]
	log    *slog.Logger
	inputs []string
}

// LogOption configures a SystemLog.
type LogOption func(*systemLogConfig)

type systemLogConfig struct {
	minLevel dorabridge.LogLevel
	inputs   []string
}

// WithMinLevel drops entries below level.
func WithMinLevel(level dorabridge.LogLevel) LogOption {
	return func(c *systemLogConfig) {
		c.minLevel = level
	}
}

// WithLogInputs declares the input ids reported by ExpectedInputs. Inputs
// are accepted regardless.
func WithLogInputs(ids ...string) LogOption {
	return func(c *systemLogConfig) {
		c.inputs = ids
	}
}

// NewSystemLog creates a system log bridge. An empty nodeID selects
// "mofa-system-log".
func NewSystemLog(nodeID string, opts dorabridge.Options, options ...LogOption) *SystemLog {
	nodeID = defaultNodeID(nodeID, dorabridge.NodeSystemLog)
	log := dorabridge.NodeLogger(opts, nodeID)
	cfg := systemLogConfig{minLevel: dorabridge.LogDebug, inputs: []string{"log"}}
	for _, o := range options {
		o(&cfg)
	}
	h := &logHandler{outputSender: outputSender{log: log}, minLevel: cfg.minLevel}
	return &SystemLog{
		Worker: dorabridge.NewWorker[output](nodeID, h, opts, 0),
		log:    log,
		inputs: cfg.inputs,
	}
}

// Send implements dorabridge.Bridge. The system log has no outputs.
func (s *SystemLog) Send(outputID string, data dorabridge.DoraData) error {
	if !s.IsConnected() {
		return dorabridge.ErrNotConnected
	}
	ignoreOutput(s.log, outputID, data)
	return nil
}

// ExpectedInputs implements dorabridge.Bridge.
func (s *SystemLog) ExpectedInputs() []string {
	return append([]string(nil), s.inputs...)
}

// ExpectedOutputs implements dorabridge.Bridge.
func (s *SystemLog) ExpectedOutputs() []string {
	return nil
}

type logHandler struct {
	outputSender
	minLevel dorabridge.LogLevel
}

func (h *logHandler) HandleInput(in *dora.Input, emit func(dorabridge.BridgeEvent)) {
	text, ok := dorabridge.ExtractText(in.Data)
	if !ok {
		h.log.Debug("no text in log input", "input", in.ID)
		return
	}
	meta := dorabridge.MetadataFromParameters(in.Metadata.Parameters)
	source := in.ID
	if v, ok := meta.Get(dorabridge.ParamNode); ok && v != "" {
		source = v
	}
	entry := dorabridge.ParseLogEntry(text, source)
	if entry.Level < h.minLevel {
		return
	}
	emit(dorabridge.DataReceived(in.ID, dorabridge.LogValue(entry), meta))
}

var _ dorabridge.Bridge = (*SystemLog)(nil)
