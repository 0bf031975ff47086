package widgets

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/mofa-org/dorabridge/pkg/dora"
	"github.com/mofa-org/dorabridge/pkg/dorabridge"
)

// AudioPlayer receives audio for playback and reports the playback buffer
// fill level back to the dataflow.
//
// Audio inputs may carry a participant in their id ("audio_student1") or
// in the participant_id parameter; the parameter wins.
type AudioPlayer struct {
	*dorabridge.Worker[output]
	log *slog.Logger
}

// PlayerOption configures an AudioPlayer.
type PlayerOption func(*audioHandler)

// WithOutputSampleRate resamples received audio to rate.
func WithOutputSampleRate(rate int) PlayerOption {
	return func(h *audioHandler) {
		h.outputRate = rate
	}
}

// NewAudioPlayer creates an audio player bridge. An empty nodeID selects
// "mofa-audio-player".
func NewAudioPlayer(nodeID string, opts dorabridge.Options, options ...PlayerOption) *AudioPlayer {
	nodeID = defaultNodeID(nodeID, dorabridge.NodeAudioPlayer)
	log := dorabridge.NodeLogger(opts, nodeID)
	h := &audioHandler{outputSender: outputSender{log: log}}
	for _, o := range options {
		o(h)
	}
	return &AudioPlayer{
		Worker: dorabridge.NewWorker[output](nodeID, h, opts, 0),
		log:    log,
	}
}

// NewParticipantPanel creates an AudioPlayer registered as the participant
// panel node, which only consumes audio levels.
func NewParticipantPanel(nodeID string, opts dorabridge.Options) *AudioPlayer {
	return NewAudioPlayer(defaultNodeID(nodeID, dorabridge.NodeParticipantPanel), opts)
}

// SendBufferStatus reports the playback buffer fill ratio in [0, 1].
func (p *AudioPlayer) SendBufferStatus(ratio float64) error {
	if !p.IsConnected() {
		return dorabridge.ErrNotConnected
	}
	return p.Enqueue(float64Output("buffer_status", clamp01(ratio)))
}

// Send implements dorabridge.Bridge. "buffer_status" accepts a numeric
// text payload; "session_start" accepts a control command.
func (p *AudioPlayer) Send(outputID string, data dorabridge.DoraData) error {
	if !p.IsConnected() {
		return dorabridge.ErrNotConnected
	}
	switch outputID {
	case "buffer_status":
		if s, ok := data.Text(); ok {
			ratio, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				p.log.Warn("invalid buffer status", "value", s)
				return nil
			}
			return p.Enqueue(float64Output(outputID, clamp01(ratio)))
		}
	case "session_start":
		if data.Kind() == dorabridge.KindControl {
			return p.Enqueue(dataOutput(outputID, data))
		}
	}
	ignoreOutput(p.log, outputID, data)
	return nil
}

// ExpectedInputs implements dorabridge.Bridge.
func (p *AudioPlayer) ExpectedInputs() []string {
	return []string{"audio"}
}

// ExpectedOutputs implements dorabridge.Bridge.
func (p *AudioPlayer) ExpectedOutputs() []string {
	return []string{"buffer_status", "session_start"}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

type audioHandler struct {
	outputSender
	outputRate int
}

func (h *audioHandler) HandleInput(in *dora.Input, emit func(dorabridge.BridgeEvent)) {
	if !strings.HasPrefix(in.ID, "audio") {
		h.log.Debug("unhandled input", "input", in.ID)
		return
	}
	meta := dorabridge.MetadataFromParameters(in.Metadata.Parameters)
	audio, ok := dorabridge.ExtractAudio(in.Data, meta)
	if !ok {
		h.log.Warn("no audio in input", "input", in.ID)
		return
	}

	audio.ParticipantID = inputSuffix(in.ID, "audio")
	if v, ok := meta.Get(dorabridge.ParamParticipantID); ok && v != "" {
		audio.ParticipantID = v
	}
	if v, ok := meta.Get(dorabridge.ParamQuestionID); ok {
		audio.QuestionID = v
	}

	if h.outputRate > 0 && audio.SampleRate != h.outputRate {
		resampled, err := audio.Resample(h.outputRate)
		if err != nil {
			h.log.Warn("resample failed", "input", in.ID, "error", err)
			return
		}
		audio = resampled
	}
	emit(dorabridge.DataReceived(in.ID, dorabridge.AudioValue(audio), meta))
}

var _ dorabridge.Bridge = (*AudioPlayer)(nil)
