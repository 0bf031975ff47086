// Package dorabridge connects UI-facing widgets to a dora dataflow.
//
// Every widget (audio player, system log, prompt input, mic input, cast
// controller) joins the dataflow as its own dynamic node and is represented
// to the application by a [Bridge]:
//
//	MoFA app
//	  ├── mofa-audio-player     (dynamic node)
//	  ├── mofa-system-log       (dynamic node)
//	  ├── mofa-prompt-input     (dynamic node)
//	  └── mofa-cast-controller  (dynamic node)
//	         ↓
//	    dora dataflow
//
// A bridge owns one worker goroutine per connection. The worker registers
// with the engine, then loops: drain queued commands and send them, poll the
// engine with a bounded timeout, decode inputs and forward them as
// [BridgeEvent] values. The owner only touches channels:
//
//	b := widgets.NewCastController("", opts)
//	if err := b.Connect(); err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	b.Send("text", dorabridge.TextValue("hello"))
//	for ev := range b.Subscribe() {
//	    ...
//	}
//
// Key types:
//   - [Bridge]: the contract every widget bridge implements.
//   - [Worker]: reusable connection lifecycle embedded by concrete bridges.
//   - [DoraData]: tagged payload (audio, text, log, chat, control, empty).
//   - [NodeType]: the closed set of known "mofa-" node ids.
//
// Inputs arrive as Arrow arrays; [ExtractAudio] and [ExtractText] decode the
// encodings producers are known to use.
package dorabridge
