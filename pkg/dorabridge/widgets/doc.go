// Package widgets implements the bridges of the MoFA widget nodes.
//
// Each bridge embeds a [dorabridge.Worker] and adds the routing of its
// widget: which inputs it decodes and which outputs it sends.
//
//	Bridge         Node id                  Inputs                         Outputs
//	CastController mofa-cast-controller     audio*, segment_complete*, log text
//	AudioPlayer    mofa-audio-player        audio*                         buffer_status, session_start
//	SystemLog      mofa-system-log          any                            -
//	PromptInput    mofa-prompt-input        text*, llm*_text, status, log  prompt, control
//	MicInput       mofa-mic-input           control                        audio
//
// The participant panel and chat viewer nodes reuse AudioPlayer and
// PromptInput under their own node ids.
package widgets
