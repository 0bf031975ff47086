package dorabridge

import (
	"encoding/json"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/mofa-org/dorabridge/pkg/dora"
)

// EncodeText builds a one-element utf8 array.
func EncodeText(s string) arrow.Array {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.Append(s)
	return b.NewArray()
}

// EncodeFloat32 builds a float32 array of samples.
func EncodeFloat32(samples []float32) arrow.Array {
	b := array.NewFloat32Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(samples, nil)
	return b.NewArray()
}

// EncodeFloat64 builds a float64 array.
func EncodeFloat64(values []float64) arrow.Array {
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	return b.NewArray()
}

// EncodeInt16 quantizes samples to int16 PCM. Values are clamped to
// [-1, 1) before scaling by 32768.
func EncodeInt16(samples []float32) arrow.Array {
	b := array.NewInt16Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Reserve(len(samples))
	for _, s := range samples {
		v := float64(s) * 32768
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		b.UnsafeAppend(int16(v))
	}
	return b.NewArray()
}

// EncodeAudio builds the float32 array and parameters for a.
func EncodeAudio(a *AudioData) (arrow.Array, dora.Parameters) {
	params := dora.Parameters{ParamSampleRate: int64(a.SampleRate)}
	if a.ParticipantID != "" {
		params[ParamParticipantID] = a.ParticipantID
	}
	if a.QuestionID != "" {
		params[ParamQuestionID] = a.QuestionID
	}
	return EncodeFloat32(a.Samples), params
}

// EncodeJSON marshals v into a one-element utf8 array.
func EncodeJSON(v any) (arrow.Array, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dorabridge: encode json: %w", err)
	}
	return EncodeText(string(b)), nil
}

// EncodeData converts a payload to the array sent to the engine. Structured
// payloads travel as JSON text; Empty becomes a zero-length null array.
func EncodeData(d DoraData) (arrow.Array, dora.Parameters, error) {
	switch d.Kind() {
	case KindAudio:
		a, _ := d.Audio()
		if a == nil {
			return nil, nil, fmt.Errorf("dorabridge: encode: nil audio")
		}
		arr, params := EncodeAudio(a)
		return arr, params, nil
	case KindText:
		s, _ := d.Text()
		return EncodeText(s), nil, nil
	case KindLog:
		e, _ := d.Log()
		arr, err := EncodeJSON(e)
		return arr, nil, err
	case KindChat:
		m, _ := d.Chat()
		arr, err := EncodeJSON(m)
		return arr, nil, err
	case KindControl:
		c, _ := d.Control()
		arr, err := EncodeJSON(c)
		return arr, nil, err
	default:
		return array.NewNull(0), nil, nil
	}
}
