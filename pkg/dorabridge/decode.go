package dorabridge

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ExtractAudio decodes an audio record. Accepted encodings:
//
//   - float32 arrays, copied verbatim
//   - float64 arrays, narrowed to float32
//   - int16 arrays, normalized by 1/32768
//   - single-element list arrays whose element is a non-empty float32 or
//     float64 array (producers that send pa.array([samples]))
//
// Anything else, empty arrays and lists of more than one element yield
// false. The sample rate comes from
// the sample_rate parameter or DefaultSampleRate; audio is always mono.
func ExtractAudio(arr arrow.Array, meta EventMetadata) (*AudioData, bool) {
	if arr == nil || arr.Len() == 0 {
		return nil, false
	}

	var samples []float32
	switch a := arr.(type) {
	case *array.Float32, *array.Float64:
		var ok bool
		if samples, ok = floatSamples(a); !ok {
			return nil, false
		}
	case *array.Int16:
		vals := a.Int16Values()
		samples = make([]float32, len(vals))
		for i, v := range vals {
			samples[i] = float32(v) / 32768
		}
	case array.ListLike:
		inner, ok := onlyListElement(a)
		if !ok {
			return nil, false
		}
		samples, ok = floatSamples(inner)
		inner.Release()
		if !ok {
			return nil, false
		}
	default:
		return nil, false
	}

	return &AudioData{
		Samples:    samples,
		SampleRate: meta.SampleRate(DefaultSampleRate),
		Channels:   1,
	}, true
}

func floatSamples(arr arrow.Array) ([]float32, bool) {
	switch a := arr.(type) {
	case *array.Float32:
		return append([]float32(nil), a.Float32Values()...), true
	case *array.Float64:
		vals := a.Float64Values()
		samples := make([]float32, len(vals))
		for i, v := range vals {
			samples[i] = float32(v)
		}
		return samples, true
	default:
		return nil, false
	}
}

// onlyListElement returns the values of a list holding exactly one
// non-empty element.
func onlyListElement(l array.ListLike) (arrow.Array, bool) {
	if l.Len() != 1 || l.IsNull(0) {
		return nil, false
	}
	start, end := l.ValueOffsets(0)
	if end <= start {
		return nil, false
	}
	return array.NewSlice(l.ListValues(), start, end), true
}

// ExtractText returns the first element of a utf8 or large utf8 array.
func ExtractText(arr arrow.Array) (string, bool) {
	if arr == nil || arr.Len() == 0 || arr.IsNull(0) {
		return "", false
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(0), true
	case *array.LargeString:
		return a.Value(0), true
	default:
		return "", false
	}
}
