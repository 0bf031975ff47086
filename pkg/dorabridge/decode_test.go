package dorabridge

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/mofa-org/dorabridge/pkg/dora"
)

func noMeta() EventMetadata {
	return MetadataFromParameters(nil)
}

func float64List(t *testing.T, lists ...[]float64) arrow.Array {
	t.Helper()
	b := array.NewListBuilder(memory.DefaultAllocator, arrow.PrimitiveTypes.Float64)
	defer b.Release()
	vb := b.ValueBuilder().(*array.Float64Builder)
	for _, l := range lists {
		b.Append(true)
		vb.AppendValues(l, nil)
	}
	return b.NewArray()
}

func TestExtractAudio_Float32(t *testing.T) {
	in := []float32{0.1, -0.2, 0.3}
	arr := EncodeFloat32(in)
	defer arr.Release()

	a, ok := ExtractAudio(arr, noMeta())
	if !ok {
		t.Fatal("ExtractAudio returned false")
	}
	if len(a.Samples) != len(in) {
		t.Fatalf("len = %d; want %d", len(a.Samples), len(in))
	}
	for i := range in {
		if a.Samples[i] != in[i] {
			t.Errorf("sample[%d] = %v; want %v", i, a.Samples[i], in[i])
		}
	}
	if a.SampleRate != DefaultSampleRate || a.Channels != 1 {
		t.Errorf("rate/channels = %d/%d; want %d/1", a.SampleRate, a.Channels, DefaultSampleRate)
	}
}

func TestExtractAudio_Float64(t *testing.T) {
	arr := EncodeFloat64([]float64{0.25, -1})
	defer arr.Release()

	a, ok := ExtractAudio(arr, noMeta())
	if !ok {
		t.Fatal("ExtractAudio returned false")
	}
	if len(a.Samples) != 2 || a.Samples[0] != 0.25 || a.Samples[1] != -1 {
		t.Errorf("samples = %v", a.Samples)
	}
}

func TestExtractAudio_Int16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999, -1, 0.123}
	arr := EncodeInt16(in)
	defer arr.Release()

	a, ok := ExtractAudio(arr, noMeta())
	if !ok {
		t.Fatal("ExtractAudio returned false")
	}
	if len(a.Samples) != len(in) {
		t.Fatalf("len = %d; want %d", len(a.Samples), len(in))
	}
	const step = 1.0 / 32768
	for i := range in {
		if d := math.Abs(float64(a.Samples[i] - in[i])); d > step {
			t.Errorf("sample[%d] = %v; want %v within %v", i, a.Samples[i], in[i], step)
		}
	}
}

func TestExtractAudio_Int16Normalization(t *testing.T) {
	b := array.NewInt16Builder(memory.DefaultAllocator)
	b.AppendValues([]int16{-32768, 16384, 32767}, nil)
	arr := b.NewArray()
	b.Release()
	defer arr.Release()

	a, ok := ExtractAudio(arr, noMeta())
	if !ok {
		t.Fatal("ExtractAudio returned false")
	}
	want := []float32{-1, 0.5, 32767.0 / 32768}
	for i := range want {
		if a.Samples[i] != want[i] {
			t.Errorf("sample[%d] = %v; want %v", i, a.Samples[i], want[i])
		}
	}
}

func TestExtractAudio_NestedList(t *testing.T) {
	arr := float64List(t, []float64{0.5, -0.5})
	defer arr.Release()

	a, ok := ExtractAudio(arr, noMeta())
	if !ok {
		t.Fatal("ExtractAudio returned false")
	}
	if len(a.Samples) != 2 || a.Samples[0] != 0.5 || a.Samples[1] != -0.5 {
		t.Errorf("samples = %v; want [0.5 -0.5]", a.Samples)
	}
	if a.SampleRate != 24000 {
		t.Errorf("sample rate = %d; want 24000", a.SampleRate)
	}
}

func TestExtractAudio_NestedListFloat32(t *testing.T) {
	b := array.NewLargeListBuilder(memory.DefaultAllocator, arrow.PrimitiveTypes.Float32)
	vb := b.ValueBuilder().(*array.Float32Builder)
	b.Append(true)
	vb.AppendValues([]float32{1, 2, 3}, nil)
	arr := b.NewArray()
	b.Release()
	defer arr.Release()

	a, ok := ExtractAudio(arr, noMeta())
	if !ok {
		t.Fatal("ExtractAudio returned false")
	}
	if len(a.Samples) != 3 || a.Samples[2] != 3 {
		t.Errorf("samples = %v", a.Samples)
	}
}

func TestExtractAudio_NoResult(t *testing.T) {
	emptyList := float64List(t)
	defer emptyList.Release()
	emptyInner := float64List(t, []float64{})
	defer emptyInner.Release()
	twoLists := float64List(t, []float64{0.1}, []float64{0.2})
	defer twoLists.Release()

	bb := array.NewBooleanBuilder(memory.DefaultAllocator)
	bb.AppendValues([]bool{true, false}, nil)
	bools := bb.NewArray()
	bb.Release()
	defer bools.Release()

	lb := array.NewListBuilder(memory.DefaultAllocator, arrow.PrimitiveTypes.Int32)
	lb.Append(true)
	lb.ValueBuilder().(*array.Int32Builder).AppendValues([]int32{1, 2}, nil)
	intList := lb.NewArray()
	lb.Release()
	defer intList.Release()

	empty := EncodeFloat32(nil)
	defer empty.Release()

	text := EncodeText("hello")
	defer text.Release()

	tests := []struct {
		name string
		arr  arrow.Array
	}{
		{"nil", nil},
		{"empty float32", empty},
		{"empty list", emptyList},
		{"empty inner array", emptyInner},
		{"two element list", twoLists},
		{"boolean", bools},
		{"int list", intList},
		{"string", text},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if a, ok := ExtractAudio(tc.arr, noMeta()); ok {
				t.Errorf("ExtractAudio = %+v; want no result", a)
			}
		})
	}
}

func TestExtractAudio_SampleRate(t *testing.T) {
	arr := EncodeFloat32([]float32{0})
	defer arr.Release()

	tests := []struct {
		name   string
		params dora.Parameters
		want   int
	}{
		{"absent", nil, 24000},
		{"int", dora.Parameters{"sample_rate": int64(16000)}, 16000},
		{"string", dora.Parameters{"sample_rate": "48000"}, 48000},
		{"zero", dora.Parameters{"sample_rate": 0}, 24000},
		{"negative", dora.Parameters{"sample_rate": -8000}, 24000},
		{"garbage", dora.Parameters{"sample_rate": "fast"}, 24000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, ok := ExtractAudio(arr, MetadataFromParameters(tc.params))
			if !ok {
				t.Fatal("ExtractAudio returned false")
			}
			if a.SampleRate != tc.want {
				t.Errorf("sample rate = %d; want %d", a.SampleRate, tc.want)
			}
		})
	}
}

func TestExtractText(t *testing.T) {
	s := EncodeText("hello")
	defer s.Release()

	lb := array.NewLargeStringBuilder(memory.DefaultAllocator)
	lb.AppendValues([]string{"first", "second"}, nil)
	large := lb.NewArray()
	lb.Release()
	defer large.Release()

	if got, ok := ExtractText(s); !ok || got != "hello" {
		t.Errorf("ExtractText(string) = %q, %v", got, ok)
	}
	if got, ok := ExtractText(large); !ok || got != "first" {
		t.Errorf("ExtractText(large string) = %q, %v", got, ok)
	}

	f := EncodeFloat32([]float32{1})
	defer f.Release()
	sb := array.NewStringBuilder(memory.DefaultAllocator)
	empty := sb.NewArray()
	sb.Release()
	defer empty.Release()

	for _, arr := range []arrow.Array{nil, f, empty} {
		if got, ok := ExtractText(arr); ok {
			t.Errorf("ExtractText(%v) = %q; want no result", arr, got)
		}
	}
}

func TestEncodeData(t *testing.T) {
	audio := &AudioData{Samples: []float32{0.5}, SampleRate: 16000, Channels: 1, ParticipantID: "p1"}
	arr, params, err := EncodeData(AudioValue(audio))
	if err != nil {
		t.Fatalf("EncodeData(audio): %v", err)
	}
	defer arr.Release()
	if params[ParamSampleRate] != int64(16000) || params[ParamParticipantID] != "p1" {
		t.Errorf("params = %v", params)
	}
	back, ok := ExtractAudio(arr, MetadataFromParameters(params))
	if !ok || back.SampleRate != 16000 || back.Samples[0] != 0.5 {
		t.Errorf("decoded audio = %+v, %v", back, ok)
	}

	arr, _, err = EncodeData(ControlValue(ResetCommand()))
	if err != nil {
		t.Fatalf("EncodeData(control): %v", err)
	}
	defer arr.Release()
	text, ok := ExtractText(arr)
	if !ok || text != `{"action":"reset"}` {
		t.Errorf("control json = %q", text)
	}

	arr, _, err = EncodeData(Empty())
	if err != nil {
		t.Fatalf("EncodeData(empty): %v", err)
	}
	defer arr.Release()
	if arr.Len() != 0 {
		t.Errorf("empty array len = %d", arr.Len())
	}

	if _, _, err := EncodeData(AudioValue(nil)); err == nil {
		t.Error("EncodeData(nil audio) should fail")
	}
}
