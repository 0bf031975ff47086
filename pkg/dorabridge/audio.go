package dorabridge

import (
	"fmt"
	"math"
	"time"

	resampling "github.com/tphakala/go-audio-resampling"
)

// DefaultSampleRate is assumed for audio records without a sample_rate
// parameter.
const DefaultSampleRate = 24000

// AudioData is a block of interleaved float samples. Samples is empty only
// while no audio has arrived yet.
type AudioData struct {
	Samples    []float32
	SampleRate int
	Channels   int

	// ParticipantID and QuestionID are empty unless the producer tags them.
	ParticipantID string
	QuestionID    string
}

// Duration returns the playback duration of the samples.
func (a *AudioData) Duration() time.Duration {
	if a.SampleRate <= 0 || a.Channels <= 0 {
		return 0
	}
	frames := len(a.Samples) / a.Channels
	return time.Duration(frames) * time.Second / time.Duration(a.SampleRate)
}

// RMS returns the root mean square level of the samples.
func (a *AudioData) RMS() float32 {
	if len(a.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range a.Samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(a.Samples))))
}

// Resample returns a copy of a converted to rate. The receiver is returned
// unchanged when the rates already match.
//
// Each call converts a complete chunk: the filter tail is drained, so the
// result holds len(Samples)*rate/SampleRate samples (rounded to whole
// frames) and a non-empty chunk never comes back empty.
func (a *AudioData) Resample(rate int) (*AudioData, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("dorabridge: invalid sample rate %d", rate)
	}
	if rate == a.SampleRate || len(a.Samples) == 0 {
		return a, nil
	}
	if a.SampleRate <= 0 {
		return nil, fmt.Errorf("dorabridge: invalid source sample rate %d", a.SampleRate)
	}
	channels := a.Channels
	if channels <= 0 {
		channels = 1
	}

	frames := len(a.Samples) / channels
	outFrames := int(math.Round(float64(frames) * float64(rate) / float64(a.SampleRate)))
	if outFrames == 0 {
		outFrames = 1
	}

	samples := make([]float32, outFrames*channels)
	in := make([]float64, frames)
	for ch := range channels {
		for i := range frames {
			in[i] = float64(a.Samples[i*channels+ch])
		}
		out, err := resampleChannel(in, a.SampleRate, rate, outFrames)
		if err != nil {
			return nil, err
		}
		for i, v := range out {
			samples[i*channels+ch] = float32(v)
		}
	}

	res := *a
	res.Samples = samples
	res.SampleRate = rate
	res.Channels = channels
	return &res, nil
}

// resampleChannel converts one mono channel and returns exactly n samples.
// Zeros worth the filter latency are pushed through every stage before
// Flush so no input is left inside the filter.
func resampleChannel(in []float64, from, to, n int) ([]float64, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("dorabridge: create resampler: %w", err)
	}

	out, err := r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("dorabridge: resample: %w", err)
	}
	ratio := float64(to) / float64(from)
	pad := 2*int(math.Ceil(float64(r.GetLatency())/ratio)) + 64
	for len(out) < n && pad > 0 {
		tail, err := r.Process(make([]float64, pad))
		if err != nil {
			return nil, fmt.Errorf("dorabridge: resample: %w", err)
		}
		out = append(out, tail...)
		// Shrinking rounds cover a latency estimate that is too low.
		pad /= 2
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("dorabridge: flush resampler: %w", err)
	}
	out = append(out, tail...)

	if len(out) >= n {
		return out[:n], nil
	}
	// The filter produced less than the chunk holds; pad the end with silence.
	return append(out, make([]float64, n-len(out))...), nil
}
