package dorabridge

import (
	"strconv"

	"github.com/mofa-org/dorabridge/pkg/dora"
)

// Metadata parameter names interpreted by the bridges.
const (
	ParamSampleRate    = "sample_rate"
	ParamParticipantID = "participant_id"
	ParamQuestionID    = "question_id"
	ParamSessionID     = "session_id"
	ParamSessionStatus = "session_status"
	ParamNode          = "node"
)

// EventMetadata holds the stringified parameters attached to a record.
type EventMetadata struct {
	Values map[string]string
}

// MetadataFromParameters stringifies engine parameters. Strings, integers,
// floats and booleans are converted to text; other types become "".
func MetadataFromParameters(params dora.Parameters) EventMetadata {
	m := EventMetadata{Values: make(map[string]string, len(params))}
	for k, v := range params {
		m.Values[k] = parameterString(v)
	}
	return m
}

func parameterString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Get returns the value stored under key.
func (m EventMetadata) Get(key string) (string, bool) {
	v, ok := m.Values[key]
	return v, ok
}

// SampleRate returns the positive integer sample_rate parameter, or
// fallback when it is absent or not a valid rate.
func (m EventMetadata) SampleRate(fallback int) int {
	s, ok := m.Get(ParamSampleRate)
	if !ok {
		return fallback
	}
	rate, err := strconv.ParseUint(s, 10, 32)
	if err != nil || rate == 0 {
		return fallback
	}
	return int(rate)
}
