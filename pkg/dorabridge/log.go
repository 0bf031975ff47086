package dorabridge

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// LogLevel is the severity of a log entry.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarning
	LogError
)

// String returns the string representation of the level.
func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	default:
		return "info"
	}
}

// ParseLogLevel maps the level names used by dataflow nodes. Unknown names
// map to LogInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return LogDebug
	case "warn", "warning":
		return LogWarning
	case "error", "err", "fatal", "critical":
		return LogError
	default:
		return LogInfo
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l LogLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *LogLevel) UnmarshalText(b []byte) error {
	*l = ParseLogLevel(string(b))
	return nil
}

// LogEntry is one log line produced by a dataflow node.
type LogEntry struct {
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
	NodeID    string   `json:"node"`
	Timestamp Millis   `json:"timestamp"`
}

// logWire accepts the field spellings nodes use in JSON log lines.
type logWire struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Msg       string `json:"msg"`
	Node      string `json:"node"`
	NodeID    string `json:"node_id"`
	Timestamp Millis `json:"timestamp"`
}

// ParseLogEntry parses a log line. JSON objects are decoded (malformed JSON
// is repaired first); anything else becomes an info entry attributed to
// fallbackNode.
func ParseLogEntry(line, fallbackNode string) *LogEntry {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var w logWire
		if err := unmarshalJSON([]byte(trimmed), &w); err == nil {
			e := &LogEntry{
				Level:     ParseLogLevel(w.Level),
				Message:   w.Message,
				NodeID:    w.Node,
				Timestamp: w.Timestamp,
			}
			if e.Message == "" {
				e.Message = w.Msg
			}
			if e.NodeID == "" {
				e.NodeID = w.NodeID
			}
			if e.NodeID == "" {
				e.NodeID = fallbackNode
			}
			if e.Timestamp.IsZero() {
				e.Timestamp = NowMillis()
			}
			return e
		}
	}
	return &LogEntry{
		Level:     LogInfo,
		Message:   line,
		NodeID:    fallbackNode,
		Timestamp: NowMillis(),
	}
}

// Millis is a time.Time that serializes to Unix milliseconds in JSON.
// Decoding also accepts float seconds (values below 1e11) and RFC 3339
// strings, which python nodes commonly emit.
type Millis time.Time

// NowMillis returns the current time as Millis.
func NowMillis() Millis {
	return Millis(time.Now())
}

// Time returns the underlying time.Time value.
func (m Millis) Time() time.Time {
	return time.Time(m)
}

// IsZero reports whether m is the zero time.
func (m Millis) IsZero() bool {
	return time.Time(m).IsZero()
}

// MarshalJSON implements json.Marshaler.
func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(m).UnixMilli())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		if n < 1e11 {
			sec, frac := math.Modf(n)
			*m = Millis(time.Unix(int64(sec), int64(frac*1e9)))
		} else {
			*m = Millis(time.UnixMilli(int64(n)))
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("dorabridge: invalid timestamp %s", b)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("dorabridge: invalid timestamp %q: %w", s, err)
	}
	*m = Millis(t)
	return nil
}
