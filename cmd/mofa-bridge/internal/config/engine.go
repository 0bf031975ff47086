package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/mofa-org/dorabridge/pkg/dorabridge"
)

// EngineService is the service name of the engine configuration.
const EngineService = "engine"

// DefaultAddr is the gateway address used when none is configured.
const DefaultAddr = "ws://127.0.0.1:6060"

// Duration is a time.Duration written as "200ms" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON writes the duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// EngineConfig is the engine.yaml service of a context.
type EngineConfig struct {
	// Addr is the websocket node gateway, e.g. "ws://127.0.0.1:6060".
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	ConnectGrace      Duration `json:"connect_grace,omitempty" yaml:"connect_grace,omitempty"`
	DisconnectTimeout Duration `json:"disconnect_timeout,omitempty" yaml:"disconnect_timeout,omitempty"`
	PollTimeout       Duration `json:"poll_timeout,omitempty" yaml:"poll_timeout,omitempty"`
	// SendDelay overrides the per-bridge send delay; a negative value
	// disables it.
	SendDelay Duration `json:"send_delay,omitempty" yaml:"send_delay,omitempty"`

	// OutputSampleRate resamples audio received by audio players.
	OutputSampleRate int `json:"output_sample_rate,omitempty" yaml:"output_sample_rate,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// LoadEngine loads engine.yaml from a context directory. A missing file
// yields the zero config.
func LoadEngine(contextDir string) (*EngineConfig, error) {
	cfg, err := LoadService[EngineConfig](contextDir, EngineService)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return &EngineConfig{}, nil
		}
		return nil, err
	}
	return cfg, nil
}

// SetEngineValue sets one engine.yaml key. The file is left unchanged if
// the result would not load.
func SetEngineValue(contextDir, key, value string) error {
	m, err := loadMap(contextDir, EngineService)
	if err != nil {
		return err
	}
	m[key] = scalarValue(value)

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal engine config: %w", err)
	}
	var check EngineConfig
	if err := yaml.Unmarshal(data, &check); err != nil {
		return fmt.Errorf("engine %s: %w", key, err)
	}
	if _, err := check.Level(); err != nil {
		return err
	}
	return SaveService(contextDir, EngineService, &m)
}

// GatewayAddr returns Addr or DefaultAddr.
func (c *EngineConfig) GatewayAddr() string {
	if c.Addr == "" {
		return DefaultAddr
	}
	return c.Addr
}

// BridgeOptions returns the bridge tuning of c. Connector and Logger are
// left for the caller.
func (c *EngineConfig) BridgeOptions() dorabridge.Options {
	return dorabridge.Options{
		ConnectGrace:      time.Duration(c.ConnectGrace),
		DisconnectTimeout: time.Duration(c.DisconnectTimeout),
		PollTimeout:       time.Duration(c.PollTimeout),
		SendDelay:         time.Duration(c.SendDelay),
	}
}

// Level returns the configured slog level, Info when unset.
func (c *EngineConfig) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
