package dorabridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// unmarshalJSON unmarshals data into v. Payloads with syntax errors are
// passed through jsonrepair and decoded again.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}

// ParseControlCommand decodes a control command. A bare word such as
// "reset" is accepted as a command without parameters.
func ParseControlCommand(s string) (*ControlCommand, error) {
	s = strings.TrimSpace(s)
	var c ControlCommand
	if err := unmarshalJSON([]byte(s), &c); err == nil && c.Action != "" {
		return &c, nil
	}
	var bare string
	if err := json.Unmarshal([]byte(s), &bare); err == nil && bare != "" {
		return NewControlCommand(bare), nil
	}
	if s != "" && !json.Valid([]byte(s)) && !strings.ContainsAny(s, `{}[]"`) {
		return NewControlCommand(s), nil
	}
	return nil, fmt.Errorf("dorabridge: invalid control command %q", s)
}
