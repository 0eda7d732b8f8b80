package grid

import (
	"encoding/json"
	"fmt"
)

// TurnDir is the sense of a single in-place turn.
type TurnDir uint8

const (
	TurnLeft TurnDir = iota
	TurnRight
)

// Opposite returns the other turn direction.
func (t TurnDir) Opposite() TurnDir {
	if t == TurnLeft {
		return TurnRight
	}
	return TurnLeft
}

func (t TurnDir) String() string {
	switch t {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	default:
		return "unknown"
	}
}

// ParseTurnDir parses "left" or "right".
func ParseTurnDir(s string) (TurnDir, error) {
	switch s {
	case "left":
		return TurnLeft, nil
	case "right":
		return TurnRight, nil
	default:
		return TurnLeft, fmt.Errorf("invalid turn direction %q", s)
	}
}

// MarshalJSON encodes the turn direction as "left" or "right".
func (t TurnDir) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "left" or "right".
func (t *TurnDir) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTurnDir(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
