package input

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================================
// Event Types
// ============================================================================
// Every device, whatever its transport, reports through the same two logical
// event kinds. Raw codes never leave the device that owns the binding table.
// ============================================================================

// Event is a marker interface for input events.
type Event interface {
	eventMarker()
	// Source is the id of the device that produced the event.
	Source() string
}

// Button identifies a logical button.
type Button int

const (
	ButtonUndefined Button = iota
	ButtonA
	ButtonB
	ButtonX
	ButtonY
	ButtonSelect
	ButtonStart
	ButtonLeftTrigger
	ButtonRightTrigger
)

var buttonNames = map[Button]string{
	ButtonUndefined:    "undefined",
	ButtonA:            "a",
	ButtonB:            "b",
	ButtonX:            "x",
	ButtonY:            "y",
	ButtonSelect:       "select",
	ButtonStart:        "start",
	ButtonLeftTrigger:  "left_trigger",
	ButtonRightTrigger: "right_trigger",
}

func (b Button) String() string {
	if s, ok := buttonNames[b]; ok {
		return s
	}
	return fmt.Sprintf("button(%d)", int(b))
}

func (b Button) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Button) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range buttonNames {
		if v == name {
			*b = k
			return nil
		}
	}
	return fmt.Errorf("unknown button %q", string(text))
}

// Axis identifies a logical axis.
type Axis int

const (
	AxisUndefined Axis = iota
	AxisHorizontal
	AxisVertical
)

var axisNames = map[Axis]string{
	AxisUndefined:  "undefined",
	AxisHorizontal: "horizontal",
	AxisVertical:   "vertical",
}

func (a Axis) String() string {
	if s, ok := axisNames[a]; ok {
		return s
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

func (a Axis) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Axis) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range axisNames {
		if v == name {
			*a = k
			return nil
		}
	}
	return fmt.Errorf("unknown axis %q", string(text))
}

// AxisMax is the deflection reported for a fully pushed digital direction.
const AxisMax int16 = 32767

// ButtonEvent reports a button edge.
type ButtonEvent struct {
	Device  string `json:"device,omitempty"`
	Button  Button `json:"button"`
	Pressed bool   `json:"pressed"`
}

func (ButtonEvent) eventMarker() {}
func (e ButtonEvent) Source() string { return e.Device }

// AxisEvent reports a new axis deflection. Zero means centered.
type AxisEvent struct {
	Device string `json:"device,omitempty"`
	Axis   Axis   `json:"axis"`
	Value  int16  `json:"value"`
}

func (AxisEvent) eventMarker() {}
func (e AxisEvent) Source() string { return e.Device }

// ============================================================================
// JSON Serialization
// ============================================================================

// EventEnvelope wraps events for line-delimited JSON transport.
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent decodes an envelope into a ButtonEvent or AxisEvent.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "button":
		var e ButtonEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ButtonEvent: %w", err)
		}
		return e, nil

	case "axis":
		var e AxisEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal AxisEvent: %w", err)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent encodes an event into its envelope.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case ButtonEvent:
		env.Type = "button"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal ButtonEvent: %w", err)
		}
		env.Data = data

	case AxisEvent:
		env.Type = "axis"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal AxisEvent: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unknown event type: %T", e)
	}

	return json.Marshal(env)
}
