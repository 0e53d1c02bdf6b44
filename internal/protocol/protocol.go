// Package protocol defines the wire envelopes exchanged between the operator
// console, the gateway, and the robot process.
//
// Two shapes travel over the wire:
//
//   - commands flowing toward the robot:  {"output_id": ..., "data": ..., "metadata": ...}
//   - events flowing toward operators:    {"id": ..., "value": ..., "type": "EVENT"}
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is a robot-bound command. OutputID names the command channel, Data
// carries the payload, Metadata carries routing hints. All three survive the
// relay untouched.
type Envelope struct {
	OutputID string         `json:"output_id"`
	Data     any            `json:"data"`
	Metadata map[string]any `json:"metadata"`
}

// Event is an operator-bound notification.
type Event struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
	Type  string `json:"type,omitempty"`
}

// EventType is the canonical Type tag for operator-bound events.
const EventType = "EVENT"

// Well-known event and command identifiers.
const (
	// Gateway housekeeping.
	ConnectionStatus = "connection_status"
	GridState        = "grid_state"
	SaveGridState    = "save_grid_state"
	GetGridState     = "get_grid_state"

	// Gamepad profile persistence.
	SaveGamepadProfile   = "save_gamepad_profile"
	GetGamepadProfile    = "get_gamepad_profile"
	CheckGamepadProfile  = "check_gamepad_profile"
	DeleteGamepadProfile = "delete_gamepad_profile"
	ListGamepadProfiles  = "list_gamepad_profiles"
	GamepadProfilesList  = "gamepad_profiles_list"
	GamepadProfileData   = "gamepad_profile"
	GamepadProfileStatus = "gamepad_profile_status"

	// Mapping wizard commands from the dashboard and status events back.
	WizardOpen       = "wizard_open"
	WizardSkip       = "wizard_skip"
	WizardBack       = "wizard_back"
	WizardSetName    = "wizard_set_name"
	WizardSave       = "wizard_save"
	WizardCancel     = "wizard_cancel"
	WizardStatus     = "wizard_status"
	WizardDeviceLost = "wizard_device_lost"

	// Robot commands and telemetry relayed opaquely.
	SetServo        = "set_servo"
	Scan            = "SCAN"
	PlaySound       = "play_sound"
	StopSound       = "stop"
	SetVolume       = "set_volume"
	Volume          = "volume"
	AvailableSounds = "available_sounds"
	Voltage         = "voltage"
	Soc             = "soc"

	// Gamepad control events are prefixed with this and suffixed with the
	// logical control name, e.g. GAMEPAD_FACE_1.
	GamepadEventPrefix = "GAMEPAD_"
)

// DecodeEvent normalizes a raw frame to text and parses it as an Event.
// Binary frames are treated as UTF-8 encoded text. An event without an id is
// still returned; callers decide how to dispatch it.
func DecodeEvent(frame []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// DecodeEnvelope parses a raw frame as a robot-bound command envelope.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.OutputID == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing output_id")
	}
	return env, nil
}

// EncodeEvent marshals an operator-bound event, stamping the EVENT type tag.
func EncodeEvent(id string, value any) ([]byte, error) {
	return json.Marshal(Event{ID: id, Value: value, Type: EventType})
}
