package gamepad

import (
	"fmt"
	"math"
)

// Sender relays a named event toward the robot. *bridge.Bridge satisfies it.
type Sender interface {
	Send(id string, data any, metadata map[string]any)
}

// Change is one detected control transition.
type Change struct {
	Control string
	Value   float64
	Digital bool
}

// pressed is the normalization cutoff for plain digital buttons.
const pressed = 0.5

// Sampler diffs successive frames of one device against the last observed
// control values and relays a GAMEPAD_<NAME> event for every transition.
// Values are used purely for change detection; no cumulative state is kept.
type Sampler struct {
	slot   int
	layout *Layout
	sender Sender
	values Snapshot
}

func NewSampler(slot int, layout *Layout, sender Sender) *Sampler {
	s := &Sampler{
		slot:   slot,
		layout: layout,
		sender: sender,
		values: make(Snapshot),
	}
	for _, name := range ButtonControls {
		s.values[name] = 0
	}
	for _, name := range AxisControls {
		s.values[name] = 0
	}
	return s
}

// Sample reads every logical control out of one raw frame and fires events
// for the controls whose value changed. Plain digital controls fire on state
// transitions only; pressure controls and stick axes fire on any difference
// in their fraction rounded to 4 decimal places.
func (s *Sampler) Sample(f Frame) []Change {
	var changes []Change

	for _, name := range ButtonControls {
		raw := s.layout.Read(name, f)
		if PressureControls[name] {
			v := round4(raw)
			if v != s.values[name] {
				s.values[name] = v
				changes = append(changes, Change{Control: name, Value: v})
			}
			continue
		}
		v := 0.0
		if raw >= pressed {
			v = 1
		}
		if v != s.values[name] {
			s.values[name] = v
			changes = append(changes, Change{Control: name, Value: v, Digital: true})
		}
	}

	for _, name := range AxisControls {
		v := round4(s.layout.Read(name, f))
		if v != s.values[name] {
			s.values[name] = v
			changes = append(changes, Change{Control: name, Value: v})
		}
	}

	if s.sender != nil {
		for _, c := range changes {
			var data any = c.Value
			if c.Digital {
				data = c.Value != 0
			}
			s.sender.Send(GamepadEventName(c.Control), data, map[string]any{"device": s.slot})
		}
	}
	return changes
}

// Snapshot returns a copy of the last observed control values.
func (s *Sampler) Snapshot() Snapshot {
	return s.values.clone()
}

// GamepadEventName builds the outbound event name for a logical control.
func GamepadEventName(control string) string {
	return "GAMEPAD_" + control
}

// ProfileID derives the persistent identifier for a controller model, in the
// same shape browsers report for gamepads.
func ProfileID(name string, vendor, product uint16) string {
	return fmt.Sprintf("%s (Vendor: %04x Product: %04x)", name, vendor, product)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
