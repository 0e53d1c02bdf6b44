// Package gamepad converts raw polled controller snapshots into discrete,
// named control events. Logical control names are robot-facing and
// hardware-independent; device layouts translate them to physical button and
// axis indexes.
package gamepad

// Logical control names. These match the identifiers the robot consumes in
// GAMEPAD_<NAME> events.
const (
	Face1 = "FACE_1"
	Face2 = "FACE_2"
	Face3 = "FACE_3"
	Face4 = "FACE_4"

	LeftTopShoulder     = "LEFT_TOP_SHOULDER"
	RightTopShoulder    = "RIGHT_TOP_SHOULDER"
	LeftBottomShoulder  = "LEFT_BOTTOM_SHOULDER"
	RightBottomShoulder = "RIGHT_BOTTOM_SHOULDER"

	SelectBack   = "SELECT_BACK"
	StartForward = "START_FORWARD"
	LeftStick    = "LEFT_STICK"
	RightStick   = "RIGHT_STICK"

	DpadUp    = "DPAD_UP"
	DpadDown  = "DPAD_DOWN"
	DpadLeft  = "DPAD_LEFT"
	DpadRight = "DPAD_RIGHT"

	Home     = "HOME"
	Touchpad = "TOUCHPAD"
	Capture  = "CAPTURE"

	LeftAnalogStickX  = "LEFT_ANALOG_STICK_X"
	LeftAnalogStickY  = "LEFT_ANALOG_STICK_Y"
	RightAnalogStickX = "RIGHT_ANALOG_STICK_X"
	RightAnalogStickY = "RIGHT_ANALOG_STICK_Y"
)

// ButtonControls lists every digital control in presentation order: the 16
// standard buttons followed by the specialty buttons.
var ButtonControls = []string{
	Face1, Face2, Face3, Face4,
	LeftTopShoulder, RightTopShoulder,
	LeftBottomShoulder, RightBottomShoulder,
	SelectBack, StartForward,
	LeftStick, RightStick,
	DpadUp, DpadDown, DpadLeft, DpadRight,
	Home, Touchpad, Capture,
}

// AxisControls lists the analog stick axes.
var AxisControls = []string{
	LeftAnalogStickX, LeftAnalogStickY,
	RightAnalogStickX, RightAnalogStickY,
}

// PressureControls are digital controls whose hardware may report a
// continuous pressure value instead of a plain on/off state.
var PressureControls = map[string]bool{
	LeftBottomShoulder:  true,
	RightBottomShoulder: true,
}

// Snapshot is the last observed value of every logical control on one device,
// keyed by control name. Digital controls hold 0 or 1 (pressure-capable ones
// may hold fractions), stick axes hold -1..1.
type Snapshot map[string]float64

func (s Snapshot) clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
