package gamepad

// Frame is one raw per-tick reading of a device: button values normalized to
// 0..1 and axis values to -1..1, indexed by physical position. Both the
// sampler and the mapping wizard consume frames.
type Frame struct {
	Buttons []float64
	Axes    []float64
}

// Button returns the value at a physical button index, 0 if out of range.
func (f Frame) Button(i int) float64 {
	if i < 0 || i >= len(f.Buttons) {
		return 0
	}
	return f.Buttons[i]
}

// Axis returns the value at a physical axis index, 0 if out of range.
func (f Frame) Axis(i int) float64 {
	if i < 0 || i >= len(f.Axes) {
		return 0
	}
	return f.Axes[i]
}

// Source provides the current raw frame for a device slot. The second return
// is false when no device occupies the slot; callers treat that tick as a
// no-op.
type Source interface {
	Frame(slot int) (Frame, bool)
}
