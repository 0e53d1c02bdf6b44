package gamepad

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed layouts.yaml
var layoutsYAML []byte

// DeviceID identifies a controller model by USB vendor/product id.
type DeviceID struct {
	Vendor  uint16 `yaml:"vendor"`
	Product uint16 `yaml:"product"`
}

// Layout translates logical control names to the physical button and axis
// indexes of a controller model. TriggerAxes names pressure-capable digital
// controls whose value is reported on an axis channel instead of a button.
type Layout struct {
	Name        string         `yaml:"name"`
	Devices     []DeviceID     `yaml:"devices"`
	Buttons     map[string]int `yaml:"buttons"`
	Axes        map[string]int `yaml:"axes"`
	TriggerAxes map[string]int `yaml:"trigger_axes"`
}

type layoutFile struct {
	Layouts []*Layout `yaml:"layouts"`
}

var (
	layouts       []*Layout
	layoutsByID   map[DeviceID]*Layout
	defaultLayout *Layout
)

func init() {
	var err error
	layouts, err = parseLayouts(layoutsYAML)
	if err != nil {
		panic(fmt.Sprintf("gamepad: embedded layouts are invalid: %v", err))
	}
	layoutsByID = make(map[DeviceID]*Layout)
	for _, l := range layouts {
		for _, id := range l.Devices {
			layoutsByID[id] = l
		}
		if l.Name == "standard" {
			defaultLayout = l
		}
	}
	if defaultLayout == nil {
		panic("gamepad: embedded layouts missing the standard layout")
	}
}

func parseLayouts(raw []byte) ([]*Layout, error) {
	var file layoutFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if len(file.Layouts) == 0 {
		return nil, fmt.Errorf("no layouts defined")
	}
	for _, l := range file.Layouts {
		if l.Name == "" {
			return nil, fmt.Errorf("layout missing name")
		}
	}
	return file.Layouts, nil
}

// LayoutFor returns the layout for a device model, falling back to the
// standard layout for unrecognized hardware.
func LayoutFor(vendor, product uint16) *Layout {
	if l, ok := layoutsByID[DeviceID{Vendor: vendor, Product: product}]; ok {
		return l
	}
	return defaultLayout
}

// StandardLayout returns the fallback layout.
func StandardLayout() *Layout {
	return defaultLayout
}

// Read extracts the value of a logical control from a raw frame. Pressure
// controls mapped to a trigger axis read the axis channel; other digital
// controls read their button, stick axes read their axis.
func (l *Layout) Read(control string, f Frame) float64 {
	if idx, ok := l.Axes[control]; ok {
		return f.Axis(idx)
	}
	if idx, ok := l.TriggerAxes[control]; ok && PressureControls[control] {
		// Trigger axes rest at -1 and saturate at +1; fold to 0..1.
		v := (f.Axis(idx) + 1) / 2
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return v
	}
	return f.Button(l.Buttons[control])
}
