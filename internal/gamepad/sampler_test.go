package gamepad

import (
	"sync"
	"testing"
)

type sentEvent struct {
	id   string
	data any
}

type recordingSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recordingSender) Send(id string, data any, metadata map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{id: id, data: data})
}

func (r *recordingSender) sent() []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentEvent, len(r.events))
	copy(out, r.events)
	return out
}

// standardFrame returns an all-zero frame shaped for the standard layout.
func standardFrame() Frame {
	return Frame{Buttons: make([]float64, 19), Axes: make([]float64, 4)}
}

func TestAxisChangeFiresExactlyOnce(t *testing.T) {
	sender := &recordingSender{}
	s := NewSampler(0, StandardLayout(), sender)

	f := standardFrame()
	if got := s.Sample(f); len(got) != 0 {
		t.Fatalf("all-zero frame produced %d changes, want 0", len(got))
	}

	f = standardFrame()
	f.Axes[0] = 0.5
	changes := s.Sample(f)
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	if changes[0].Control != LeftAnalogStickX || changes[0].Value != 0.5 {
		t.Fatalf("change = %+v, want LEFT_ANALOG_STICK_X = 0.5", changes[0])
	}

	// Same value again: idempotent, nothing fires.
	if got := s.Sample(f); len(got) != 0 {
		t.Fatalf("unchanged frame produced %d changes, want 0", len(got))
	}

	events := sender.sent()
	if len(events) != 1 || events[0].id != "GAMEPAD_LEFT_ANALOG_STICK_X" {
		t.Fatalf("sender received %v, want one GAMEPAD_LEFT_ANALOG_STICK_X event", events)
	}
}

func TestDigitalControlFiresOnTransitionsOnly(t *testing.T) {
	sender := &recordingSender{}
	s := NewSampler(0, StandardLayout(), sender)

	press := standardFrame()
	press.Buttons[0] = 1 // FACE_1

	changes := s.Sample(press)
	if len(changes) != 1 || changes[0].Control != Face1 || !changes[0].Digital {
		t.Fatalf("press changes = %+v, want one digital FACE_1", changes)
	}

	// Held down: no further events.
	if got := s.Sample(press); len(got) != 0 {
		t.Fatalf("held button produced %d changes, want 0", len(got))
	}

	release := standardFrame()
	changes = s.Sample(release)
	if len(changes) != 1 || changes[0].Value != 0 {
		t.Fatalf("release changes = %+v, want one FACE_1 -> 0", changes)
	}

	events := sender.sent()
	if len(events) != 2 {
		t.Fatalf("sender received %d events, want 2", len(events))
	}
	if events[0].data != true || events[1].data != false {
		t.Fatalf("digital payloads = %v, %v, want true then false", events[0].data, events[1].data)
	}
}

func TestDigitalNormalizationIgnoresJitter(t *testing.T) {
	s := NewSampler(0, StandardLayout(), nil)

	f := standardFrame()
	f.Buttons[1] = 0.2 // below the press cutoff: still 0
	if got := s.Sample(f); len(got) != 0 {
		t.Fatalf("sub-threshold jitter produced %d changes, want 0", len(got))
	}

	f.Buttons[1] = 0.9
	if got := s.Sample(f); len(got) != 1 {
		t.Fatalf("press produced %d changes, want 1", len(got))
	}

	f.Buttons[1] = 0.7 // still pressed after normalization
	if got := s.Sample(f); len(got) != 0 {
		t.Fatalf("magnitude wobble produced %d changes, want 0", len(got))
	}
}

func TestPressureControlCarriesRawFraction(t *testing.T) {
	sender := &recordingSender{}
	s := NewSampler(0, StandardLayout(), sender)

	f := standardFrame()
	f.Buttons[6] = 0.25 // LEFT_BOTTOM_SHOULDER
	changes := s.Sample(f)
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	c := changes[0]
	if c.Control != LeftBottomShoulder || c.Digital || c.Value != 0.25 {
		t.Fatalf("change = %+v, want analog LEFT_BOTTOM_SHOULDER = 0.25", c)
	}

	// Identical fraction: nothing fires.
	if got := s.Sample(f); len(got) != 0 {
		t.Fatalf("unchanged fraction produced %d changes, want 0", len(got))
	}

	// Any numeric difference past 4 decimals fires again.
	f.Buttons[6] = 0.2501
	if got := s.Sample(f); len(got) != 1 {
		t.Fatalf("fraction delta produced %d changes, want 1", len(got))
	}

	events := sender.sent()
	if len(events) != 2 || events[0].data != 0.25 {
		t.Fatalf("sender received %v, want fractional payloads", events)
	}
}

func TestFractionsRoundToFourDecimals(t *testing.T) {
	s := NewSampler(0, StandardLayout(), nil)

	f := standardFrame()
	f.Axes[2] = 0.123456
	changes := s.Sample(f)
	if len(changes) != 1 || changes[0].Value != 0.1235 {
		t.Fatalf("changes = %+v, want RIGHT_ANALOG_STICK_X = 0.1235", changes)
	}

	// A sub-precision wiggle rounds to the same value and does not fire.
	f.Axes[2] = 0.123449
	if got := s.Sample(f); len(got) != 0 {
		t.Fatalf("sub-precision wiggle produced %d changes, want 0", len(got))
	}
}

func TestSnapshotReflectsLatestValues(t *testing.T) {
	s := NewSampler(0, StandardLayout(), nil)

	f := standardFrame()
	f.Buttons[0] = 1
	f.Axes[1] = -0.75
	s.Sample(f)

	snap := s.Snapshot()
	if snap[Face1] != 1 {
		t.Errorf("snapshot FACE_1 = %v, want 1", snap[Face1])
	}
	if snap[LeftAnalogStickY] != -0.75 {
		t.Errorf("snapshot LEFT_ANALOG_STICK_Y = %v, want -0.75", snap[LeftAnalogStickY])
	}

	// Snapshots are copies: mutating one does not leak back.
	snap[Face1] = 0
	if s.Snapshot()[Face1] != 1 {
		t.Error("snapshot mutation leaked into sampler state")
	}
}

func TestProfileID(t *testing.T) {
	got := ProfileID("Xbox Series Controller", 0x045E, 0x0B12)
	want := "Xbox Series Controller (Vendor: 045e Product: 0b12)"
	if got != want {
		t.Fatalf("ProfileID = %q, want %q", got, want)
	}
}
