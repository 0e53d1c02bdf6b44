package gamepad

import (
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu     sync.Mutex
	frames map[int]Frame
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(map[int]Frame)}
}

func (s *fakeSource) set(slot int, f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[slot] = f
}

func (s *fakeSource) unplug(slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.frames, slot)
}

func (s *fakeSource) Frame(slot int) (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.frames[slot]
	return f, ok
}

// quiet keeps the background poll ticker from interfering with tests that
// drive poll() by hand.
const quiet = time.Hour

func TestSlotPollNotifiesSubscribers(t *testing.T) {
	src := newFakeSource()
	reg := NewRegistry(src, nil, quiet)
	defer reg.Close()

	slot := reg.Add(0, "Test Pad", 0, 0)

	var snaps []Snapshot
	slot.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	f := standardFrame()
	f.Buttons[0] = 1
	src.set(0, f)
	slot.poll()

	if len(snaps) != 1 {
		t.Fatalf("subscriber notified %d times, want 1", len(snaps))
	}
	if snaps[0][Face1] != 1 {
		t.Fatalf("snapshot FACE_1 = %v, want 1", snaps[0][Face1])
	}

	// No change, no notification.
	slot.poll()
	if len(snaps) != 1 {
		t.Fatalf("subscriber notified %d times after idle tick, want 1", len(snaps))
	}
}

func TestAbsentDeviceTickIsNoOp(t *testing.T) {
	src := newFakeSource()
	reg := NewRegistry(src, nil, quiet)
	defer reg.Close()

	slot := reg.Add(2, "Test Pad", 0, 0)
	fired := 0
	slot.Subscribe(func(Snapshot) { fired++ })

	slot.poll() // no frame for the slot

	if fired != 0 {
		t.Fatalf("absent device notified %d times, want 0", fired)
	}
}

func TestRemoveClearsSubscriptions(t *testing.T) {
	src := newFakeSource()
	reg := NewRegistry(src, nil, quiet)
	defer reg.Close()

	slot := reg.Add(0, "Test Pad", 0, 0)
	fired := 0
	slot.Subscribe(func(Snapshot) { fired++ })

	reg.Remove(0)

	f := standardFrame()
	f.Buttons[0] = 1
	src.set(0, f)
	slot.poll() // closed slot: must not sample or notify

	if fired != 0 {
		t.Fatalf("removed slot notified %d times, want 0", fired)
	}
	if reg.Get(0) != nil {
		t.Fatal("slot still registered after removal")
	}
}

func TestReplacementDisposesOldSlot(t *testing.T) {
	src := newFakeSource()
	reg := NewRegistry(src, nil, quiet)
	defer reg.Close()

	old := reg.Add(0, "Old Pad", 0, 0)
	fired := 0
	old.Subscribe(func(Snapshot) { fired++ })

	fresh := reg.Add(0, "New Pad", 0, 0)
	if reg.Get(0) != fresh {
		t.Fatal("registry does not point at the replacement slot")
	}

	f := standardFrame()
	f.Buttons[0] = 1
	src.set(0, f)
	old.poll()
	if fired != 0 {
		t.Fatalf("replaced slot notified %d times, want 0", fired)
	}
}

func TestSubscribeCancelRemovesExactlyOne(t *testing.T) {
	src := newFakeSource()
	reg := NewRegistry(src, nil, quiet)
	defer reg.Close()

	slot := reg.Add(0, "Test Pad", 0, 0)
	first, second := 0, 0
	cancel := slot.Subscribe(func(Snapshot) { first++ })
	slot.Subscribe(func(Snapshot) { second++ })

	cancel()
	cancel() // second cancel is a no-op

	f := standardFrame()
	f.Buttons[0] = 1
	src.set(0, f)
	slot.poll()

	if first != 0 || second != 1 {
		t.Fatalf("notifications = (%d, %d), want (0, 1)", first, second)
	}
}

func TestRegistryCloseIsIdempotent(t *testing.T) {
	src := newFakeSource()
	reg := NewRegistry(src, nil, quiet)
	reg.Add(0, "Test Pad", 0, 0)

	reg.Close()
	reg.Close()

	if got := reg.Add(1, "Late Pad", 0, 0); got != nil {
		t.Fatal("closed registry accepted a new device")
	}
	if len(reg.Slots()) != 0 {
		t.Fatal("closed registry still reports slots")
	}
}

func TestLayoutForKnownAndUnknownDevices(t *testing.T) {
	tests := []struct {
		name    string
		vendor  uint16
		product uint16
		want    string
	}{
		{"xbox series", 0x045E, 0x0B12, "xbox"},
		{"dualsense", 0x054C, 0x0CE6, "dualsense"},
		{"unknown", 0xBEEF, 0x0001, "standard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LayoutFor(tt.vendor, tt.product); got.Name != tt.want {
				t.Fatalf("LayoutFor(%04X, %04X) = %q, want %q", tt.vendor, tt.product, got.Name, tt.want)
			}
		})
	}
}

func TestTriggerAxisFoldsToPressureRange(t *testing.T) {
	xbox := LayoutFor(0x045E, 0x028E)

	f := Frame{Buttons: make([]float64, 16), Axes: []float64{0, 0, 0, 0, -1, 1}}
	if got := xbox.Read(LeftBottomShoulder, f); got != 0 {
		t.Errorf("resting trigger = %v, want 0", got)
	}
	if got := xbox.Read(RightBottomShoulder, f); got != 1 {
		t.Errorf("saturated trigger = %v, want 1", got)
	}

	f.Axes[4] = 0 // half pull
	if got := xbox.Read(LeftBottomShoulder, f); got != 0.5 {
		t.Errorf("half-pulled trigger = %v, want 0.5", got)
	}
}
