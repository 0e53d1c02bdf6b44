package gamepad

import (
	"context"
	"log"
	"math"
	"runtime"
	"sync"

	"github.com/jupiterrider/purego-sdl3/sdl"
)

const sdlPollDelayNS = 16_000_000 // ~60 Hz snapshot refresh

// SDLSource reads joystick hardware through the SDL3 joystick API and keeps a
// raw frame per device slot. Hotplug events are surfaced through the
// OnConnect/OnDisconnect callbacks so a Registry can mirror the lifecycle.
type SDLSource struct {
	OnConnect    func(slot int, name string, vendor, product uint16)
	OnDisconnect func(slot int)

	mu     sync.RWMutex
	frames map[int]Frame
	joys   map[sdl.JoystickID]*sdlJoystick
}

type sdlJoystick struct {
	joystick *sdl.Joystick
	slot     int
	name     string
}

func NewSDLSource() *SDLSource {
	return &SDLSource{
		frames: make(map[int]Frame),
		joys:   make(map[sdl.JoystickID]*sdlJoystick),
	}
}

// Frame returns the latest raw frame for a slot. The returned slices are
// never mutated after publication.
func (s *SDLSource) Frame(slot int) (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.frames[slot]
	return f, ok
}

// Run initializes SDL and services hotplug events and state refreshes until
// the context is cancelled. SDL wants a single OS thread, so the loop locks
// itself to one; call from a dedicated goroutine.
func (s *SDLSource) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !sdl.Init(sdl.InitJoystick) {
		log.Fatalf("SDL init failed: %s", sdl.GetError())
	}
	defer sdl.Quit()

	log.Println("SDL3 joystick subsystem initialized")

	for _, id := range sdl.GetJoysticks() {
		s.openJoystick(id)
	}

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		default:
		}

		s.processEvents()
		s.refreshFrames()
		sdl.DelayNS(sdlPollDelayNS)
	}
}

func (s *SDLSource) processEvents() {
	var event sdl.Event
	for sdl.PollEvent(&event) {
		switch event.Type() {
		case sdl.EventJoystickAdded:
			s.openJoystick(event.JDevice().Which)
		case sdl.EventJoystickRemoved:
			s.removeJoystick(event.JDevice().Which)
		}
	}
}

func (s *SDLSource) openJoystick(instanceID sdl.JoystickID) {
	s.mu.Lock()
	if _, exists := s.joys[instanceID]; exists {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	js := sdl.OpenJoystick(instanceID)
	if js == nil {
		log.Printf("gamepad: failed to open joystick %d: %s", instanceID, sdl.GetError())
		return
	}

	id := sdl.GetJoystickID(js)
	name := sdl.GetJoystickName(js)
	vendor := sdl.GetJoystickVendor(js)
	product := sdl.GetJoystickProduct(js)

	s.mu.Lock()
	slot := s.freeSlotLocked()
	s.joys[id] = &sdlJoystick{joystick: js, slot: slot, name: name}
	s.frames[slot] = Frame{}
	s.mu.Unlock()

	log.Printf("gamepad: joystick %s in slot %d (VID=%04X PID=%04X axes=%d buttons=%d)",
		name, slot, vendor, product, sdl.GetNumJoystickAxes(js), sdl.GetNumJoystickButtons(js))

	if s.OnConnect != nil {
		s.OnConnect(slot, name, vendor, product)
	}
}

func (s *SDLSource) removeJoystick(instanceID sdl.JoystickID) {
	s.mu.Lock()
	info, exists := s.joys[instanceID]
	if !exists {
		s.mu.Unlock()
		return
	}
	delete(s.joys, instanceID)
	delete(s.frames, info.slot)
	s.mu.Unlock()

	log.Printf("gamepad: joystick disconnected from slot %d: %s", info.slot, info.name)
	sdl.CloseJoystick(info.joystick)

	if s.OnDisconnect != nil {
		s.OnDisconnect(info.slot)
	}
}

func (s *SDLSource) closeAll() {
	s.mu.Lock()
	joys := s.joys
	s.joys = make(map[sdl.JoystickID]*sdlJoystick)
	s.frames = make(map[int]Frame)
	s.mu.Unlock()

	for _, info := range joys {
		sdl.CloseJoystick(info.joystick)
	}
}

// freeSlotLocked returns the lowest slot index not currently in use.
func (s *SDLSource) freeSlotLocked() int {
	used := make(map[int]bool, len(s.joys))
	for _, info := range s.joys {
		used[info.slot] = true
	}
	for slot := 0; ; slot++ {
		if !used[slot] {
			return slot
		}
	}
}

// refreshFrames snapshots every open joystick into a fresh frame. Buttons are
// 0/1, axes are -1..1.
func (s *SDLSource) refreshFrames() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, info := range s.joys {
		js := info.joystick
		if !sdl.JoystickConnected(js) {
			continue
		}

		numButtons := sdl.GetNumJoystickButtons(js)
		numAxes := sdl.GetNumJoystickAxes(js)
		frame := Frame{
			Buttons: make([]float64, numButtons),
			Axes:    make([]float64, numAxes),
		}
		for i := int32(0); i < numButtons; i++ {
			if sdl.GetJoystickButton(js, i) {
				frame.Buttons[i] = 1
			}
		}
		for i := int32(0); i < numAxes; i++ {
			frame.Axes[i] = normalizeAxis(sdl.GetJoystickAxis(js, i))
		}
		s.frames[info.slot] = frame
	}
}

// normalizeAxis converts a raw axis value (-32768..32767) to -1.0..1.0.
func normalizeAxis(raw int16) float64 {
	v := float64(raw) / math.MaxInt16
	if v < -1.0 {
		v = -1.0
	}
	return v
}
