package gamepad

import (
	"log"
	"sync"
	"time"
)

// DefaultPollInterval is the per-slot sampling tick.
const DefaultPollInterval = 50 * time.Millisecond

// Registry tracks connected input devices by slot index. Each slot owns its
// own poll timer and snapshot; adding a device starts sampling, removing it
// stops the timer and drops all local subscriptions for that slot.
type Registry struct {
	source   Source
	sender   Sender
	interval time.Duration

	mu     sync.Mutex
	slots  map[int]*Slot
	closed bool
}

func NewRegistry(source Source, sender Sender, interval time.Duration) *Registry {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Registry{
		source:   source,
		sender:   sender,
		interval: interval,
		slots:    make(map[int]*Slot),
	}
}

// Add registers a device in a slot and starts its poll timer. A device
// already occupying the slot is removed first, so replacement never leaks a
// timer or stale subscriptions.
func (r *Registry) Add(index int, name string, vendor, product uint16) *Slot {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	if old, ok := r.slots[index]; ok {
		delete(r.slots, index)
		defer old.close()
	}
	slot := &Slot{
		Index:    index,
		Name:     name,
		Vendor:   vendor,
		Product:  product,
		registry: r,
		sampler:  NewSampler(index, LayoutFor(vendor, product), r.sender),
		subs:     make(map[int]func(Snapshot)),
		done:     make(chan struct{}),
	}
	r.slots[index] = slot
	r.mu.Unlock()

	log.Printf("gamepad: device connected in slot %d: %s (VID=%04X PID=%04X)", index, name, vendor, product)
	go slot.run(r.interval)
	return slot
}

// Remove destroys the slot: the poll timer stops and every local subscription
// for the slot is dropped. Removing an empty slot is a no-op.
func (r *Registry) Remove(index int) {
	r.mu.Lock()
	slot, ok := r.slots[index]
	if ok {
		delete(r.slots, index)
	}
	r.mu.Unlock()
	if ok {
		log.Printf("gamepad: device removed from slot %d: %s", index, slot.Name)
		slot.close()
	}
}

// Get returns the slot at an index, or nil.
func (r *Registry) Get(index int) *Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[index]
}

// Slots returns the currently occupied slots.
func (r *Registry) Slots() []*Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Slot, 0, len(r.slots))
	for _, s := range r.slots {
		out = append(out, s)
	}
	return out
}

// Close removes every slot. Idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	slots := r.slots
	r.slots = make(map[int]*Slot)
	r.mu.Unlock()
	for _, s := range slots {
		s.close()
	}
}

// Slot is one registered input device: identity, sampler state and the local
// subscriber list for live snapshot updates.
type Slot struct {
	Index   int
	Name    string
	Vendor  uint16
	Product uint16

	registry *Registry
	sampler  *Sampler

	mu      sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
	closed  bool
	done    chan struct{}
}

// ProfileID returns the persistent identifier of the device model.
func (s *Slot) ProfileID() string {
	return ProfileID(s.Name, s.Vendor, s.Product)
}

// Subscribe registers a callback that receives the full updated snapshot
// whenever any control on this device changes. The returned func removes
// exactly this registration.
func (s *Slot) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the device's last observed control values.
func (s *Slot) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampler.Snapshot()
}

func (s *Slot) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

// poll reads one frame and runs change detection. An absent device simply
// never emits.
func (s *Slot) poll() {
	frame, ok := s.registry.source.Frame(s.Index)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	changes := s.sampler.Sample(frame)
	if len(changes) == 0 {
		s.mu.Unlock()
		return
	}
	snapshot := s.sampler.Snapshot()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// close stops the poll timer and clears subscriptions. Idempotent.
func (s *Slot) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.subs = make(map[int]func(Snapshot))
	close(s.done)
	s.mu.Unlock()
}
