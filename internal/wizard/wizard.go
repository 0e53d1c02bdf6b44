// Package wizard drives interactive gamepad calibration: it walks an ordered
// list of logical controls, watches raw device frames for the physical input
// the operator activates, and commits a mapping entry once the same physical
// input is detected three times in a row. The finished table is handed to the
// persistence collaborator over the bridge.
package wizard

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/botdeck/botdeck/internal/gamepad"
	"github.com/botdeck/botdeck/internal/protocol"
)

// Phase is the calibration state tag. Transitions are linear with two
// navigation edges (Skip and Back) out of Presenting/Detecting.
type Phase int

const (
	Idle Phase = iota
	Presenting
	Detecting
	Confirmed
	Summary
	Saved
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Presenting:
		return "presenting"
	case Detecting:
		return "detecting"
	case Confirmed:
		return "confirmed"
	case Summary:
		return "summary"
	case Saved:
		return "saved"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// PhysicalType distinguishes the two kinds of physical input address.
type PhysicalType string

const (
	Button PhysicalType = "button"
	Axis   PhysicalType = "axis"
)

// Entry is one learned association between a logical control and a physical
// input. Skipped marks controls the operator chose not to map. Immutable once
// committed.
type Entry struct {
	Type     PhysicalType `json:"physicalType,omitempty"`
	Index    int          `json:"physicalIndex"`
	IsAnalog bool         `json:"isAnalog"`
	Skipped  bool         `json:"skipped,omitempty"`
}

// Step is one position in the calibration sequence.
type Step struct {
	Control string
	// Analog steps are the stick axes: detection watches axis magnitude
	// instead of button presses.
	Analog bool
	// TriggerLike steps are nominally digital but may report pressure on an
	// axis channel; axis movement is preferred over a button press for them.
	TriggerLike bool
}

// DefaultSequence presents every digital control, then the stick axes.
func DefaultSequence() []Step {
	steps := make([]Step, 0, len(gamepad.ButtonControls)+len(gamepad.AxisControls))
	for _, name := range gamepad.ButtonControls {
		steps = append(steps, Step{Control: name, TriggerLike: gamepad.PressureControls[name]})
	}
	for _, name := range gamepad.AxisControls {
		steps = append(steps, Step{Control: name, Analog: true})
	}
	return steps
}

const (
	// DetectInterval is the detection tick, independent of the sampler's.
	DetectInterval = 50 * time.Millisecond

	pressThreshold     = 0.2  // button crossing that fires a digital candidate
	axisDeltaThreshold = 0.15 // per-tick axis delta that competes with a button
	axisMoveThreshold  = 0.3  // axis magnitude crossing for analog steps
	confirmTarget      = 3    // matching detections required to commit
	defaultGraceDelay  = time.Second
	deviceLostAfter    = 5 * time.Second
)

type candidate struct {
	typ   PhysicalType
	index int
}

// Status is the externally visible snapshot of a session, published to the
// local UI on every transition.
type Status struct {
	SessionID    string `json:"sessionId"`
	Phase        string `json:"phase"`
	Control      string `json:"control,omitempty"`
	Cursor       int    `json:"cursor"`
	Total        int    `json:"total"`
	ConfirmCount int    `json:"confirmCount"`
	ProfileName  string `json:"profileName,omitempty"`
}

// Profile is the persistable result handed to the save collaborator.
type Profile struct {
	ID        string           `json:"id"`
	VendorID  int              `json:"vendorId"`
	ProductID int              `json:"productId"`
	Name      string           `json:"name"`
	Mapping   map[string]Entry `json:"mapping"`
}

// Notifier receives local, operator-facing notifications (status updates,
// device-loss warnings). These never travel to the robot.
type Notifier func(id string, value any)

type session struct {
	id          string
	device      int
	deviceName  string
	vendor      uint16
	product     uint16
	profileName string

	sequence     []Step
	cursor       int
	phase        Phase
	cand         *candidate
	confirmCount int
	mapping      map[string]Entry

	prev     gamepad.Frame
	havePrev bool

	graceUntil   time.Time
	emptyReads   int
	lostNotified bool
}

// Wizard runs at most one calibration session at a time on its own detection
// tick.
type Wizard struct {
	source gamepad.Source
	sender gamepad.Sender
	notify Notifier

	graceDelay time.Duration
	now        func() time.Time

	mu      sync.Mutex
	session *session
	done    chan struct{}
	closed  bool
}

func New(source gamepad.Source, sender gamepad.Sender, notify Notifier) *Wizard {
	return &Wizard{
		source:     source,
		sender:     sender,
		notify:     notify,
		graceDelay: defaultGraceDelay,
		now:        time.Now,
		done:       make(chan struct{}),
	}
}

// Start runs the detection tick until Close.
func (w *Wizard) Start() {
	go w.loop()
}

func (w *Wizard) loop() {
	ticker := time.NewTicker(DetectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.step()
		}
	}
}

// Open begins a calibration session for a device, discarding any session
// already in progress.
func (w *Wizard) Open(device int, deviceName string, vendor, product uint16) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ""
	}
	w.session = &session{
		id:          uuid.NewString(),
		device:      device,
		deviceName:  deviceName,
		vendor:      vendor,
		product:     product,
		profileName: deviceName,
		sequence:    DefaultSequence(),
		phase:       Presenting,
		mapping:     make(map[string]Entry),
	}
	log.Printf("wizard: session %s opened for device %d (%s)", w.session.id, device, deviceName)
	w.publishLocked()
	return w.session.id
}

// Phase returns the current phase, Idle when no session is open.
func (w *Wizard) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return Idle
	}
	return w.session.phase
}

// Status returns the current session snapshot.
func (w *Wizard) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.statusLocked()
}

func (w *Wizard) statusLocked() Status {
	s := w.session
	if s == nil {
		return Status{Phase: Idle.String()}
	}
	st := Status{
		SessionID:    s.id,
		Phase:        s.phase.String(),
		Cursor:       s.cursor,
		Total:        len(s.sequence),
		ConfirmCount: s.confirmCount,
		ProfileName:  s.profileName,
	}
	if s.cursor < len(s.sequence) {
		st.Control = s.sequence[s.cursor].Control
	}
	return st
}

func (w *Wizard) publishLocked() {
	if w.notify == nil {
		return
	}
	w.notify(protocol.WizardStatus, w.statusLocked())
}

// step runs one detection tick.
func (w *Wizard) step() {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.session
	if s == nil {
		return
	}

	switch s.phase {
	case Confirmed:
		// Grace window lets the operator release the control before the
		// next one is presented.
		if !w.now().Before(s.graceUntil) {
			w.advanceLocked()
		}
	case Presenting, Detecting:
		w.detectLocked()
	}
}

func (w *Wizard) detectLocked() {
	s := w.session
	frame, ok := w.source.Frame(s.device)
	if !ok {
		s.emptyReads++
		if !s.lostNotified && time.Duration(s.emptyReads)*DetectInterval >= deviceLostAfter {
			s.lostNotified = true
			log.Printf("wizard: device %d silent for %s", s.device, deviceLostAfter)
			if w.notify != nil {
				w.notify(protocol.WizardDeviceLost, map[string]any{"device": s.device, "sessionId": s.id})
			}
		}
		return
	}
	s.emptyReads = 0
	s.lostNotified = false

	if s.phase == Presenting {
		s.phase = Detecting
	}
	if !s.havePrev {
		s.prev = frame
		s.havePrev = true
		return
	}

	step := s.sequence[s.cursor]
	det := detectCandidate(step, s.prev, frame)
	s.prev = frame
	if det == nil {
		return
	}

	// The confirmation counter only survives while the detected physical
	// input keeps the same identity; cross-talk resets it.
	if s.cand == nil || *s.cand != *det {
		s.cand = det
		s.confirmCount = 0
	}
	s.confirmCount++
	w.publishLocked()

	if s.confirmCount >= confirmTarget {
		w.commitLocked(step, *det)
	}
}

// detectCandidate computes the physical input activated between two frames
// for the current step, or nil.
func detectCandidate(step Step, prev, frame gamepad.Frame) *candidate {
	if step.Analog {
		best, bestMag := -1, 0.0
		for i := range frame.Axes {
			mag := math.Abs(frame.Axes[i])
			if mag >= axisMoveThreshold && math.Abs(prev.Axis(i)) < axisMoveThreshold && mag > bestMag {
				best, bestMag = i, mag
			}
		}
		if best >= 0 {
			return &candidate{typ: Axis, index: best}
		}
		return nil
	}

	buttonIdx := -1
	for i := range frame.Buttons {
		if frame.Buttons[i] >= pressThreshold && prev.Button(i) < pressThreshold {
			buttonIdx = i
			break
		}
	}
	axisIdx, bestDelta := -1, 0.0
	for i := range frame.Axes {
		delta := math.Abs(frame.Axes[i] - prev.Axis(i))
		if delta > axisDeltaThreshold && delta > bestDelta {
			axisIdx, bestDelta = i, delta
		}
	}

	// Trigger-like controls often report pressure only on an axis channel;
	// when both moved, the axis wins and the entry is marked analog.
	if step.TriggerLike && axisIdx >= 0 {
		return &candidate{typ: Axis, index: axisIdx}
	}
	if buttonIdx >= 0 {
		return &candidate{typ: Button, index: buttonIdx}
	}
	return nil
}

func (w *Wizard) commitLocked(step Step, det candidate) {
	s := w.session
	s.mapping[step.Control] = Entry{
		Type:     det.typ,
		Index:    det.index,
		IsAnalog: det.typ == Axis,
	}
	s.phase = Confirmed
	s.graceUntil = w.now().Add(w.graceDelay)
	log.Printf("wizard: %s mapped to %s %d", step.Control, det.typ, det.index)
	w.publishLocked()
}

// advanceLocked moves the cursor forward exactly one position.
func (w *Wizard) advanceLocked() {
	s := w.session
	s.cursor++
	s.cand = nil
	s.confirmCount = 0
	s.havePrev = false
	if s.cursor >= len(s.sequence) {
		s.phase = Summary
	} else {
		s.phase = Presenting
	}
	w.publishLocked()
}

// Skip leaves the current control unmapped and advances.
func (w *Wizard) Skip() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.session
	if s == nil || (s.phase != Presenting && s.phase != Detecting) {
		return fmt.Errorf("wizard: skip is only valid while presenting a control")
	}
	w.advanceLocked()
	return nil
}

// Back retreats exactly one position, clearing any entry already recorded for
// the control it returns to.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.session
	if s == nil || (s.phase != Presenting && s.phase != Detecting) || s.cursor == 0 {
		return fmt.Errorf("wizard: cannot go back from here")
	}
	s.cursor--
	delete(s.mapping, s.sequence[s.cursor].Control)
	s.cand = nil
	s.confirmCount = 0
	s.havePrev = false
	s.phase = Presenting
	w.publishLocked()
	return nil
}

// Mapping returns the full table: committed entries plus explicit skipped
// markers for every control without one.
func (w *Wizard) Mapping() map[string]Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.session
	if s == nil {
		return nil
	}
	out := make(map[string]Entry, len(s.sequence))
	for _, step := range s.sequence {
		if e, ok := s.mapping[step.Control]; ok {
			out[step.Control] = e
		} else {
			out[step.Control] = Entry{Skipped: true}
		}
	}
	return out
}

// SetProfileName renames the profile before saving.
func (w *Wizard) SetProfileName(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session != nil && name != "" {
		w.session.profileName = name
	}
}

// Save hands the finished table to the persistence collaborator and destroys
// the session. Only valid from the summary.
func (w *Wizard) Save() (Profile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.session
	if s == nil || s.phase != Summary {
		return Profile{}, fmt.Errorf("wizard: nothing to save")
	}

	profile := Profile{
		ID:        gamepad.ProfileID(s.deviceName, s.vendor, s.product),
		VendorID:  int(s.vendor),
		ProductID: int(s.product),
		Name:      s.profileName,
		Mapping:   make(map[string]Entry, len(s.sequence)),
	}
	for _, step := range s.sequence {
		if e, ok := s.mapping[step.Control]; ok {
			profile.Mapping[step.Control] = e
		} else {
			profile.Mapping[step.Control] = Entry{Skipped: true}
		}
	}

	if w.sender != nil {
		w.sender.Send(protocol.SaveGamepadProfile, profile, nil)
	}
	s.phase = Saved
	log.Printf("wizard: session %s saved profile %q (%d controls)", s.id, profile.Name, len(profile.Mapping))
	w.publishLocked()
	w.session = nil
	return profile, nil
}

// Cancel discards the session entirely. Safe to call with no session open.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.session
	if s == nil {
		return
	}
	s.phase = Cancelled
	log.Printf("wizard: session %s cancelled", s.id)
	w.publishLocked()
	w.session = nil
}

// Close cancels any session and stops the detection tick. Idempotent.
func (w *Wizard) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.session = nil
	close(w.done)
	w.mu.Unlock()
}
