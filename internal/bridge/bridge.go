// Package bridge maintains the persistent link between the operator console
// and the robot gateway. It turns an intermittently available websocket into
// an ordered, bidirectional, named event stream: outbound commands are queued
// while the link is down and flushed in order on reconnect, inbound frames are
// decoded and dispatched to named subscribers on a fixed drain tick.
package bridge

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/botdeck/botdeck/internal/protocol"
)

// State is the connection lifecycle state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	}
	return "unknown"
}

const (
	reconnectDelay = time.Second
	drainInterval  = 100 * time.Millisecond

	// DefaultQueueLimit caps the outbound queue while disconnected. On
	// overflow the oldest message is dropped. A limit of 0 means unbounded.
	DefaultQueueLimit = 1024

	// MessageChannel receives inbound events that carry no id.
	MessageChannel = "message"
)

// Handler receives a dispatched inbound event.
type Handler func(ev protocol.Event)

// Conn is the subset of the websocket connection the bridge uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a new transport connection. Every reconnect attempt dials a
// fresh connection; connections are never reused.
type Dialer interface {
	Dial() (Conn, error)
}

type wsDialer struct {
	url string
}

func (d wsDialer) Dial() (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(d.url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Subscription is a single registration of a handler under an event name.
// Cancelling removes exactly that registration.
type Subscription struct {
	bridge *Bridge
	name   string
	id     int
	fn     Handler
}

// Cancel removes this registration. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s != nil && s.bridge != nil {
		s.bridge.Off(s)
	}
}

// Bridge owns the connection lifecycle, the outbound queue, the inbound queue
// and the named publish/subscribe surface.
type Bridge struct {
	dialer     Dialer
	queueLimit int

	mu        sync.Mutex
	state     State
	conn      Conn
	outbound  []protocol.Envelope
	inbound   []protocol.Event
	subs      map[string][]*Subscription
	nextSubID int
	closed    bool
	retry     *time.Timer

	done chan struct{}
}

// New creates a bridge that dials the given websocket URL. queueLimit bounds
// the outbound queue (0 for unbounded); DefaultQueueLimit is a sensible value.
func New(url string, queueLimit int) *Bridge {
	return newBridge(wsDialer{url: url}, queueLimit)
}

func newBridge(d Dialer, queueLimit int) *Bridge {
	return &Bridge{
		dialer:     d,
		queueLimit: queueLimit,
		subs:       make(map[string][]*Subscription),
		done:       make(chan struct{}),
	}
}

// Start begins connecting and starts the inbound drain loop. It returns
// immediately; the bridge retries forever until Close is called.
func (b *Bridge) Start() {
	go b.connect()
	go b.drainLoop()
}

// State returns the current connection state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// QueueLen returns the number of outbound messages awaiting flush.
func (b *Bridge) QueueLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.outbound)
}

// Send relays a named payload toward the robot. It never fails from the
// caller's point of view: if the link is open the message is transmitted
// immediately, otherwise it is queued and flushed, in order, on reconnect.
func (b *Bridge) Send(id string, data any, metadata map[string]any) {
	env := protocol.Envelope{OutputID: id, Data: data, Metadata: metadata}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.state != Open {
		b.enqueueLocked(env)
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("bridge: dropping unencodable message %q: %v", id, err)
		return
	}
	if err := b.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		// Keep the message at the head of the queue so the first flush
		// after reconnect preserves send order.
		b.outbound = append([]protocol.Envelope{env}, b.outbound...)
		b.dropConnLocked(err)
	}
}

// On registers a handler for a named event. Events with no id are dispatched
// under MessageChannel. Multiple handlers for the same name all fire, in
// registration order.
func (b *Bridge) On(name string, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return &Subscription{}
	}
	b.nextSubID++
	sub := &Subscription{bridge: b, name: name, id: b.nextSubID, fn: fn}
	b.subs[name] = append(b.subs[name], sub)
	return sub
}

// Off removes exactly one registration.
func (b *Bridge) Off(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.name]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Close tears the bridge down: the connection is closed, timers stop and all
// subscriptions are dropped. Idempotent.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.state = Closing
	if b.retry != nil {
		b.retry.Stop()
		b.retry = nil
	}
	conn := b.conn
	b.conn = nil
	b.subs = make(map[string][]*Subscription)
	b.inbound = nil
	b.state = Disconnected
	close(b.done)
	b.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (b *Bridge) enqueueLocked(env protocol.Envelope) {
	if b.queueLimit > 0 && len(b.outbound) >= b.queueLimit {
		dropped := b.outbound[0]
		b.outbound = b.outbound[1:]
		log.Printf("bridge: outbound queue full, dropping oldest message %q", dropped.OutputID)
	}
	b.outbound = append(b.outbound, env)
}

// connect dials a fresh connection. On failure it schedules another attempt
// after a fixed delay, forever. On success it flushes the outbound queue in
// full and starts the read loop.
func (b *Bridge) connect() {
	b.mu.Lock()
	if b.closed || b.state == Open || b.state == Connecting {
		b.mu.Unlock()
		return
	}
	b.state = Connecting
	b.mu.Unlock()

	conn, err := b.dialer.Dial()
	if err != nil {
		log.Printf("bridge: connect failed: %v (retrying in %s)", err, reconnectDelay)
		b.mu.Lock()
		b.state = Disconnected
		b.scheduleReconnectLocked()
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return
	}
	b.conn = conn
	b.state = Open
	log.Printf("bridge: connected (%d queued messages to flush)", len(b.outbound))
	b.flushLocked()
	stillOpen := b.state == Open
	b.mu.Unlock()

	if stillOpen {
		go b.readLoop(conn)
	}
}

func (b *Bridge) scheduleReconnectLocked() {
	if b.closed {
		return
	}
	if b.retry != nil {
		b.retry.Stop()
	}
	b.retry = time.AfterFunc(reconnectDelay, b.connect)
}

// dropConnLocked force-closes the current connection and arms the reconnect
// timer. Queued messages are kept.
func (b *Bridge) dropConnLocked(cause error) {
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	if b.state != Disconnected {
		log.Printf("bridge: connection lost: %v", cause)
	}
	b.state = Disconnected
	b.scheduleReconnectLocked()
}

// flushLocked drains the outbound queue in enqueue order. A write failure
// stops the flush with the failed message still at the head of the queue.
func (b *Bridge) flushLocked() {
	for b.state == Open && len(b.outbound) > 0 {
		env := b.outbound[0]
		payload, err := json.Marshal(env)
		if err != nil {
			log.Printf("bridge: dropping unencodable queued message %q: %v", env.OutputID, err)
			b.outbound = b.outbound[1:]
			continue
		}
		if err := b.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			b.dropConnLocked(err)
			return
		}
		b.outbound = b.outbound[1:]
	}
}

// readLoop consumes frames from one connection until it dies, then hands
// control back to the reconnect path.
func (b *Bridge) readLoop(conn Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			if b.conn == conn && !b.closed {
				b.dropConnLocked(err)
			}
			b.mu.Unlock()
			return
		}
		b.handleFrame(frame)
	}
}

// handleFrame decodes one raw frame. Binary frames are treated as UTF-8 text.
// Malformed payloads are logged and dropped; they never close the connection.
func (b *Bridge) handleFrame(frame []byte) {
	ev, err := protocol.DecodeEvent(frame)
	if err != nil {
		log.Printf("bridge: discarding malformed frame: %v", err)
		return
	}
	b.mu.Lock()
	if !b.closed {
		b.inbound = append(b.inbound, ev)
	}
	b.mu.Unlock()
}

func (b *Bridge) drainLoop() {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.drainOnce()
		}
	}
}

// drainOnce dispatches every queued inbound event, in arrival order, to every
// subscriber registered under the event's name.
func (b *Bridge) drainOnce() {
	b.mu.Lock()
	pending := b.inbound
	b.inbound = nil
	b.mu.Unlock()

	for _, ev := range pending {
		name := ev.ID
		if name == "" {
			name = MessageChannel
		}
		b.mu.Lock()
		subs := make([]*Subscription, len(b.subs[name]))
		copy(subs, b.subs[name])
		b.mu.Unlock()
		for _, s := range subs {
			s.fn(ev)
		}
	}
}
