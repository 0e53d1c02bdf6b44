package bridge

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/botdeck/botdeck/internal/protocol"
)

type fakeConn struct {
	mu        sync.Mutex
	written   []string
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	failWrite bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-c.frames:
		return websocket.TextMessage, f, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite {
		return errors.New("broken pipe")
	}
	c.written = append(c.written, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) setFailWrite(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWrite = fail
}

func (c *fakeConn) sentIDs(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.written))
	for _, raw := range c.written {
		var env protocol.Envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			t.Fatalf("transport received invalid JSON %q: %v", raw, err)
		}
		ids = append(ids, env.OutputID)
	}
	return ids
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  bool
}

func (d *fakeDialer) Dial() (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOfflineSendsFlushInOrder(t *testing.T) {
	d := &fakeDialer{}
	b := newBridge(d, 0)
	defer b.Close()

	b.Send("a", 1, nil)
	b.Send("b", 2, nil)
	b.Send("c", 3, nil)
	if got := b.QueueLen(); got != 3 {
		t.Fatalf("queue length = %d, want 3", got)
	}

	b.connect()

	if b.State() != Open {
		t.Fatalf("state = %v, want open", b.State())
	}
	if got := d.last().sentIDs(t); !equalStrings(got, []string{"a", "b", "c"}) {
		t.Fatalf("transport received %v, want [a b c]", got)
	}
	if got := b.QueueLen(); got != 0 {
		t.Fatalf("queue length after flush = %d, want 0", got)
	}
}

func TestSendTransmitsImmediatelyWhenOpen(t *testing.T) {
	d := &fakeDialer{}
	b := newBridge(d, 0)
	defer b.Close()
	b.connect()

	b.Send("set_servo", map[string]any{"id": 3, "position": 90}, nil)

	if got := d.last().sentIDs(t); !equalStrings(got, []string{"set_servo"}) {
		t.Fatalf("transport received %v, want [set_servo]", got)
	}
}

func TestOutboundQueueDropsOldestOnOverflow(t *testing.T) {
	d := &fakeDialer{}
	b := newBridge(d, 2)
	defer b.Close()

	b.Send("a", nil, nil)
	b.Send("b", nil, nil)
	b.Send("c", nil, nil)

	b.connect()

	if got := d.last().sentIDs(t); !equalStrings(got, []string{"b", "c"}) {
		t.Fatalf("transport received %v, want [b c]", got)
	}
}

func TestWriteFailureRequeuesAndRecovers(t *testing.T) {
	d := &fakeDialer{}
	b := newBridge(d, 0)
	defer b.Close()
	b.connect()

	d.last().setFailWrite(true)
	b.Send("a", nil, nil)

	if b.State() != Disconnected {
		t.Fatalf("state after write failure = %v, want disconnected", b.State())
	}
	if got := b.QueueLen(); got != 1 {
		t.Fatalf("queue length = %d, want 1", got)
	}

	b.Send("b", nil, nil)
	b.connect()

	if got := d.last().sentIDs(t); !equalStrings(got, []string{"a", "b"}) {
		t.Fatalf("transport received %v after reconnect, want [a b]", got)
	}
}

func TestMalformedFrameIsDroppedAndConnectionStaysOpen(t *testing.T) {
	d := &fakeDialer{}
	b := newBridge(d, 0)
	defer b.Close()
	b.connect()

	fired := 0
	b.On("battery", func(protocol.Event) { fired++ })
	b.On(MessageChannel, func(protocol.Event) { fired++ })

	b.handleFrame([]byte("{not json"))
	b.drainOnce()

	if fired != 0 {
		t.Fatalf("handlers fired %d times for malformed frame, want 0", fired)
	}
	if b.State() != Open {
		t.Fatalf("state = %v, want open", b.State())
	}
}

func TestDrainDispatchesInArrivalOrder(t *testing.T) {
	d := &fakeDialer{}
	b := newBridge(d, 0)
	defer b.Close()
	b.connect()

	var got []string
	b.On("servo_status", func(ev protocol.Event) {
		got = append(got, ev.Value.(string))
	})

	b.handleFrame([]byte(`{"id":"servo_status","value":"first"}`))
	b.handleFrame([]byte(`{"id":"servo_status","value":"second"}`))
	b.handleFrame([]byte(`{"id":"servo_status","value":"third"}`))
	b.drainOnce()

	if !equalStrings(got, []string{"first", "second", "third"}) {
		t.Fatalf("dispatch order = %v, want [first second third]", got)
	}
}

func TestUnnamedEventsFallBackToMessageChannel(t *testing.T) {
	d := &fakeDialer{}
	b := newBridge(d, 0)
	defer b.Close()
	b.connect()

	var got []protocol.Event
	b.On(MessageChannel, func(ev protocol.Event) { got = append(got, ev) })

	b.handleFrame([]byte(`{"value":42}`))
	b.drainOnce()

	if len(got) != 1 {
		t.Fatalf("message channel received %d events, want 1", len(got))
	}
}

func TestSubscribersFireInRegistrationOrder(t *testing.T) {
	d := &fakeDialer{}
	b := newBridge(d, 0)
	defer b.Close()
	b.connect()

	var order []string
	b.On("battery", func(protocol.Event) { order = append(order, "first") })
	b.On("battery", func(protocol.Event) { order = append(order, "second") })

	b.handleFrame([]byte(`{"id":"battery","value":87}`))
	b.drainOnce()

	if !equalStrings(order, []string{"first", "second"}) {
		t.Fatalf("handler order = %v, want [first second]", order)
	}
}

func TestOffRemovesExactlyOneRegistration(t *testing.T) {
	d := &fakeDialer{}
	b := newBridge(d, 0)
	defer b.Close()
	b.connect()

	fired := 0
	handler := func(protocol.Event) { fired++ }
	sub1 := b.On("battery", handler)
	b.On("battery", handler)

	sub1.Cancel()
	sub1.Cancel() // cancelling twice removes nothing further

	b.handleFrame([]byte(`{"id":"battery","value":1}`))
	b.drainOnce()

	if fired != 1 {
		t.Fatalf("handler fired %d times, want 1", fired)
	}
}

func TestUnchangedEventsRedeliveredEachArrival(t *testing.T) {
	// The bridge does not deduplicate: every arrived event dispatches once.
	d := &fakeDialer{}
	b := newBridge(d, 0)
	defer b.Close()
	b.connect()

	fired := 0
	b.On("battery", func(protocol.Event) { fired++ })

	b.handleFrame([]byte(`{"id":"battery","value":50}`))
	b.drainOnce()
	b.handleFrame([]byte(`{"id":"battery","value":50}`))
	b.drainOnce()

	if fired != 2 {
		t.Fatalf("handler fired %d times, want 2", fired)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	d := &fakeDialer{}
	b := newBridge(d, 0)
	b.connect()

	b.Close()
	b.Close()

	if b.State() != Disconnected {
		t.Fatalf("state after close = %v, want disconnected", b.State())
	}
	// Sends after close are silently ignored.
	b.Send("a", nil, nil)
	if got := b.QueueLen(); got != 0 {
		t.Fatalf("queue length after close = %d, want 0", got)
	}
}

func TestDialFailureSchedulesRetry(t *testing.T) {
	d := &fakeDialer{fail: true}
	b := newBridge(d, 0)
	defer b.Close()

	b.connect()

	if b.State() != Disconnected {
		t.Fatalf("state = %v, want disconnected", b.State())
	}
	b.mu.Lock()
	armed := b.retry != nil
	b.mu.Unlock()
	if !armed {
		t.Fatal("reconnect timer not armed after dial failure")
	}
}
