package hub

import (
	"log"
	"strings"
	"sync"

	"github.com/botdeck/botdeck/internal/protocol"
)

// HandlerFunc processes one inbound command envelope. The client is the peer
// that sent it, so handlers can reply directly.
type HandlerFunc func(c *Client, env protocol.Envelope)

// Dispatcher routes inbound envelopes by output_id. Exact matches win over
// prefix matches; unmatched envelopes go to the fallback.
type Dispatcher struct {
	mu       sync.RWMutex
	exact    map[string]HandlerFunc
	prefixes []prefixHandler
	fallback HandlerFunc
}

type prefixHandler struct {
	prefix string
	fn     HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{exact: make(map[string]HandlerFunc)}
}

// Handle registers a handler for one output_id.
func (d *Dispatcher) Handle(outputID string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exact[outputID] = fn
}

// HandlePrefix registers a handler for every output_id sharing a prefix,
// e.g. GAMEPAD_.
func (d *Dispatcher) HandlePrefix(prefix string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prefixes = append(d.prefixes, prefixHandler{prefix: prefix, fn: fn})
}

// SetFallback registers the handler for unmatched envelopes.
func (d *Dispatcher) SetFallback(fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = fn
}

// Dispatch routes one envelope.
func (d *Dispatcher) Dispatch(c *Client, env protocol.Envelope) {
	d.mu.RLock()
	fn, ok := d.exact[env.OutputID]
	if !ok {
		for _, p := range d.prefixes {
			if strings.HasPrefix(env.OutputID, p.prefix) {
				fn, ok = p.fn, true
				break
			}
		}
	}
	if !ok {
		fn = d.fallback
	}
	d.mu.RUnlock()

	if fn == nil {
		log.Printf("hub: no handler for %q", env.OutputID)
		return
	}
	fn(c, env)
}
