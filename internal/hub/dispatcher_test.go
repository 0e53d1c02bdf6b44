package hub

import (
	"testing"

	"github.com/botdeck/botdeck/internal/protocol"
)

func TestDispatchExactMatchWinsOverPrefix(t *testing.T) {
	d := NewDispatcher()
	var got []string
	d.HandlePrefix("GAMEPAD_", func(c *Client, env protocol.Envelope) {
		got = append(got, "prefix:"+env.OutputID)
	})
	d.Handle("GAMEPAD_FACE_1", func(c *Client, env protocol.Envelope) {
		got = append(got, "exact:"+env.OutputID)
	})

	d.Dispatch(nil, protocol.Envelope{OutputID: "GAMEPAD_FACE_1"})
	d.Dispatch(nil, protocol.Envelope{OutputID: "GAMEPAD_FACE_2"})

	if len(got) != 2 || got[0] != "exact:GAMEPAD_FACE_1" || got[1] != "prefix:GAMEPAD_FACE_2" {
		t.Fatalf("dispatch routing = %v", got)
	}
}

func TestDispatchFallbackCatchesUnmatched(t *testing.T) {
	d := NewDispatcher()
	var got []string
	d.Handle(protocol.SaveGamepadProfile, func(c *Client, env protocol.Envelope) {
		got = append(got, "profile")
	})
	d.SetFallback(func(c *Client, env protocol.Envelope) {
		got = append(got, "fallback:"+env.OutputID)
	})

	d.Dispatch(nil, protocol.Envelope{OutputID: protocol.SetServo})

	if len(got) != 1 || got[0] != "fallback:set_servo" {
		t.Fatalf("dispatch routing = %v", got)
	}
}

func TestDispatchWithoutHandlerIsDropped(t *testing.T) {
	d := NewDispatcher()
	// Nothing registered: dispatch must not panic.
	d.Dispatch(nil, protocol.Envelope{OutputID: "SCAN"})
}
