package main

import (
	"encoding/json"
	"log"

	"github.com/botdeck/botdeck/internal/bridge"
	"github.com/botdeck/botdeck/internal/hub"
	"github.com/botdeck/botdeck/internal/profile"
	"github.com/botdeck/botdeck/internal/protocol"
	"github.com/botdeck/botdeck/internal/server"
)

// wizardEvents are rebroadcast verbatim so the console sees dashboard
// commands and the dashboard sees console status updates.
var wizardEvents = []string{
	protocol.WizardOpen,
	protocol.WizardSkip,
	protocol.WizardBack,
	protocol.WizardSetName,
	protocol.WizardSave,
	protocol.WizardCancel,
	protocol.WizardStatus,
	protocol.WizardDeviceLost,
}

func newDispatcher(h *hub.Hub, store *profile.Store, grid *server.GridStore, robot *bridge.Bridge) *hub.Dispatcher {
	d := hub.NewDispatcher()

	broadcastProfiles := func() {
		profiles, err := store.List()
		if err != nil {
			log.Printf("profiles: list failed: %v", err)
			return
		}
		h.Broadcast(protocol.GamepadProfilesList, profiles)
	}

	d.Handle(protocol.SaveGamepadProfile, func(c *hub.Client, env protocol.Envelope) {
		var p profile.Profile
		if err := reencode(env.Data, &p); err != nil {
			log.Printf("profiles: malformed save payload: %v", err)
			return
		}
		if err := store.Save(p); err != nil {
			log.Printf("profiles: save %q failed: %v", p.ID, err)
			return
		}
		log.Printf("profiles: saved %q", p.ID)
		broadcastProfiles()
	})

	d.Handle(protocol.GetGamepadProfile, func(c *hub.Client, env protocol.Envelope) {
		id, _ := env.Data.(string)
		p, ok, err := store.Get(id)
		if err != nil {
			log.Printf("profiles: get %q failed: %v", id, err)
			return
		}
		if !ok {
			c.SendEvent(protocol.GamepadProfileData, map[string]any{"gamepad_id": id, "exists": false})
			return
		}
		c.SendEvent(protocol.GamepadProfileData, map[string]any{"gamepad_id": id, "exists": true, "profile": p})
	})

	d.Handle(protocol.CheckGamepadProfile, func(c *hub.Client, env protocol.Envelope) {
		id, _ := env.Data.(string)
		exists, err := store.Exists(id)
		if err != nil {
			log.Printf("profiles: check %q failed: %v", id, err)
			return
		}
		c.SendEvent(protocol.GamepadProfileStatus, map[string]any{"gamepad_id": id, "exists": exists})
	})

	d.Handle(protocol.DeleteGamepadProfile, func(c *hub.Client, env protocol.Envelope) {
		id, _ := env.Data.(string)
		if _, err := store.Delete(id); err != nil {
			log.Printf("profiles: delete %q failed: %v", id, err)
			return
		}
		broadcastProfiles()
	})

	d.Handle(protocol.ListGamepadProfiles, func(c *hub.Client, env protocol.Envelope) {
		broadcastProfiles()
	})

	d.Handle(protocol.SaveGridState, func(c *hub.Client, env protocol.Envelope) {
		state, ok := env.Data.(map[string]any)
		if !ok {
			log.Printf("gridstate: save payload is not an object")
			return
		}
		if err := grid.Save(state); err != nil {
			log.Printf("gridstate: %v", err)
			return
		}
		h.Broadcast(protocol.GridState, state)
	})

	d.Handle(protocol.GetGridState, func(c *hub.Client, env protocol.Envelope) {
		c.SendEvent(protocol.GridState, grid.Load())
	})

	for _, id := range wizardEvents {
		d.Handle(id, func(c *hub.Client, env protocol.Envelope) {
			h.Broadcast(env.OutputID, env.Data)
		})
	}

	// Gamepad control events go to the robot and are mirrored to dashboards
	// so widgets can display live input.
	d.HandlePrefix(protocol.GamepadEventPrefix, func(c *hub.Client, env protocol.Envelope) {
		if robot != nil {
			robot.Send(env.OutputID, env.Data, env.Metadata)
		}
		h.Broadcast(env.OutputID, env.Data)
	})

	// Everything else is an opaque robot command.
	d.SetFallback(func(c *hub.Client, env protocol.Envelope) {
		if robot == nil {
			log.Printf("dispatch: dropping %q: no robot link configured", env.OutputID)
			return
		}
		robot.Send(env.OutputID, env.Data, env.Metadata)
	})

	return d
}

// reencode round-trips an already-decoded JSON value into a typed struct.
func reencode(data any, dst any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
