// console is the operator-side agent: it owns the gamepad hardware, samples
// input at a fixed tick, runs the mapping wizard, and relays everything to
// the deckd gateway over a reconnecting websocket bridge.
package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/botdeck/botdeck/internal/bridge"
	"github.com/botdeck/botdeck/internal/config"
	"github.com/botdeck/botdeck/internal/console"
	"github.com/botdeck/botdeck/internal/gamepad"
	"github.com/botdeck/botdeck/internal/protocol"
	"github.com/botdeck/botdeck/internal/tray"
	"github.com/botdeck/botdeck/internal/wizard"
)

// Cross-platform shutdown signals: os.Interrupt covers Ctrl+C on Windows and
// SIGINT on Unix.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	flags := pflag.NewFlagSet("console", pflag.ExitOnError)
	flags.String("gateway_url", "ws://localhost:8080/ws", "websocket URL of the deckd gateway")
	flags.Duration("poll_interval", gamepad.DefaultPollInterval, "gamepad sampling interval")
	flags.Int("queue_limit", bridge.DefaultQueueLimit, "outbound queue cap, 0 for unbounded")
	flags.Bool("tray", false, "show a system tray icon")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("console: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	br := bridge.New(cfg.GatewayURL, cfg.QueueLimit)
	source := gamepad.NewSDLSource()
	registry := gamepad.NewRegistry(source, br, cfg.PollInterval)

	// Wizard notifications travel to the gateway like any other command
	// envelope; the gateway mirrors them back to dashboards as events.
	wiz := wizard.New(source, br, func(id string, value any) {
		br.Send(id, value, nil)
	})

	source.OnConnect = func(slot int, name string, vendor, product uint16) {
		s := registry.Add(slot, name, vendor, product)
		if s == nil {
			return
		}
		log.Printf("console: gamepad %q in slot %d", name, slot)
		br.Send(protocol.CheckGamepadProfile, s.ProfileID(), nil)
	}
	source.OnDisconnect = func(slot int) {
		registry.Remove(slot)
	}

	wireWizardCommands(br, wiz, registry)

	// Double-clicked on Windows means no terminal; fall back to the tray so
	// the process stays reachable.
	fromTerminal := console.IsRunningFromConsole()
	useTray := cfg.Tray || !fromTerminal

	// Go's os.Interrupt handling can miss Ctrl+C on Windows once SDL locks
	// the main thread; register a native handler as well.
	ctrlC := make(chan struct{})
	reregisterHandler := console.SetupConsoleHandler(ctrlC)

	br.Start()
	wiz.Start()

	sdlDone := make(chan struct{})
	go func() {
		source.Run(ctx)
		close(sdlDone)
	}()

	// SDL replaces the console handler chain during init; put ours back once
	// it has had time to finish.
	time.AfterFunc(2*time.Second, reregisterHandler)

	log.Printf("console started, dialing %s", cfg.GatewayURL)

	shutdownRequested := make(chan struct{})
	if useTray {
		go func() {
			t := tray.New(dashboardURL(cfg.GatewayURL), func() string {
				return br.State().String()
			}, func() {
				close(shutdownRequested)
			})
			t.Run(tray.GetIcon())
		}()
	} else {
		log.Println("Press Ctrl+C to exit")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)

	select {
	case <-sigCh:
		log.Println("Shutting down...")
	case <-ctrlC:
		log.Println("Shutting down...")
	case <-shutdownRequested:
		log.Println("Shutdown requested from tray")
	}
	cancel()

	<-sdlDone
	wiz.Close()
	registry.Close()
	br.Close()

	log.Println("console stopped")
}

// wireWizardCommands subscribes the wizard to the dashboard's command events
// coming back over the bridge.
func wireWizardCommands(br *bridge.Bridge, wiz *wizard.Wizard, registry *gamepad.Registry) {
	publish := func() {
		br.Send(protocol.WizardStatus, wiz.Status(), nil)
	}

	br.On(protocol.WizardOpen, func(ev protocol.Event) {
		slot := -1
		if n, ok := ev.Value.(float64); ok {
			slot = int(n)
		}
		s := registry.Get(slot)
		if s == nil {
			if slots := registry.Slots(); len(slots) > 0 {
				s = slots[0]
			}
		}
		if s == nil {
			log.Println("wizard: no gamepad connected, ignoring open request")
			return
		}
		wiz.Open(s.Index, s.Name, s.Vendor, s.Product)
		publish()
	})

	br.On(protocol.WizardSkip, func(ev protocol.Event) {
		if err := wiz.Skip(); err != nil {
			log.Printf("wizard: skip: %v", err)
			return
		}
		publish()
	})

	br.On(protocol.WizardBack, func(ev protocol.Event) {
		if err := wiz.Back(); err != nil {
			log.Printf("wizard: back: %v", err)
			return
		}
		publish()
	})

	br.On(protocol.WizardSetName, func(ev protocol.Event) {
		name, ok := ev.Value.(string)
		if !ok {
			return
		}
		wiz.SetProfileName(name)
		publish()
	})

	br.On(protocol.WizardSave, func(ev protocol.Event) {
		if _, err := wiz.Save(); err != nil {
			log.Printf("wizard: save: %v", err)
			return
		}
		publish()
	})

	br.On(protocol.WizardCancel, func(ev protocol.Event) {
		wiz.Cancel()
		publish()
	})
}

// dashboardURL derives the browsable gateway address from its websocket URL.
func dashboardURL(gatewayURL string) string {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return "http://localhost:8080"
	}
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path = "/"
	return u.String()
}
