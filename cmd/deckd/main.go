// deckd is the robot-side gateway: it serves the operator dashboard, fans
// command envelopes from websocket clients into the dispatcher, and owns the
// gamepad profile store.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/botdeck/botdeck/internal/bridge"
	"github.com/botdeck/botdeck/internal/config"
	"github.com/botdeck/botdeck/internal/hub"
	"github.com/botdeck/botdeck/internal/profile"
	"github.com/botdeck/botdeck/internal/protocol"
	"github.com/botdeck/botdeck/internal/server"
)

// Cross-platform shutdown signals: os.Interrupt covers Ctrl+C on Windows and
// SIGINT on Unix.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	flags := pflag.NewFlagSet("deckd", pflag.ExitOnError)
	flags.String("listen_addr", ":8080", "HTTP listen address")
	flags.String("robot_url", "", "websocket URL of the robot process, empty to run standalone")
	flags.String("database_path", "botdeck.db", "SQLite database holding gamepad profiles")
	flags.String("grid_state_path", "grid_state.json", "dashboard layout file")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("deckd: %v", err)
	}

	store, err := profile.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("deckd: open profile store: %v", err)
	}
	defer store.Close()

	grid := server.NewGridStore(cfg.GridStatePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := hub.NewHub()
	go h.Run(ctx)

	// Optional upstream link to the robot process. Telemetry events coming
	// back over it are mirrored to every dashboard.
	var robot *bridge.Bridge
	if cfg.RobotURL != "" {
		robot = bridge.New(cfg.RobotURL, bridge.DefaultQueueLimit)
		relayed := []string{
			protocol.Voltage, protocol.Soc, protocol.Volume,
			protocol.AvailableSounds, protocol.ConnectionStatus,
		}
		for _, id := range relayed {
			robot.On(id, func(ev protocol.Event) {
				h.Broadcast(ev.ID, ev.Value)
			})
		}
		robot.Start()
		log.Printf("Robot link dialing %s", cfg.RobotURL)
	}

	d := newDispatcher(h, store, grid, robot)

	h.OnConnect = func(c *hub.Client) {
		c.SendEvent(protocol.ConnectionStatus, "connected")
		c.SendEvent(protocol.GridState, grid.Load())
		if profiles, err := store.List(); err == nil {
			c.SendEvent(protocol.GamepadProfilesList, profiles)
		}
	}

	srv, err := server.New(h, d, getFrontendFS(), cfg.ListenAddr)
	if err != nil {
		log.Fatalf("deckd: %v", err)
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	log.Printf("deckd started: http://localhost%s", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)

	select {
	case <-sigCh:
		log.Println("Shutting down...")
	case err := <-serverErrCh:
		log.Printf("HTTP server error: %v", err)
	}
	cancel()

	if robot != nil {
		robot.Close()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("deckd stopped")
}
