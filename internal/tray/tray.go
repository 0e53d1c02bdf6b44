// Package tray puts the operator console in the system tray so it can run
// headless next to the dashboard browser tab.
package tray

import (
	"log"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"fyne.io/systray"
)

// StatusFunc reports the current gateway link state for the tooltip.
type StatusFunc func() string

// ShutdownFunc is called once when "Exit" is clicked.
type ShutdownFunc func()

// Tray manages the system tray icon and menu.
type Tray struct {
	dashboardURL string
	status       StatusFunc
	shutdownFunc ShutdownFunc
	once         sync.Once
	shuttingDown atomic.Bool
	menuOpen     *systray.MenuItem
	menuExit     *systray.MenuItem
}

func New(dashboardURL string, status StatusFunc, shutdownFn ShutdownFunc) *Tray {
	return &Tray{
		dashboardURL: dashboardURL,
		status:       status,
		shutdownFunc: shutdownFn,
	}
}

// Run initializes and runs the system tray. It blocks until Quit().
func (t *Tray) Run(iconData []byte) {
	systray.Run(func() {
		t.onReady(iconData)
	}, func() {
		t.onExit()
	})
}

func (t *Tray) onReady(iconData []byte) {
	if iconData != nil {
		systray.SetIcon(iconData)
	}
	systray.SetTitle("botdeck")
	systray.SetTooltip("botdeck console")

	t.menuOpen = systray.AddMenuItem("Open Dashboard", "Open the dashboard in a browser")
	t.menuExit = systray.AddMenuItem("Exit", "Quit the console")

	go t.handleMenuClicks()
	if t.status != nil {
		go t.refreshTooltip()
	}

	log.Println("System tray initialized")
}

func (t *Tray) handleMenuClicks() {
	for {
		select {
		case <-t.menuOpen.ClickedCh:
			if !t.shuttingDown.Load() {
				t.openBrowser()
			}
		case <-t.menuExit.ClickedCh:
			if t.shuttingDown.CompareAndSwap(false, true) {
				t.once.Do(t.shutdownFunc)
				systray.Quit()
				return
			}
		}
	}
}

// refreshTooltip mirrors the gateway link state into the tray tooltip.
func (t *Tray) refreshTooltip() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if t.shuttingDown.Load() {
			return
		}
		systray.SetTooltip("botdeck console: " + t.status())
	}
}

func (t *Tray) onExit() {
	t.shuttingDown.Store(true)
	log.Println("System tray exiting")
}

func (t *Tray) openBrowser() {
	if t.shuttingDown.Load() {
		return
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", t.dashboardURL)
	case "darwin":
		cmd = exec.Command("open", t.dashboardURL)
	default:
		cmd = exec.Command("xdg-open", t.dashboardURL)
	}

	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
