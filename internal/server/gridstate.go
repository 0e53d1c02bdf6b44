package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
)

// GridStore persists the dashboard's widget layout as a JSON file, keyed by
// widget id. The gateway never interprets the layout; it stores what the
// dashboard sends and replays it to connecting clients.
type GridStore struct {
	path string
	mu   sync.Mutex
}

func NewGridStore(path string) *GridStore {
	return &GridStore{path: path}
}

// Load returns the stored layout. A missing or unreadable file yields an
// empty layout rather than an error.
func (g *GridStore) Load() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()

	data, err := os.ReadFile(g.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("gridstate: cannot read %s: %v", g.path, err)
		}
		return map[string]any{}
	}
	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("gridstate: corrupt state in %s: %v", g.path, err)
		return map[string]any{}
	}
	return state
}

// Save replaces the stored layout.
func (g *GridStore) Save(state map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("gridstate: encode: %w", err)
	}
	if err := os.WriteFile(g.path, data, 0o644); err != nil {
		return fmt.Errorf("gridstate: write %s: %w", g.path, err)
	}
	return nil
}
