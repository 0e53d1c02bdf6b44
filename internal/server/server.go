// Package server is the gateway's HTTP face: the /ws endpoint, a health
// probe and the embedded dashboard assets.
package server

import (
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/botdeck/botdeck/internal/hub"
)

type Server struct {
	hub        *hub.Hub
	dispatcher *hub.Dispatcher
	assets     *AssetCache
	addr       string
	httpServer *http.Server
}

func New(h *hub.Hub, d *hub.Dispatcher, frontendFS fs.FS, addr string) (*Server, error) {
	assets, err := NewAssetCache(frontendFS)
	if err != nil {
		return nil, err
	}
	return &Server{
		hub:        h,
		dispatcher: d,
		assets:     assets,
		addr:       addr,
	}, nil
}

func (s *Server) ListenAndServe() error {
	r := chi.NewRouter()

	r.Get("/ws", handleWebSocket(s.hub, s.dispatcher))
	r.Get("/healthz", s.handleHealth)
	r.Get("/*", s.assets.ServeHTTP)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: r,
	}

	log.Printf("HTTP server listening on %s", s.addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		log.Println("Shutting down HTTP server...")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
