package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/scythe504/linkrace-backend/internal/config"
	"github.com/scythe504/linkrace-backend/internal/game"
)

type Server struct {
	cfg      config.Config
	registry *game.Registry
	upgrader websocket.Upgrader
}

func New(cfg config.Config, registry *game.Registry) *Server {
	s := &Server{cfg: cfg, registry: registry}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.OriginAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

// NewServer wires the routes into an http.Server listening on cfg.Port.
func NewServer(cfg config.Config, registry *game.Registry) *http.Server {
	s := New(cfg, registry)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
