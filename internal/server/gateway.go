// Package server exposes the WebSocket gateway: an HTTP endpoint that
// upgrades browser connections and adapts them onto the same session engine
// the TCP listener uses.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Gateway serves the health endpoint and the /ws upgrade endpoint. Each
// upgraded connection becomes an ordinary chat session: one WebSocket text
// message maps to one protocol frame in each direction.
type Gateway struct {
	upgrader websocket.Upgrader

	allowed  map[string]struct{}
	allowAll bool

	httpServer *http.Server
}

// NewGateway builds the gateway in front of the given chat server. Returns
// nil when the config disables the HTTP address.
func NewGateway(cfg *Config, srv *Server) *Gateway {
	if cfg.HTTPAddr == "" {
		return nil
	}

	g := &Gateway{}
	g.allowed, g.allowAll = normalizeOrigins(cfg.AllowedOrigins)
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", g.webSocketHandler(srv))

	g.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return g
}

// Handler returns the gateway's HTTP handler, exposed for tests that serve
// the gateway from their own listener.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Start begins listening for HTTP connections and blocks until the server
// exits.
func (g *Gateway) Start() error {
	log.Printf("WebSocket gateway listening on %s", g.httpServer.Addr)
	if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server within the timeout. Upgraded
// connections are owned by the chat server and torn down by its shutdown.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.httpServer.Shutdown(ctx)
}

// HealthHandler provides a simple health check endpoint that returns server
// status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat server is running!")
}

// webSocketHandler upgrades the HTTP connection and hands the adapted
// connection to the chat server, which runs the normal session state machine
// over it.
func (g *Gateway) webSocketHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		ws, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		srv.HandleConn(newWSConn(ws))
	}
}

func normalizeOrigins(origins []string) (map[string]struct{}, bool) {
	allowed := make(map[string]struct{}, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}
		allowed[normalized] = struct{}{}
	}

	return allowed, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		return false
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}

	if g.allowAll {
		return true
	}
	if _, exists := g.allowed[normalized]; exists {
		return true
	}

	log.Printf("Blocked WebSocket connection from disallowed origin: %q", originHeader)
	return false
}
