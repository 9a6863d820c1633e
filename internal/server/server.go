// Package server coordinates connection acceptance, session tracking, and
// graceful shutdown for the chat service.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/registry"
)

// Server accepts chat connections and spawns one session per connection. It
// retains a handle to every live connection so shutdown can interrupt
// blocking reads and wait for sessions to finish.
type Server struct {
	cfg *Config
	reg *registry.Registry

	ln net.Listener

	mu    sync.Mutex
	conns map[*Conn]struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server bound to the given registry. Call Start to begin
// accepting connections.
func New(cfg *Config, reg *registry.Registry) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		reg:    reg,
		conns:  make(map[*Conn]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start opens the TCP listener and launches the accept loop. It returns once
// the listener is bound, so callers can read Addr immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.ln = ln
	log.Printf("Chat server listening on %s", ln.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) acceptLoop() {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		s.HandleConn(nc)
	}
}

// HandleConn runs a session for an already-established connection. The
// WebSocket gateway feeds its adapted connections through the same path, so
// both transports share one session engine and one shutdown story.
func (s *Server) HandleConn(nc net.Conn) {
	conn := NewConn(nc, s.cfg.MaxFrameSize)

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	total := len(s.conns)
	s.mu.Unlock()
	log.Printf("Connection accepted from %s. Total connections: %d", conn.RemoteAddr(), total)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(conn)

		session := NewSession(conn, s.reg)
		session.Run(s.ctx)
	}()
}

func (s *Server) release(conn *Conn) {
	_ = conn.Close()

	s.mu.Lock()
	delete(s.conns, conn)
	total := len(s.conns)
	s.mu.Unlock()
	log.Printf("Connection from %s released. Total connections: %d", conn.RemoteAddr(), total)
}

// Shutdown stops accepting new connections, cancels every live session, and
// waits for them to reach Closed. Sessions that do not finish within the
// grace period are abandoned and reported via the returned error.
func (s *Server) Shutdown(timeout time.Duration) error {
	log.Println("Initiating chat server shutdown...")

	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}

	// Closing the connections unblocks sessions stuck in a read; their
	// cleanup paths release usernames and room membership.
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Chat server shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Chat server shutdown grace period elapsed, abandoning remaining sessions")
		return context.DeadlineExceeded
	}
}
