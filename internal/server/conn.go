// Package server manages individual participant connections, serializing
// writes so a connection fed by both its own session and other sessions'
// broadcasts never emits interleaved frames.
package server

import (
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

const writeTimeout = 10 * time.Second

// Conn wraps a participant's network connection with frame-level I/O. Reads
// are owned exclusively by the participant's session; writes can come from
// the session and from broadcast fan-out in other sessions, so WriteFrame
// holds a mutex for the full duration of the write. One frame therefore goes
// out atomically or not at all.
type Conn struct {
	nc net.Conn
	fr *protocol.FrameReader

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps nc with frame I/O capped at maxFrame bytes per inbound frame.
func NewConn(nc net.Conn, maxFrame int) *Conn {
	return &Conn{
		nc: nc,
		fr: protocol.NewFrameReader(nc, maxFrame),
	}
}

// ReadFrame returns the next inbound frame. Only the owning session may call
// this.
func (c *Conn) ReadFrame() ([]byte, error) {
	return c.fr.ReadFrame()
}

// WriteFrame sends one frame, serialized against all other writers of this
// connection. A write deadline bounds how long a stalled peer can hold the
// lock.
func (c *Conn) WriteFrame(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.nc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return protocol.WriteFrame(c.nc, payload)
}

// WriteToken sends a sentinel token frame, optionally with an argument.
func (c *Conn) WriteToken(token protocol.Token, arg string) error {
	return c.WriteFrame(protocol.Ack(token, arg))
}

// Close tears the connection down. Safe to call from any goroutine and
// idempotent; an in-flight write finishes or fails atomically before the
// socket goes away because close does not bypass the write mutex holders.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address for diagnostics.
func (c *Conn) RemoteAddr() string {
	if addr := c.nc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}
