// Package server drives each participant through the protocol state machine:
// username negotiation, the idle command loop, and in-room message relay.
package server

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/registry"
)

const timestampLayout = "2006-01-02 15:04:05"

// Session owns one participant connection and walks it through
// Negotiating → Idle → InRoom → Closed. Any I/O error in any state moves the
// session to Closed, which releases the username, detaches from the current
// room (running the deletion check), and closes the connection exactly once.
type Session struct {
	id   string
	conn *Conn
	reg  *registry.Registry

	username string
	roomID   string
}

// NewSession creates a session for one accepted connection.
func NewSession(conn *Conn, reg *registry.Registry) *Session {
	return &Session{
		id:   uuid.NewString(),
		conn: conn,
		reg:  reg,
	}
}

// Run executes the session until the participant exits, the connection
// fails, or ctx is cancelled. It always leaves the registry clean.
func (s *Session) Run(ctx context.Context) {
	defer s.cleanup()

	if err := s.negotiate(ctx); err != nil {
		log.Printf("Session %s (%s): negotiation ended: %v", s.id, s.conn.RemoteAddr(), err)
		return
	}
	log.Printf("Session %s (%s): %s joined the server", s.id, s.conn.RemoteAddr(), s.username)

	if err := s.sendWelcome(); err != nil {
		return
	}
	if err := s.sendRoomList(); err != nil {
		return
	}

	if err := s.idleLoop(ctx); err != nil {
		log.Printf("Session %s (%s): closed: %v", s.id, s.conn.RemoteAddr(), err)
	}
}

// negotiate repeatedly prompts for a username until reservation succeeds.
// Exactly one response frame is sent per attempt: the ask token again for an
// out-of-bounds name, the duplicate token for a taken name, or the verified
// token on success.
func (s *Session) negotiate(ctx context.Context) error {
	if err := s.conn.WriteToken(protocol.TokenAskUsername, ""); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := s.conn.ReadFrame()
		if err != nil {
			return err
		}

		name := strings.TrimSpace(string(frame))
		if !protocol.ValidUsername(name) {
			// Length bounds are checked before touching the shared username
			// set so garbage input never contends on the registry.
			if err := s.conn.WriteToken(protocol.TokenAskUsername, ""); err != nil {
				return err
			}
			continue
		}

		if !s.reg.ReserveUsername(name) {
			if err := s.conn.WriteToken(protocol.TokenDuplicate, ""); err != nil {
				return err
			}
			continue
		}

		s.username = name
		return s.conn.WriteToken(protocol.TokenVerified, "")
	}
}

func (s *Session) sendWelcome() error {
	welcome := fmt.Sprintf("Hello %s, Welcome to the chat server! Use `/help` to show all commands.", s.username)
	return s.conn.WriteFrame([]byte(welcome))
}

// sendRoomList writes the listing header followed by the row frames the
// header promises, so the client can read a deterministic number of frames.
func (s *Session) sendRoomList() error {
	infos := s.reg.Snapshot()
	rooms := make([]protocol.RoomSummary, 0, len(infos))
	for _, info := range infos {
		rooms = append(rooms, protocol.RoomSummary{
			ID:           info.ID,
			Title:        info.Title,
			Participants: info.Participants,
		})
	}
	for _, line := range protocol.RenderRoomList(rooms) {
		if err := s.conn.WriteFrame([]byte(line)); err != nil {
			return err
		}
	}
	return nil
}

// idleLoop reads one command frame at a time. Each command carries its
// argument in the same frame; there is no second read.
func (s *Session) idleLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := s.conn.ReadFrame()
		if err != nil {
			return err
		}

		if len(frame) == 0 {
			continue
		}

		if protocol.HasToken(frame, protocol.TokenExitCLI) {
			log.Printf("Session %s: %s has requested to exit", s.id, s.username)
			return nil
		}

		cmd, ok := protocol.ParseCommand(frame)
		if !ok {
			if err := s.conn.WriteFrame([]byte("❓ No such command, use `/help` to list commands.")); err != nil {
				return err
			}
			continue
		}

		switch cmd.Keyword {
		case protocol.CmdList:
			if err := s.sendRoomList(); err != nil {
				return err
			}

		case protocol.CmdConnect:
			if err := s.handleConnect(ctx, cmd.Arg); err != nil {
				return err
			}

		case protocol.CmdCreate:
			if err := s.handleCreate(cmd.Arg); err != nil {
				return err
			}

		case protocol.CmdRemove:
			if err := s.handleRemove(cmd.Arg); err != nil {
				return err
			}

		case protocol.CmdExit:
			log.Printf("Session %s: %s has requested to exit", s.id, s.username)
			return nil

		default:
			if err := s.conn.WriteFrame([]byte("❓ No such command, use `/help` to list commands.")); err != nil {
				return err
			}
		}
	}
}

// handleConnect resolves a /connect request to a single verdict frame and, on
// success, runs the in-room relay until the participant leaves.
func (s *Session) handleConnect(ctx context.Context, arg string) error {
	roomID := protocol.NormalizeRoomID(arg)
	if !protocol.ValidRoomID(roomID) {
		return s.conn.WriteToken(protocol.TokenNoRoom, "")
	}

	participant := &registry.Participant{
		Username: s.username,
		Addr:     s.conn.RemoteAddr(),
		Conn:     s.conn,
	}

	switch err := s.reg.Join(roomID, participant); err {
	case nil:
	case registry.ErrRoomNotFound, registry.ErrAlreadyJoined:
		return s.conn.WriteToken(protocol.TokenNoRoom, "")
	case registry.ErrRoomRemoving:
		return s.conn.WriteToken(protocol.TokenRoomRemoving, "")
	default:
		return err
	}

	s.roomID = roomID
	if err := s.conn.WriteToken(protocol.TokenContinue, ""); err != nil {
		return err
	}

	notice := fmt.Sprintf("🥂 %s has joined the chat room.", s.username)
	s.reg.BroadcastMessage(roomID, []byte(notice), s.username)

	return s.chatLoop(ctx, roomID)
}

// chatLoop relays inbound frames to the room until the leave token arrives.
// Broadcast delivery to this participant is pushed onto its connection by
// other sessions; this loop only drains inbound traffic.
func (s *Session) chatLoop(ctx context.Context, roomID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := s.conn.ReadFrame()
		if err != nil {
			return err
		}

		if protocol.HasToken(frame, protocol.TokenExitRoom) {
			s.leaveRoom()
			// Echo the token so the client's receive loop knows the room is
			// behind it and no further room traffic will arrive.
			return s.conn.WriteToken(protocol.TokenExitRoom, "")
		}

		text := strings.TrimSpace(string(frame))
		if len(text) == 0 {
			continue
		}

		message := fmt.Sprintf("[%s] %s: %s", time.Now().Format(timestampLayout), s.username, text)
		s.reg.BroadcastMessage(roomID, []byte(message), s.username)
	}
}

// leaveRoom detaches the session from its current room, broadcasts the leave
// notice to whoever remains, and logs when the departure deleted the room.
func (s *Session) leaveRoom() {
	if s.roomID == "" {
		return
	}
	roomID := s.roomID
	s.roomID = ""

	deleted := s.reg.Leave(roomID, s.username)
	if deleted {
		log.Printf("Session %s: room %s deleted after %s left", s.id, roomID, s.username)
		return
	}

	notice := fmt.Sprintf("💥 %s has left from the chat room.", s.username)
	s.reg.BroadcastMessage(roomID, []byte(notice), s.username)
}

func (s *Session) handleCreate(title string) error {
	if title == "" {
		title = "Untitled room"
	}
	roomID, err := s.reg.CreateRoom(title)
	if err != nil {
		log.Printf("Session %s: create room failed: %v", s.id, err)
		return s.conn.WriteToken(protocol.TokenNoRoom, "")
	}
	log.Printf("Session %s: %s created room %s (%q)", s.id, s.username, roomID, title)
	return s.conn.WriteToken(protocol.TokenCreateSuccess, roomID)
}

func (s *Session) handleRemove(arg string) error {
	roomID := protocol.NormalizeRoomID(arg)
	deleted, err := s.reg.MarkForRemoval(roomID)
	if err != nil {
		return s.conn.WriteToken(protocol.TokenNoRoom, "")
	}
	if deleted {
		log.Printf("Session %s: %s removed empty room %s", s.id, s.username, roomID)
	} else {
		log.Printf("Session %s: %s marked room %s for removal", s.id, s.username, roomID)
	}
	return s.conn.WriteToken(protocol.TokenContinue, "")
}

// cleanup runs exactly once when the session reaches Closed: detach from the
// current room (with the deletion check), release the username, close the
// connection.
func (s *Session) cleanup() {
	s.leaveRoom()

	if s.username != "" {
		s.reg.ReleaseUsername(s.username)
		log.Printf("Session %s (%s): %s has disconnected", s.id, s.conn.RemoteAddr(), s.username)
	}

	_ = s.conn.Close()
}
