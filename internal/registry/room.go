// Package registry holds the process-wide chat state: the table of rooms and
// the server-wide set of taken usernames. Every connection handler shares one
// Registry; all mutations run under its lock so compound check-then-act
// sequences (join a room that might be pending removal, delete a room when
// its last participant leaves) are single atomic steps.
package registry

import "errors"

// RoomStatus is the lifecycle state of a room.
type RoomStatus int

const (
	// RoomOpen accepts joins.
	RoomOpen RoomStatus = iota
	// RoomPendingRemoval refuses joins; the room is deleted as soon as its
	// participant count reaches zero.
	RoomPendingRemoval
)

// String returns the wire-friendly name of the status.
func (s RoomStatus) String() string {
	if s == RoomPendingRemoval {
		return "removing"
	}
	return "opened"
}

// Errors returned by registry operations.
var (
	// ErrRoomNotFound is returned when the referenced room id does not exist.
	ErrRoomNotFound = errors.New("registry: room not found")

	// ErrRoomRemoving is returned when joining a room pending removal.
	ErrRoomRemoving = errors.New("registry: room is pending removal")

	// ErrAlreadyJoined is returned when a username is already a member of the
	// room. Server-wide username uniqueness makes this unreachable for
	// well-behaved sessions; it guards against double joins from the same
	// session.
	ErrAlreadyJoined = errors.New("registry: participant already in room")
)

// FrameWriter delivers one protocol frame to a participant's connection.
// Implementations must serialize concurrent writes internally.
type FrameWriter interface {
	WriteFrame(payload []byte) error
}

// Participant is one connected, username-bound user attached to at most one
// room at a time. The connection handle is owned by the participant's session
// and shared here only for broadcast delivery.
type Participant struct {
	Username string
	Addr     string
	Conn     FrameWriter
}

// room is a registry-internal record. Participants keep insertion order so a
// listing reflects join order.
type room struct {
	id           string
	title        string
	status       RoomStatus
	participants []*Participant
}

func (r *room) removeParticipant(username string) bool {
	for i, p := range r.participants {
		if p.Username == username {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			return true
		}
	}
	return false
}

func (r *room) hasParticipant(username string) bool {
	for _, p := range r.participants {
		if p.Username == username {
			return true
		}
	}
	return false
}

// RoomInfo is a point-in-time view of one room, safe to use outside the
// registry lock.
type RoomInfo struct {
	ID           string
	Title        string
	Status       RoomStatus
	Participants int
}
