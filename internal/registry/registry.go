package registry

import (
	"fmt"
	"log"
	"sort"
	"sync"

	nanoid "github.com/jaevor/go-nanoid"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// Registry is the single source of truth for room existence, room status, and
// username reservations. It is created at server start and passed to every
// session; sessions never copy it.
type Registry struct {
	mu        sync.Mutex
	rooms     map[string]*room
	usernames map[string]struct{}
	newRoomID func() string
}

// New creates an empty registry. The room id generator draws from the fixed
// uppercase-alphanumeric alphabet.
func New() (*Registry, error) {
	gen, err := nanoid.CustomASCII(protocol.RoomIDAlphabet, protocol.RoomIDLength)
	if err != nil {
		return nil, fmt.Errorf("registry: room id generator: %w", err)
	}
	return &Registry{
		rooms:     make(map[string]*room),
		usernames: make(map[string]struct{}),
		newRoomID: gen,
	}, nil
}

// CreateRoom inserts a new open room with the given title and returns its
// generated id. Generation retries on collision; an existing room is never
// overwritten.
func (reg *Registry) CreateRoom(title string) (string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	// Collisions are vanishingly rare over a 36^6 id space; the bound keeps
	// a broken generator from spinning forever.
	for attempt := 0; attempt < 100; attempt++ {
		id := reg.newRoomID()
		if _, exists := reg.rooms[id]; exists {
			continue
		}
		reg.rooms[id] = &room{id: id, title: title, status: RoomOpen}
		return id, nil
	}
	return "", fmt.Errorf("registry: room id space exhausted")
}

// GetRoom returns a snapshot of one room or ErrRoomNotFound.
func (reg *Registry) GetRoom(id string) (RoomInfo, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	if !ok {
		return RoomInfo{}, ErrRoomNotFound
	}
	return infoOf(r), nil
}

// Snapshot returns a point-in-time view of every room, sorted by id so
// listings render in a stable order.
func (reg *Registry) Snapshot() []RoomInfo {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	infos := make([]RoomInfo, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		infos = append(infos, infoOf(r))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// MarkForRemoval transitions a room to pending removal. If the room is empty
// it is deleted immediately and deleted=true is returned; otherwise deletion
// happens when the last participant leaves. Marking an already-pending room
// again is a no-op.
func (reg *Registry) MarkForRemoval(id string) (deleted bool, err error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	if !ok {
		return false, ErrRoomNotFound
	}
	r.status = RoomPendingRemoval
	if len(r.participants) == 0 {
		delete(reg.rooms, id)
		return true, nil
	}
	return false, nil
}

// Join attaches a participant to a room. The existence check, the
// pending-removal check, and the membership append are one critical section
// so a room cannot be marked for removal between check and add.
func (reg *Registry) Join(id string, p *Participant) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	if r.status == RoomPendingRemoval {
		return ErrRoomRemoving
	}
	if r.hasParticipant(p.Username) {
		return ErrAlreadyJoined
	}
	r.participants = append(r.participants, p)
	return nil
}

// Leave detaches a participant from a room and, in the same critical section,
// deletes the room when it is empty and pending removal. Returns whether the
// room was deleted. Leaving an unknown room or a room the participant is not
// in is a no-op.
func (reg *Registry) Leave(id, username string) (deleted bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[id]
	if !ok {
		return false
	}
	if !r.removeParticipant(username) {
		return false
	}
	if len(r.participants) == 0 && r.status == RoomPendingRemoval {
		delete(reg.rooms, id)
		return true
	}
	return false
}

// ReserveUsername atomically tests and inserts a username into the
// server-wide set. Returns false when the name is already taken. This is the
// only place the race between two connections picking the same name is
// resolved.
func (reg *Registry) ReserveUsername(name string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, taken := reg.usernames[name]; taken {
		return false
	}
	reg.usernames[name] = struct{}{}
	return true
}

// ReleaseUsername frees a username on disconnect.
func (reg *Registry) ReleaseUsername(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.usernames, name)
}

// BroadcastMessage delivers payload to every participant of the room at the
// instant of the call, except the excluded username (the sender). Delivery is
// best effort: a failed write is logged and skipped, never aborting delivery
// to the remaining participants. The membership snapshot is taken under the
// lock; the writes happen outside it so a slow connection cannot stall the
// registry.
func (reg *Registry) BroadcastMessage(id string, payload []byte, exclude string) {
	reg.mu.Lock()
	r, ok := reg.rooms[id]
	if !ok {
		reg.mu.Unlock()
		return
	}
	targets := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		if p.Username == exclude {
			continue
		}
		targets = append(targets, p)
	}
	reg.mu.Unlock()

	for _, p := range targets {
		if err := p.Conn.WriteFrame(payload); err != nil {
			log.Printf("Failed to deliver broadcast to %s (%s): %v", p.Username, p.Addr, err)
		}
	}
}

func infoOf(r *room) RoomInfo {
	return RoomInfo{
		ID:           r.id,
		Title:        r.title,
		Status:       r.status,
		Participants: len(r.participants),
	}
}
