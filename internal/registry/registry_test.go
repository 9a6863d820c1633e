package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// frameSink records delivered frames and optionally fails every write.
type frameSink struct {
	mu     sync.Mutex
	frames []string
	fail   bool
}

func (s *frameSink) WriteFrame(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink: write failed")
	}
	s.frames = append(s.frames, string(payload))
	return nil
}

func (s *frameSink) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New()
	require.NoError(t, err)
	return reg
}

func participant(name string) (*Participant, *frameSink) {
	sink := &frameSink{}
	return &Participant{Username: name, Addr: "127.0.0.1:0", Conn: sink}, sink
}

func TestCreateRoomGeneratesWellFormedIDs(t *testing.T) {
	reg := newTestRegistry(t)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		id, err := reg.CreateRoom(fmt.Sprintf("room %d", i))
		require.NoError(t, err)
		assert.True(t, protocol.ValidRoomID(id), "id %q is malformed", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 50)
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	reg := newTestRegistry(t)

	// A generator that repeats its first id once forces a collision retry.
	ids := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	i := 0
	reg.newRoomID = func() string {
		id := ids[i]
		i++
		return id
	}

	first, err := reg.CreateRoom("first")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first)

	second, err := reg.CreateRoom("second")
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second)

	// The colliding attempt must not have overwritten the first room.
	info, err := reg.GetRoom("AAAAAA")
	require.NoError(t, err)
	assert.Equal(t, "first", info.Title)
}

func TestGetRoomNotFound(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.GetRoom("ZZZZZZ")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSnapshotSortedByID(t *testing.T) {
	reg := newTestRegistry(t)
	ids := []string{"CCCCCC", "AAAAAA", "BBBBBB"}
	i := 0
	reg.newRoomID = func() string {
		id := ids[i]
		i++
		return id
	}

	for range ids {
		_, err := reg.CreateRoom("room")
		require.NoError(t, err)
	}

	infos := reg.Snapshot()
	require.Len(t, infos, 3)
	assert.Equal(t, "AAAAAA", infos[0].ID)
	assert.Equal(t, "BBBBBB", infos[1].ID)
	assert.Equal(t, "CCCCCC", infos[2].ID)
}

func TestMarkForRemovalDeletesEmptyRoomImmediately(t *testing.T) {
	reg := newTestRegistry(t)
	id, err := reg.CreateRoom("short lived")
	require.NoError(t, err)

	deleted, err := reg.MarkForRemoval(id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = reg.GetRoom(id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMarkForRemovalUnknownRoom(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.MarkForRemoval("ZZZZZZ")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomLifecycleWithParticipants(t *testing.T) {
	reg := newTestRegistry(t)
	id, err := reg.CreateRoom("occupied")
	require.NoError(t, err)

	alice, _ := participant("alice")
	bob, _ := participant("bobby")
	require.NoError(t, reg.Join(id, alice))
	require.NoError(t, reg.Join(id, bob))

	// Occupied: marking must not delete yet.
	deleted, err := reg.MarkForRemoval(id)
	require.NoError(t, err)
	assert.False(t, deleted)

	// No joins once pending removal, even with participants still present.
	carol, _ := participant("carol")
	assert.ErrorIs(t, reg.Join(id, carol), ErrRoomRemoving)

	// Not the last participant: room survives.
	assert.False(t, reg.Leave(id, "alice"))
	_, err = reg.GetRoom(id)
	require.NoError(t, err)

	// Last participant out: deleted exactly now.
	assert.True(t, reg.Leave(id, "bobby"))
	_, err = reg.GetRoom(id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLeaveOpenRoomKeepsRoom(t *testing.T) {
	reg := newTestRegistry(t)
	id, err := reg.CreateRoom("durable")
	require.NoError(t, err)

	alice, _ := participant("alice")
	require.NoError(t, reg.Join(id, alice))

	assert.False(t, reg.Leave(id, "alice"))

	info, err := reg.GetRoom(id)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Participants)
	assert.Equal(t, RoomOpen, info.Status)
}

func TestJoinErrors(t *testing.T) {
	reg := newTestRegistry(t)

	alice, _ := participant("alice")
	assert.ErrorIs(t, reg.Join("ZZZZZZ", alice), ErrRoomNotFound)

	id, err := reg.CreateRoom("room")
	require.NoError(t, err)
	require.NoError(t, reg.Join(id, alice))
	assert.ErrorIs(t, reg.Join(id, alice), ErrAlreadyJoined)
}

func TestReserveUsernameExactlyOneWinner(t *testing.T) {
	reg := newTestRegistry(t)

	const attempts = 64
	var wg sync.WaitGroup
	results := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- reg.ReserveUsername("contested")
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestReleaseUsernameMakesNameAvailable(t *testing.T) {
	reg := newTestRegistry(t)

	require.True(t, reg.ReserveUsername("alice"))
	require.False(t, reg.ReserveUsername("alice"))

	reg.ReleaseUsername("alice")
	assert.True(t, reg.ReserveUsername("alice"))
}

func TestBroadcastExcludesSender(t *testing.T) {
	reg := newTestRegistry(t)
	id, err := reg.CreateRoom("room")
	require.NoError(t, err)

	alice, aliceSink := participant("alice")
	bob, bobSink := participant("bobby")
	carol, carolSink := participant("carol")
	require.NoError(t, reg.Join(id, alice))
	require.NoError(t, reg.Join(id, bob))
	require.NoError(t, reg.Join(id, carol))

	reg.BroadcastMessage(id, []byte("hi"), "alice")

	assert.Empty(t, aliceSink.received())
	assert.Equal(t, []string{"hi"}, bobSink.received())
	assert.Equal(t, []string{"hi"}, carolSink.received())
}

func TestBroadcastSkipsFailedDeliveries(t *testing.T) {
	reg := newTestRegistry(t)
	id, err := reg.CreateRoom("room")
	require.NoError(t, err)

	alice, _ := participant("alice")
	bob, bobSink := participant("bobby")
	carol, carolSink := participant("carol")
	bobSink.fail = true

	require.NoError(t, reg.Join(id, alice))
	require.NoError(t, reg.Join(id, bob))
	require.NoError(t, reg.Join(id, carol))

	// A failed delivery to one participant must not abort the rest.
	reg.BroadcastMessage(id, []byte("hi"), "alice")
	assert.Equal(t, []string{"hi"}, carolSink.received())
}

func TestBroadcastUnknownRoomIsNoOp(t *testing.T) {
	reg := newTestRegistry(t)
	reg.BroadcastMessage("ZZZZZZ", []byte("into the void"), "")
}
