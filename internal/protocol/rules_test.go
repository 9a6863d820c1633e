package protocol

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidUsername(t *testing.T) {
	assert.False(t, ValidUsername(""))
	assert.False(t, ValidUsername("abcd"))
	assert.True(t, ValidUsername("abcde"))
	assert.True(t, ValidUsername(strings.Repeat("a", 16)))
	assert.False(t, ValidUsername(strings.Repeat("a", 17)))
	assert.False(t, ValidUsername("   ab   "))
}

func TestValidUsernameCountsCharactersNotBytes(t *testing.T) {
	// Three characters, nine bytes: still below the minimum.
	assert.False(t, ValidUsername("猫猫猫"))
	assert.True(t, ValidUsername("猫猫猫猫猫"))
	assert.True(t, ValidUsername(strings.Repeat("猫", 16)))
	assert.False(t, ValidUsername(strings.Repeat("猫", 17)))
}

func TestNormalizeRoomID(t *testing.T) {
	assert.Equal(t, "ABC123", NormalizeRoomID("  abc123 "))
	assert.Equal(t, "ABC123", NormalizeRoomID("ABC123"))
}

func TestValidRoomID(t *testing.T) {
	assert.True(t, ValidRoomID("ABC123"))
	assert.True(t, ValidRoomID("000000"))
	assert.False(t, ValidRoomID("abc123"))
	assert.False(t, ValidRoomID("ABC12"))
	assert.False(t, ValidRoomID("ABC1234"))
	assert.False(t, ValidRoomID("ABC12!"))
	assert.False(t, ValidRoomID(""))
}

func TestRenderRoomListEmpty(t *testing.T) {
	lines := RenderRoomList(nil)
	require.Len(t, lines, 2)

	total, ok := ParseRoomCount(lines[0])
	require.True(t, ok)
	assert.Equal(t, 0, total)
	assert.Contains(t, lines[1], "no rooms available")
}

func TestRenderRoomListRows(t *testing.T) {
	lines := RenderRoomList([]RoomSummary{
		{ID: "AAA111", Title: "General", Participants: 2},
		{ID: "BBB222", Title: "Random", Participants: 0},
	})
	require.Len(t, lines, 3)

	total, ok := ParseRoomCount(lines[0])
	require.True(t, ok)
	assert.Equal(t, 2, total)
	assert.Equal(t, "→ [ID: AAA111] General (2 participants)", lines[1])
	assert.Equal(t, "→ [ID: BBB222] Random (0 participants)", lines[2])
}

func TestRenderRoomListTruncates(t *testing.T) {
	rooms := make([]RoomSummary, MaxRoomListRows+10)
	for i := range rooms {
		rooms[i] = RoomSummary{ID: fmt.Sprintf("R%05d", i), Title: "room"}
	}

	lines := RenderRoomList(rooms)
	require.Len(t, lines, MaxRoomListRows+1)

	total, ok := ParseRoomCount(lines[0])
	require.True(t, ok)
	assert.Equal(t, len(rooms), total)

	// The header count and RoomListRows stay consistent so a reader knows
	// how many rows follow even when the listing is cut short.
	assert.Equal(t, MaxRoomListRows, RoomListRows(total))
	assert.Contains(t, lines[len(lines)-1], "listing truncated")
}

func TestRoomListRows(t *testing.T) {
	assert.Equal(t, 1, RoomListRows(0))
	assert.Equal(t, 1, RoomListRows(1))
	assert.Equal(t, MaxRoomListRows, RoomListRows(MaxRoomListRows))
	assert.Equal(t, MaxRoomListRows, RoomListRows(MaxRoomListRows+500))
}

func TestParseRoomCount(t *testing.T) {
	total, ok := ParseRoomCount("All rooms available (7 rooms)")
	require.True(t, ok)
	assert.Equal(t, 7, total)

	_, ok = ParseRoomCount("something else entirely")
	assert.False(t, ok)
}
