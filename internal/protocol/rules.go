package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Room id format: fixed-length uppercase alphanumeric, matched
// case-insensitively by normalizing client input before lookup.
const (
	RoomIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	RoomIDLength   = 6
)

// Username length bounds, enforced locally by the client and again by the
// server before it touches the shared username set.
const (
	MinUsernameLen = 5
	MaxUsernameLen = 16
)

// MaxChatMessage caps client-entered chat messages; longer input is rejected
// locally before it is sent.
const MaxChatMessage = 512

// MaxRoomListRows bounds how many rooms a single listing carries. Both sides
// share the constant so the client knows exactly how many rows follow a
// listing header.
const MaxRoomListRows = 128

// ValidUsername reports whether the name satisfies the length bounds. Bounds
// count characters, not bytes, so multibyte names are measured the same way
// the user perceives them.
func ValidUsername(name string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	return n >= MinUsernameLen && n <= MaxUsernameLen
}

// NormalizeRoomID trims and uppercases a client-supplied room id.
func NormalizeRoomID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ValidRoomID reports whether id is a well-formed (normalized) room id.
func ValidRoomID(id string) bool {
	if len(id) != RoomIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// RoomSummary is one row of a room listing.
type RoomSummary struct {
	ID           string
	Title        string
	Participants int
}

// RenderRoomList produces the listing frames: a header carrying the total
// room count followed by one row per room (or a single empty-state row). When
// the listing would exceed MaxRoomListRows the final row is replaced by a
// truncation notice so the frame count stays predictable for the reader.
func RenderRoomList(rooms []RoomSummary) []string {
	lines := make([]string, 0, len(rooms)+1)
	lines = append(lines, fmt.Sprintf("All rooms available (%d rooms)", len(rooms)))

	if len(rooms) == 0 {
		lines = append(lines, "🚫 There are no rooms available.")
		return lines
	}

	rows := RoomListRows(len(rooms))
	for i := 0; i < rows; i++ {
		if i == rows-1 && len(rooms) > rows {
			lines = append(lines, fmt.Sprintf("… and %d more rooms (listing truncated)", len(rooms)-rows+1))
			break
		}
		r := rooms[i]
		lines = append(lines, fmt.Sprintf("→ [ID: %s] %s (%d participants)", r.ID, r.Title, r.Participants))
	}
	return lines
}

// RoomListRows returns how many row frames follow a listing header that
// reported total rooms.
func RoomListRows(total int) int {
	if total == 0 {
		return 1
	}
	if total > MaxRoomListRows {
		return MaxRoomListRows
	}
	return total
}

// ParseRoomCount extracts the total room count from a listing header frame.
func ParseRoomCount(header string) (int, bool) {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(header), "All rooms available (%d rooms)", &n); err != nil {
		return 0, false
	}
	if n < 0 {
		return 0, false
	}
	return n, true
}
