// Package protocol defines the wire protocol shared by the chat server and
// client: newline-delimited frames, the reserved sentinel tokens layered on
// top of them, the idle-mode command vocabulary, and the validation rules for
// room ids and usernames.
package protocol

import "bytes"

// Token is a reserved in-band protocol signal. Tokens are short bracketed
// strings chosen so they cannot plausibly collide with user-entered text.
type Token string

// Sentinel tokens recognized on the wire. The exact strings are part of the
// protocol contract and must not change between releases.
const (
	TokenAskUsername   Token = "[#ask_username_prompt]"
	TokenDuplicate     Token = "[#duplicated_username]"
	TokenVerified      Token = "[#verified_username]"
	TokenNoRoom        Token = "[#no_available_room]"
	TokenRoomRemoving  Token = "[#room_removing]"
	TokenCreateSuccess Token = "[#create_room_successfully]"
	TokenExitRoom      Token = "[#exit_room]"
	TokenExitCLI       Token = "[#exit_cli]"
	TokenContinue      Token = "[#continue]"
)

// HasToken reports whether the frame carries the given sentinel token.
// Tokens ride as the first token of a frame, so chat text that merely
// mentions a token mid-line does not match.
func HasToken(frame []byte, token Token) bool {
	return bytes.HasPrefix(bytes.TrimSpace(frame), []byte(token))
}

// Ack builds a token frame payload, optionally carrying an argument after the
// token (e.g. the room id in a create acknowledgment).
func Ack(token Token, arg string) []byte {
	if arg == "" {
		return []byte(token)
	}
	return []byte(string(token) + " " + arg)
}

// TokenArg extracts the argument following the token in a frame, or "" when
// the frame carries no argument.
func TokenArg(frame []byte, token Token) string {
	idx := bytes.Index(frame, []byte(token))
	if idx < 0 {
		return ""
	}
	rest := frame[idx+len(token):]
	return string(bytes.TrimSpace(rest))
}
