package protocol

import "strings"

// Command keywords accepted in the idle state. /help is handled entirely on
// the client side and never reaches the server.
const (
	CmdHelp    = "/help"
	CmdList    = "/list"
	CmdConnect = "/connect"
	CmdCreate  = "/create"
	CmdRemove  = "/remove"
	CmdExit    = "/exit"
)

// Command is a parsed idle-mode request: a keyword plus its optional
// argument, carried together in a single frame.
type Command struct {
	Keyword string
	Arg     string
}

// ParseCommand splits a frame into a command keyword and its argument.
// Returns false when the frame does not start with a slash keyword.
func ParseCommand(frame []byte) (Command, bool) {
	line := strings.TrimSpace(string(frame))
	if !strings.HasPrefix(line, "/") {
		return Command{}, false
	}
	keyword, arg, _ := strings.Cut(line, " ")
	return Command{
		Keyword: keyword,
		Arg:     strings.TrimSpace(arg),
	}, true
}
