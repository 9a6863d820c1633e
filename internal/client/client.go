// Package client implements the interactive chat session: it dials the
// server, negotiates a username, drives the idle command prompt, and relays
// messages while a room is joined. All coordination logic lives on the
// server; this package is a thin rendering of the wire protocol.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// ErrServerUnreachable wraps dial failures so the caller can print a friendly
// hint instead of a raw socket error.
var ErrServerUnreachable = errors.New("client: unable to connect to the server")

// Client is one interactive session over a single connection.
type Client struct {
	conn net.Conn
	fr   *protocol.FrameReader

	in  *bufio.Scanner
	out io.Writer

	username string
}

// Run dials the server and drives the full interactive session until the
// user exits, the connection drops, or ctx is cancelled. Cancelling ctx
// closes the connection, which unblocks any pending read.
func Run(ctx context.Context, addr string, in io.Reader, out io.Writer) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrServerUnreachable, addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	c := &Client{
		conn: conn,
		fr:   protocol.NewFrameReader(conn, protocol.MaxFrameSize),
		in:   bufio.NewScanner(in),
		out:  out,
	}
	return c.run(ctx)
}

func (c *Client) run(ctx context.Context) error {
	c.println(bannerStyle.Render("🎉 Chat CLI"))
	c.println(helpStyle.Render("Before you use the chat, you need to set up a name for yourself."))
	c.println("")

	if err := c.negotiate(); err != nil {
		return err
	}

	// Welcome banner, then the initial room listing.
	welcome, err := c.fr.ReadFrame()
	if err != nil {
		return err
	}
	c.println(noticeStyle.Render(string(welcome)))
	if err := c.readRoomList(); err != nil {
		return err
	}

	return c.idleLoop(ctx)
}

// negotiate answers the server's username prompt until a name is accepted.
// Length bounds are enforced locally before anything is sent, so the only
// round trips are for genuinely contested names.
func (c *Client) negotiate() error {
	frame, err := c.fr.ReadFrame()
	if err != nil {
		return err
	}
	if !protocol.HasToken(frame, protocol.TokenAskUsername) {
		return fmt.Errorf("client: unexpected server greeting %q", frame)
	}

	for {
		name, err := c.prompt(promptStyle.Render("Let's we know about your username ❓ → "))
		if err != nil {
			return err
		}
		name = strings.TrimSpace(name)

		if utf8.RuneCountInString(name) < protocol.MinUsernameLen {
			c.println(errorStyle.Render(fmt.Sprintf("🚫 Please try again, Username must be no less than %d characters long.", protocol.MinUsernameLen)))
			continue
		}
		if utf8.RuneCountInString(name) > protocol.MaxUsernameLen {
			c.println(errorStyle.Render(fmt.Sprintf("🚫 Please try again, Username must be no more than %d characters long.", protocol.MaxUsernameLen)))
			continue
		}

		if err := c.writeFrame([]byte(name)); err != nil {
			return err
		}

		reply, err := c.fr.ReadFrame()
		if err != nil {
			return err
		}
		switch {
		case protocol.HasToken(reply, protocol.TokenVerified):
			c.username = name
			c.println(noticeStyle.Render(fmt.Sprintf("🌱 Username verified (%s).", name)))
			c.println("")
			return nil
		case protocol.HasToken(reply, protocol.TokenDuplicate):
			c.println(errorStyle.Render("🚫 Please try again, The username was taken."))
		case protocol.HasToken(reply, protocol.TokenAskUsername):
			c.println(errorStyle.Render("🚫 Please try again, The server rejected that username."))
		default:
			return fmt.Errorf("client: unexpected reply during negotiation %q", reply)
		}
	}
}

// awaitReply reads frames until one carries any of the expected tokens.
// Room broadcasts whose membership snapshot predates our departure can trail
// onto the wire after the room is behind us; those stray frames are dropped
// rather than misread as the server's reply.
func (c *Client) awaitReply(tokens ...protocol.Token) ([]byte, error) {
	for {
		frame, err := c.fr.ReadFrame()
		if err != nil {
			return nil, err
		}
		for _, token := range tokens {
			if protocol.HasToken(frame, token) {
				return frame, nil
			}
		}
	}
}

// readRoomList consumes a listing: the header frame announces the total room
// count, which fixes how many row frames follow. Frames that do not parse as
// the header are stray room traffic and are dropped.
func (c *Client) readRoomList() error {
	var (
		header string
		total  int
	)
	for {
		frame, err := c.fr.ReadFrame()
		if err != nil {
			return err
		}
		if n, ok := protocol.ParseRoomCount(string(frame)); ok {
			header, total = string(frame), n
			break
		}
	}

	c.println(bannerStyle.Render("\t" + header))
	for i := 0; i < protocol.RoomListRows(total); i++ {
		row, err := c.fr.ReadFrame()
		if err != nil {
			return err
		}
		c.println("\t" + string(row))
	}
	c.println("")
	return nil
}

func (c *Client) idleLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := c.prompt(promptStyle.Render(fmt.Sprintf("[Idle] %s ~ → ", c.username)))
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)

		switch line {
		case "":
			continue

		case protocol.CmdHelp:
			c.printIdleHelp()

		case protocol.CmdList:
			if err := c.writeFrame([]byte(protocol.CmdList)); err != nil {
				return err
			}
			if err := c.readRoomList(); err != nil {
				return err
			}

		case protocol.CmdConnect:
			if err := c.connectFlow(ctx); err != nil {
				return err
			}

		case protocol.CmdCreate:
			if err := c.createFlow(); err != nil {
				return err
			}

		case protocol.CmdRemove:
			if err := c.removeFlow(); err != nil {
				return err
			}

		case protocol.CmdExit:
			if err := c.writeFrame(protocol.Ack(protocol.TokenExitCLI, "")); err != nil {
				return err
			}
			c.println(noticeStyle.Render("📅 Exiting from chat CLI..."))
			return nil

		default:
			c.println(errorStyle.Render("❓ Please try again because no such found the command to execution. (hint: /help)"))
		}
	}
}

// connectFlow prompts for a room id, sends the structured /connect request,
// and on a positive verdict enters chat mode until the user leaves the room.
func (c *Client) connectFlow(ctx context.Context) error {
	c.println(helpStyle.Render("🧭 Select a room for a conversation by entering the room id"))
	roomID, err := c.prompt(promptStyle.Render("(Using the room id) → "))
	if err != nil {
		return err
	}
	roomID = protocol.NormalizeRoomID(roomID)

	if err := c.writeFrame([]byte(protocol.CmdConnect + " " + roomID)); err != nil {
		return err
	}

	verdict, err := c.awaitReply(protocol.TokenNoRoom, protocol.TokenRoomRemoving, protocol.TokenContinue)
	if err != nil {
		return err
	}
	switch {
	case protocol.HasToken(verdict, protocol.TokenNoRoom):
		c.println(errorStyle.Render("🚫 The room doesn't exist, Please try again."))
		return nil
	case protocol.HasToken(verdict, protocol.TokenRoomRemoving):
		c.println(errorStyle.Render("🚫 The room doesn't open because the room is removing, Please try again."))
		return nil
	}

	c.println(helpStyle.Render("📣 In chatting, you can use commands. Use `/help` for help."))
	c.println(helpStyle.Render("If you want to exit from this room, use `/exit`."))
	c.println(noticeStyle.Render(fmt.Sprintf("🥂 %s has joined the chat room.", c.username)))
	c.println("")

	return c.chat(ctx, roomID)
}

// chat runs the duplex room relay: one goroutine prints incoming broadcasts,
// the other forwards typed messages. The receiver finishes when the server
// echoes the exit-room token; the sender finishes when the user types /exit.
func (c *Client) chat(ctx context.Context, roomID string) error {
	chatPrompt := promptStyle.Render(fmt.Sprintf("[Chatting] [#%s] %s: ", roomID, c.username))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			frame, err := c.fr.ReadFrame()
			if err != nil {
				if gctx.Err() == nil {
					c.println(errorStyle.Render("\n🔒 Connection to the server was lost, press Enter to quit."))
				}
				return err
			}
			if protocol.HasToken(frame, protocol.TokenExitRoom) {
				return nil
			}
			// Redraw over the pending prompt line.
			fmt.Fprintf(c.out, "\r%s\r", strings.Repeat(" ", 80))
			c.println("\t" + chatStyle.Render(string(frame)))
			fmt.Fprint(c.out, chatPrompt)
		}
	})

	g.Go(func() error {
		for {
			message, err := c.prompt(chatPrompt)
			if err != nil {
				return err
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			message = strings.TrimSpace(message)

			if message == "" {
				continue
			}

			if strings.HasPrefix(message, "/") {
				switch message {
				case protocol.CmdHelp:
					c.printChatHelp()
				case protocol.CmdExit:
					if err := c.writeFrame(protocol.Ack(protocol.TokenExitRoom, "")); err != nil {
						return err
					}
					c.println(noticeStyle.Render(fmt.Sprintf("✅ Exit from `%s` successfully", roomID)))
					return nil
				default:
					c.println(errorStyle.Render("❓ Please try again because no such found the command to execution. (hint: /help)"))
				}
				continue
			}

			if utf8.RuneCountInString(message) > protocol.MaxChatMessage {
				c.println(errorStyle.Render(fmt.Sprintf("🚫 Please try again, Messages must be no more than %d characters long.", protocol.MaxChatMessage)))
				continue
			}

			if err := c.writeFrame([]byte(message)); err != nil {
				return err
			}
		}
	})

	return g.Wait()
}

func (c *Client) createFlow() error {
	c.println(helpStyle.Render("🔮 Before create a room, you must set a room title to describe your room"))
	title, err := c.prompt(promptStyle.Render("(Your room title) → "))
	if err != nil {
		return err
	}
	title = strings.TrimSpace(title)

	if err := c.writeFrame([]byte(protocol.CmdCreate + " " + title)); err != nil {
		return err
	}

	reply, err := c.awaitReply(protocol.TokenCreateSuccess, protocol.TokenNoRoom)
	if err != nil {
		return err
	}
	if !protocol.HasToken(reply, protocol.TokenCreateSuccess) {
		c.println(errorStyle.Render("🚫 The room could not be created, Please try again."))
		return nil
	}

	roomID := protocol.TokenArg(reply, protocol.TokenCreateSuccess)
	c.println(noticeStyle.Render(fmt.Sprintf("✅ Create `%s` room was successful! (ID: %s)", title, roomID)))
	return nil
}

func (c *Client) removeFlow() error {
	c.println(helpStyle.Render("🔮 Before remove a room, you must specify the room id that you want to remove"))
	roomID, err := c.prompt(promptStyle.Render("(Using the room id) → "))
	if err != nil {
		return err
	}
	roomID = protocol.NormalizeRoomID(roomID)

	if err := c.writeFrame([]byte(protocol.CmdRemove + " " + roomID)); err != nil {
		return err
	}

	reply, err := c.awaitReply(protocol.TokenNoRoom, protocol.TokenContinue)
	if err != nil {
		return err
	}
	if protocol.HasToken(reply, protocol.TokenNoRoom) {
		c.println(errorStyle.Render("🚫 The room doesn't exist, Please try again."))
		return nil
	}

	c.println(noticeStyle.Render(fmt.Sprintf("✅ The room removal for #%s was successful!", roomID)))
	return nil
}

func (c *Client) printIdleHelp() {
	c.println(helpStyle.Render("List all commands for help command (in idle mode)"))
	c.println(helpStyle.Render("✨ `/help` list all commands available in idle mode."))
	c.println(helpStyle.Render("✨ `/list` list all rooms available on the chat server."))
	c.println(helpStyle.Render("✨ `/connect` connect to a chat room by room id."))
	c.println(helpStyle.Render("✨ `/create` create a room."))
	c.println(helpStyle.Render("✨ `/remove` remove a room."))
	c.println(helpStyle.Render("✨ `/exit` exit from the chat CLI."))
	c.println("")
}

func (c *Client) printChatHelp() {
	c.println(helpStyle.Render("List all commands for help command (in chat mode)"))
	c.println(helpStyle.Render("✨ `/help` list all commands available in chat mode."))
	c.println(helpStyle.Render("✨ `/exit` exit from the current chat room."))
	c.println("")
}

// prompt prints the prompt without a newline and reads one input line.
func (c *Client) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.in.Text(), nil
}

func (c *Client) println(line string) {
	fmt.Fprintln(c.out, line)
}

func (c *Client) writeFrame(payload []byte) error {
	return protocol.WriteFrame(c.conn, payload)
}
