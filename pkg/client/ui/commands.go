package ui

import (
	"errors"
	"fmt"
	"strings"
)

// CommandKind identifies a parsed input line
type CommandKind int

const (
	CmdSay CommandKind = iota
	CmdJoin
	CmdLeave
	CmdRooms
	CmdUsers
	CmdNick
	CmdMsg
	CmdHelp
	CmdQuit
)

// ErrEmptyInput is returned for a blank input line
var ErrEmptyInput = errors.New("empty input")

// Command is one parsed line of user input
type Command struct {
	Kind     CommandKind
	Room     string
	Password *string
	Target   string
	Text     string
}

const helpText = `/join <room> [password]  join or create a room
/leave                   leave the current room (outside a room: disconnect)
/rooms                   list rooms
/users                   list users in your room, or everyone
/nick <name>             change your name
/msg <user> <text>       private message
/quit                    exit
Anything else is sent to your current room. Start a line with // to send a literal /.`

// ParseInput turns an input line into a Command
func ParseInput(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrEmptyInput
	}

	if strings.HasPrefix(line, "//") {
		return Command{Kind: CmdSay, Text: line[1:]}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdSay, Text: line}, nil
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToLower(name) {
	case "join", "j":
		if len(args) < 1 || len(args) > 2 {
			return Command{}, fmt.Errorf("usage: /join <room> [password]")
		}
		cmd := Command{Kind: CmdJoin, Room: args[0]}
		if len(args) == 2 {
			password := args[1]
			cmd.Password = &password
		}
		return cmd, nil

	case "leave", "part":
		return Command{Kind: CmdLeave}, nil

	case "rooms":
		return Command{Kind: CmdRooms}, nil

	case "users", "who":
		return Command{Kind: CmdUsers}, nil

	case "nick":
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: /nick <name>")
		}
		return Command{Kind: CmdNick, Text: args[0]}, nil

	case "msg", "m":
		target, text, ok := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if !ok || target == "" || text == "" {
			return Command{}, fmt.Errorf("usage: /msg <user> <text>")
		}
		return Command{Kind: CmdMsg, Target: target, Text: text}, nil

	case "help", "?":
		return Command{Kind: CmdHelp}, nil

	case "quit", "exit", "q":
		return Command{Kind: CmdQuit}, nil
	}

	return Command{}, fmt.Errorf("unknown command /%s (try /help)", name)
}
