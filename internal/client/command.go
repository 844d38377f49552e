package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smazurov/taskmaster/internal/server"
)

// Local commands handled without contacting the server.
const (
	localNone = iota
	localHistory
	localHelp
	localExit
)

// ErrInvalidCommand is wrapped by every parse failure.
var ErrInvalidCommand = errors.New("invalid command")

// Command is a parsed REPL line.
type Command struct {
	local    int
	messages []server.Message
}

// Messages returns the requests the command sends, one per id.
func (c Command) Messages() []server.Message {
	return c.messages
}

var perTask = map[string]server.MessageType{
	"start":   server.MessageStart,
	"stop":    server.MessageStop,
	"restart": server.MessageRestart,
	"status":  server.MessageStatus,
	"info":    server.MessageInfo,
}

// ParseCommand turns a line into a Command.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrInvalidCommand)
	}
	name, args := fields[0], fields[1:]

	if typ, ok := perTask[name]; ok {
		if len(args) == 0 {
			return Command{}, fmt.Errorf("%w: %s needs at least one task id", ErrInvalidCommand, name)
		}
		msgs := make([]server.Message, len(args))
		for i, id := range args {
			msgs[i] = server.Message{Type: typ, ID: id}
		}
		return Command{messages: msgs}, nil
	}

	var cmd Command
	switch name {
	case "list":
		cmd.messages = []server.Message{{Type: server.MessageList}}
	case "reload":
		cmd.messages = []server.Message{{Type: server.MessageReload}}
	case "stop-server":
		cmd.messages = []server.Message{{Type: server.MessageQuit}}
	case "history":
		cmd.local = localHistory
	case "help":
		cmd.local = localHelp
	case "exit":
		cmd.local = localExit
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
	if len(args) > 0 {
		return Command{}, fmt.Errorf("%w: %s takes no arguments", ErrInvalidCommand, name)
	}
	return cmd, nil
}

const helpText = `Commands:
    start <id...>     start tasks
    stop <id...>      stop tasks
    restart <id...>   stop then start tasks
    status <id...>    show task status
    info <id...>      show task configuration
    list              list configured tasks
    reload            re-read the server configuration
    stop-server       stop every task and shut the server down
    history           show previous commands
    help              show this help
    exit              leave the client
`
