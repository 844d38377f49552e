// Package client is the interactive control client.
package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/smazurov/taskmaster/internal/logging"
	"github.com/smazurov/taskmaster/internal/server"
	"github.com/smazurov/taskmaster/internal/socket"
)

// Prompt is printed before each REPL line.
const Prompt = "taskmaster> "

const dialTimeout = 2 * time.Second

// ErrServerUnreachable is returned when nothing answers on the socket.
var ErrServerUnreachable = errors.New("server unreachable")

// Options configures a Client.
type Options struct {
	SocketPath string
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
}

// Client talks to a server, one connection per request.
type Client struct {
	socketPath string
	in         io.Reader
	out        io.Writer
	errOut     io.Writer
	history    []string
	logger     *slog.Logger
}

// New creates a Client.
func New(opts Options) *Client {
	path := opts.SocketPath
	if path == "" {
		path = server.DefaultSocketPath
	}
	return &Client{
		socketPath: path,
		in:         opts.In,
		out:        opts.Out,
		errOut:     opts.Err,
		logger:     logging.GetLogger("client"),
	}
}

// Probe checks that the server accepts connections.
func (c *Client) Probe() error {
	conn, err := socket.Dial(c.socketPath, dialTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	return conn.Close()
}

// Send writes one request and returns the whole reply.
func (c *Client) Send(msg server.Message) (string, error) {
	conn, err := socket.Dial(c.socketPath, dialTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	defer conn.Close()

	c.logger.Debug("Sending request", "type", msg.Type, "id", msg.ID)
	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return string(reply), nil
}

// Run is the REPL. It returns nil on exit or end of input, and
// ErrServerUnreachable when the server cannot be reached at startup.
func (c *Client) Run() error {
	if err := c.Probe(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.history = append(c.history, line)

		exit, err := c.Exec(line)
		if err != nil {
			fmt.Fprintln(c.errOut, err)
		}
		if exit {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the REPL should end.
// Errors are per command and never end the REPL by themselves.
func (c *Client) Exec(line string) (bool, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return false, err
	}

	switch cmd.local {
	case localExit:
		return true, nil
	case localHelp:
		fmt.Fprint(c.out, helpText)
		return false, nil
	case localHistory:
		for i, h := range c.history {
			fmt.Fprintf(c.out, "%4d  %s\n", i+1, h)
		}
		return false, nil
	}

	var errs []error
	for _, msg := range cmd.messages {
		reply, err := c.Send(msg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprint(c.out, reply)
		if reply != "" && !strings.HasSuffix(reply, "\n") {
			fmt.Fprintln(c.out)
		}
	}
	return false, errors.Join(errs...)
}

// History returns the lines entered so far.
func (c *Client) History() []string {
	return c.history
}
