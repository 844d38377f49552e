package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/smazurov/taskmaster/internal/socket"
)

// requestReadTimeout bounds how long a client may take to send its request.
const requestReadTimeout = 5 * time.Second

// Listener accepts control connections and turns each into one ClientRequest.
type Listener struct {
	path   string
	events chan<- Event
	logger *slog.Logger

	listener net.Listener
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewListener creates a listener that forwards requests to events.
func NewListener(path string, events chan<- Event, logger *slog.Logger) *Listener {
	return &Listener{
		path:   path,
		events: events,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start binds the socket and begins accepting.
func (l *Listener) Start() error {
	ln, err := socket.Listen(l.path)
	if err != nil {
		return err
	}
	l.listener = ln
	l.logger.Info("Listening for clients", "socket", l.path)

	l.wg.Add(1)
	go l.acceptConnections()
	return nil
}

// Stop closes the socket, waits for open handlers and removes the socket file.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
		if l.listener != nil {
			_ = l.listener.Close()
		}
		l.wg.Wait()
		if err := socket.Remove(l.path); err != nil {
			l.logger.Warn("Failed to remove socket", "socket", l.path, "error", err)
		}
	})
}

func (l *Listener) acceptConnections() {
	defer l.wg.Done()
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			l.logger.Error("Accept failed", "error", err)
			return
		}
		l.wg.Add(1)
		go l.handleConnection(conn)
	}
}

// handleConnection reads one request, forwards it and relays the reply
// until the loop closes the reply channel.
func (l *Listener) handleConnection(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))
	var msg Message
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		if errors.Is(err, io.EOF) {
			// Clients probe reachability by connecting without a request.
			l.logger.Debug("Connection closed without a request")
			return
		}
		l.logger.Warn("Invalid request", "error", err)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	l.logger.Debug("Received request", "type", msg.Type, "id", msg.ID)

	reply := make(chan string, 16)
	select {
	case l.events <- ClientRequest{Message: msg, Reply: reply}:
	case <-l.done:
		return
	}

	for {
		select {
		case chunk, ok := <-reply:
			if !ok {
				return
			}
			if _, err := conn.Write([]byte(chunk)); err != nil {
				l.logger.Debug("Client went away", "error", err)
				drain(reply)
				return
			}
		case <-l.done:
			return
		}
	}
}

// drain discards the rest of a reply so the loop never blocks on it.
func drain(reply <-chan string) {
	go func() {
		for range reply {
		}
	}()
}
