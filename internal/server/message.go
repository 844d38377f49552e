package server

import (
	"errors"
	"fmt"
)

// MessageType discriminates client requests on the wire.
type MessageType string

// Request types
const (
	MessageList    MessageType = "List"
	MessageInfo    MessageType = "Info"
	MessageStatus  MessageType = "Status"
	MessageStart   MessageType = "Start"
	MessageStop    MessageType = "Stop"
	MessageRestart MessageType = "Restart"
	MessageReload  MessageType = "Reload"
	MessageQuit    MessageType = "Quit"
)

// Message is one client request: {"type":"Start","id":"web"}.
type Message struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id,omitempty"`
}

var errMissingID = errors.New("missing task id")

// NeedsID reports whether the request targets a single task.
func (t MessageType) NeedsID() bool {
	switch t {
	case MessageInfo, MessageStatus, MessageStart, MessageStop, MessageRestart:
		return true
	default:
		return false
	}
}

// Validate checks the type is known and the id presence matches it.
func (m Message) Validate() error {
	switch m.Type {
	case MessageList, MessageReload, MessageQuit:
		return nil
	case MessageInfo, MessageStatus, MessageStart, MessageStop, MessageRestart:
		if m.ID == "" {
			return fmt.Errorf("%s: %w", m.Type, errMissingID)
		}
		return nil
	default:
		return fmt.Errorf("unknown request type %q", m.Type)
	}
}
