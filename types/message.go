package types

import (
	"fmt"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

// The different types of messages transferred between the clients and here.

// ChatMessage is a basic chat message, stamped and fanned out within a room.
// It is never persisted.
type ChatMessage struct {
	Id        string    `json:"id" mapstructure:"-" hash:"ignore"`
	Nick      string    `json:"username" mapstructure:"-"`
	Timestamp time.Time `json:"timestamp" mapstructure:"-"`
	Message   string    `json:"message" mapstructure:"message"`
}

// CreateId derives the message id from a hash over the message fields.
func (m *ChatMessage) CreateId() error {
	h, err := hashstructure.Hash(m, hashstructure.FormatV2, nil)
	if err != nil {
		return err
	}
	m.Id = fmt.Sprintf("%016x", h)
	return nil
}

// CursorUpdate is an advisory cursor position, relayed with the sender's
// identity attached. Not persisted, not part of room state.
type CursorUpdate struct {
	Nick     string `json:"username" mapstructure:"-"`
	ClientId string `json:"clientId" mapstructure:"-"`
	Offset   int    `json:"offset" mapstructure:"offset"`
}
