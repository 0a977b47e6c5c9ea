package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/muurk/r2k/internal/protocol"
)

// Message is one event as sent to clients.
type Message struct {
	Type   string            `json:"type"` // protocol.Kind name, e.g. "tag"
	Time   time.Time         `json:"time"`
	Reader string            `json:"reader,omitempty"`
	Event  protocol.Response `json:"event"`
}

// NewMessage stamps ev with the current time.
func NewMessage(readerName string, ev protocol.Response) Message {
	return Message{
		Type:   ev.Kind().String(),
		Time:   time.Now().UTC(),
		Reader: readerName,
		Event:  ev,
	}
}

func (m Message) encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", m.Type, err)
	}
	return data, nil
}
