package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is one persisted direct message
type Message struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Receiver   string    `json:"receiver"`
	Body       string    `json:"message"`
	Translated *string   `json:"translated_message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewMessage creates a Message with a fresh id and the current UTC timestamp
func NewMessage(sender, receiver, body string, translated *string) *Message {
	return &Message{
		ID:         uuid.NewString(),
		Sender:     sender,
		Receiver:   receiver,
		Body:       body,
		Translated: translated,
		Timestamp:  time.Now().UTC(),
	}
}

// DisplayText is the text shown to readers: the translation when present,
// otherwise the original body
func (m *Message) DisplayText() string {
	if m.Translated != nil && *m.Translated != "" {
		return *m.Translated
	}
	return m.Body
}

// EventType identifies a live-transport event
type EventType string

const (
	EventPrivateMessage    EventType = "private_message"     // client -> server
	EventNewPrivateMessage EventType = "new_private_message" // server -> client
	EventTyping            EventType = "typing"              // both directions, ephemeral
)

// Envelope is the frame exchanged over the websocket
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PrivateMessagePayload is the inbound payload of a private_message event
type PrivateMessagePayload struct {
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
}

// NewPrivateMessagePayload is pushed to the receiver and echoed to the sender
type NewPrivateMessagePayload struct {
	ID              string    `json:"id"`
	Sender          string    `json:"sender"`
	Receiver        string    `json:"receiver"`
	Message         string    `json:"message"`
	OriginalMessage string    `json:"original_message"`
	Translated      bool      `json:"translated"`
	Timestamp       time.Time `json:"timestamp"`
}

// TypingPayload carries the counterpart of a typing indicator. Inbound it names
// the receiver, outbound the sender.
type TypingPayload struct {
	Receiver string `json:"receiver,omitempty"`
	Sender   string `json:"sender,omitempty"`
}

// NewPrivateMessageEvent builds the outbound event for a persisted message
func NewPrivateMessageEvent(m *Message) ([]byte, error) {
	return encodeEnvelope(EventNewPrivateMessage, NewPrivateMessagePayload{
		ID:              m.ID,
		Sender:          m.Sender,
		Receiver:        m.Receiver,
		Message:         m.DisplayText(),
		OriginalMessage: m.Body,
		Translated:      m.Translated != nil && *m.Translated != "",
		Timestamp:       m.Timestamp,
	})
}

// NewTypingEvent builds the outbound typing indicator for sender
func NewTypingEvent(sender string) ([]byte, error) {
	return encodeEnvelope(EventTyping, TypingPayload{Sender: sender})
}

func encodeEnvelope(t EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// Endpoint is a live connection that can receive pushed frames
type Endpoint interface {
	Send(msg []byte)
}
