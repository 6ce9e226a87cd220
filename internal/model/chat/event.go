package chat

import (
	"encoding/json"
	"fmt"
)

// Push event discriminants shared by both directions of the channel.
const (
	EventMessage    = "message"
	EventTyping     = "typing"
	EventPresence   = "presence"
	EventRead       = "read"
	EventAttachment = "attachment"
)

// Event is one inbound push notification about the subscribed conversation.
// The concrete type carries the payload; dispatchers switch on it.
type Event interface {
	eventType() string
}

// MessageEvent announces a newly created message, including the local
// user's own sends coming back as confirmations.
type MessageEvent struct {
	Message Message
}

// TypingEvent is a level signal: it stays set until an explicit
// is_typing:false arrives. Silence never clears it.
type TypingEvent struct {
	SenderRole Role
	IsTyping   bool
}

// PresenceEvent reports a participant going online or offline.
type PresenceEvent struct {
	UserID   string
	IsOnline bool
}

// ReadEvent marks everything the local user sent in this conversation
// as read by the peer.
type ReadEvent struct{}

// AttachmentEvent attaches a stored file to an already delivered message.
type AttachmentEvent struct {
	MessageID  string
	Attachment Attachment
}

func (MessageEvent) eventType() string    { return EventMessage }
func (TypingEvent) eventType() string     { return EventTyping }
func (PresenceEvent) eventType() string   { return EventPresence }
func (ReadEvent) eventType() string       { return EventRead }
func (AttachmentEvent) eventType() string { return EventAttachment }

type eventEnvelope struct {
	Type       string      `json:"type"`
	Message    *Message    `json:"message,omitempty"`
	SenderRole Role        `json:"sender_role,omitempty"`
	IsTyping   bool        `json:"is_typing,omitempty"`
	UserID     string      `json:"user_id,omitempty"`
	IsOnline   bool        `json:"is_online,omitempty"`
	MessageID  string      `json:"message_id,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// DecodeEvent parses one inbound channel frame into its typed event.
func DecodeEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch env.Type {
	case EventMessage:
		if env.Message == nil {
			return nil, fmt.Errorf("message event without message payload")
		}
		return MessageEvent{Message: *env.Message}, nil
	case EventTyping:
		return TypingEvent{SenderRole: env.SenderRole, IsTyping: env.IsTyping}, nil
	case EventPresence:
		return PresenceEvent{UserID: env.UserID, IsOnline: env.IsOnline}, nil
	case EventRead:
		return ReadEvent{}, nil
	case EventAttachment:
		if env.Attachment == nil {
			return nil, fmt.Errorf("attachment event without attachment payload")
		}
		return AttachmentEvent{MessageID: env.MessageID, Attachment: *env.Attachment}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

// Outbound payloads. All of these are fire-and-forget: the channel carries
// no correlation ids and no acks are expected.

// MessagePayload submits the text of a new message. Attachments are never
// sent inline; they are uploaded against the confirmed message id.
type MessagePayload struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TypingPayload publishes the local user's typing level.
type TypingPayload struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// ReadPayload acknowledges the conversation as read by the local user.
type ReadPayload struct {
	Type string `json:"type"`
}

// NewMessagePayload builds the outbound frame for a text send.
func NewMessagePayload(text string) MessagePayload {
	return MessagePayload{Type: EventMessage, Text: text}
}

// NewTypingPayload builds the outbound frame for a typing level change.
func NewTypingPayload(isTyping bool) TypingPayload {
	return TypingPayload{Type: EventTyping, IsTyping: isTyping}
}

// NewReadPayload builds the outbound read acknowledgment.
func NewReadPayload() ReadPayload {
	return ReadPayload{Type: EventRead}
}
