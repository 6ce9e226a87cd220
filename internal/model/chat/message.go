package chat

import (
	"strings"
	"time"
)

// Status is the delivery state of a message authored by the local user.
type Status string

const (
	StatusSent Status = "sent"
	StatusRead Status = "read"
)

// Message is one entry of a conversation. IDs are always server-assigned;
// the client never fabricates one.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Sender         string       `json:"sender"`
	Text           string       `json:"text"`
	CreatedAt      time.Time    `json:"created_at"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	Status         Status       `json:"status,omitempty"`
}

// Attachment is a stored file hanging off a message. It is created
// server-side once an upload finishes and may reach the client after its
// parent message did.
type Attachment struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
	File      string `json:"file"`
	FileType  string `json:"file_type"`
	FileSize  int64  `json:"file_size"`
}

// IsImage classifies the attachment by its MIME type prefix.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.FileType, "image")
}

// FileName is the last path segment of the storage locator.
func (a Attachment) FileName() string {
	if idx := strings.LastIndex(a.File, "/"); idx >= 0 {
		return a.File[idx+1:]
	}
	return a.File
}

// PendingFile is a local file captured from the input surface, waiting for
// the owning message to be confirmed before it can be uploaded.
type PendingFile struct {
	Name        string
	ContentType string
	Data        []byte
}
