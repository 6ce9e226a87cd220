// Package stub is an in-memory backend speaking the widget's REST and
// push protocols. It backs the demo binaries and the end-to-end tests; it
// is not a storage engine.
package stub

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luis-byt/aware-chat/internal/model/chat"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
)

// User is a stub account. The bearer token doubles as the user id.
type User struct {
	ID       string
	FullName string
	Role     chat.Role
}

// Store keeps every conversation, message and counter in memory.
type Store struct {
	mu            sync.RWMutex
	users         map[string]User
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message
	messageConv   map[string]string
	unread        map[string]map[string]int
}

// NewStore returns an empty store preloaded with the supplied users.
func NewStore(users []User) *Store {
	s := &Store{
		users:         make(map[string]User),
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		messageConv:   make(map[string]string),
		unread:        make(map[string]map[string]int),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

// Seed returns the demo accounts both binaries are wired for.
func Seed() []User {
	return []User{
		{ID: "doc-1", FullName: "Dr. Ada Reyes", Role: chat.RoleDoctor},
		{ID: "pat-1", FullName: "Luis Ortega", Role: chat.RolePatient},
	}
}

// User looks an account up by id.
func (s *Store) User(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// Contacts lists every user on the opposite side of the given one.
func (s *Store) Contacts(userID string) []chat.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	me, ok := s.users[userID]
	if !ok {
		return nil
	}

	out := make([]chat.Contact, 0, len(s.users))
	for _, u := range s.users {
		if u.Role == me.Role {
			continue
		}
		out = append(out, chat.Contact{ID: u.ID, Name: u.FullName, Role: u.Role})
	}
	return out
}

// Inbox returns the user's conversations with counters from their point
// of view.
func (s *Store) Inbox(userID string) []chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Conversation, 0, len(s.conversations))
	for id, conv := range s.conversations {
		if conv.Doctor.ID != userID && conv.Patient.ID != userID {
			continue
		}
		conv.UnreadCount = s.unread[id][userID]
		if msgs := s.messages[id]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			conv.LastMessage = &last
		}
		out = append(out, conv)
	}
	return out
}

// CreateConversation finds or creates the thread between two users.
func (s *Store) CreateConversation(userID, contactID string) (chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	me, ok := s.users[userID]
	if !ok {
		return chat.Conversation{}, ErrUserNotFound
	}
	peer, ok := s.users[contactID]
	if !ok {
		return chat.Conversation{}, ErrUserNotFound
	}

	for _, conv := range s.conversations {
		pair := map[string]bool{conv.Doctor.ID: true, conv.Patient.ID: true}
		if pair[userID] && pair[contactID] {
			return conv, nil
		}
	}

	conv := chat.Conversation{ID: uuid.NewString()}
	doctor, patient := me, peer
	if doctor.Role != chat.RoleDoctor {
		doctor, patient = peer, me
	}
	conv.Doctor = chat.Participant{ID: doctor.ID, FullName: doctor.FullName}
	conv.Patient = chat.Participant{ID: patient.ID, FullName: patient.FullName}

	s.conversations[conv.ID] = conv
	s.unread[conv.ID] = make(map[string]int)
	return conv, nil
}

// Conversation looks a thread up by id.
func (s *Store) Conversation(id string) (chat.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	return conv, ok
}

// Messages returns a conversation's history in creation order.
func (s *Store) Messages(conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, ErrConversationNotFound
	}
	msgs := s.messages[conversationID]
	copied := make([]chat.Message, len(msgs))
	copy(copied, msgs)
	return copied, nil
}

// AppendMessage stores a new message with a server-assigned id and bumps
// the recipient's unread counter unless told not to.
func (s *Store) AppendMessage(conversationID, senderID, text string, recipientReading bool) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return chat.Message{}, ErrConversationNotFound
	}

	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         senderID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
		Status:         chat.StatusSent,
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.messageConv[msg.ID] = conversationID

	if !recipientReading {
		recipient := conv.Peer(senderID)
		if s.unread[conversationID] == nil {
			s.unread[conversationID] = make(map[string]int)
		}
		s.unread[conversationID][recipient.ID]++
	}
	return msg, nil
}

// AddAttachment stores an attachment record against a message and returns
// it together with the owning conversation id.
func (s *Store) AddAttachment(messageID, fileName, fileType string, fileSize int64) (chat.Attachment, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conversationID, ok := s.messageConv[messageID]
	if !ok {
		return chat.Attachment{}, "", ErrMessageNotFound
	}

	att := chat.Attachment{
		ID:        uuid.NewString(),
		MessageID: messageID,
		File:      "/files/" + uuid.NewString() + "/" + fileName,
		FileType:  fileType,
		FileSize:  fileSize,
	}

	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Attachments = append(msgs[i].Attachments, att)
			break
		}
	}
	return att, conversationID, nil
}

// MarkRead zeroes the reader's counter and flips everything the peer sent
// to read.
func (s *Store) MarkRead(conversationID, readerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if counters, ok := s.unread[conversationID]; ok {
		counters[readerID] = 0
	}
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].Sender != readerID {
			msgs[i].Status = chat.StatusRead
		}
	}
}
