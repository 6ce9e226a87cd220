// Package session owns the live state of the single open conversation:
// the message sequence, the typing/presence/read projections and the
// optimistic single-flight send protocol.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/luis-byt/aware-chat/internal/model/chat"
	"github.com/luis-byt/aware-chat/internal/service/upload"
)

var (
	// ErrSendInFlight rejects a send while a previous one awaits its
	// confirmation event. The protocol has no correlation ids, so at most
	// one send may be outstanding.
	ErrSendInFlight = errors.New("send already in flight")
	// ErrEmptySend rejects a send with neither text nor files.
	ErrEmptySend = errors.New("nothing to send")
	// ErrNotSubscribed rejects a send before a subscription is open.
	ErrNotSubscribed = errors.New("no open subscription")
)

// Fetcher is the slice of the REST client the session needs.
type Fetcher interface {
	FetchMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
}

// Subscription is one live per-conversation event stream.
type Subscription interface {
	Send(payload any) error
	Close()
}

// Channel opens push subscriptions. Events must be delivered one at a
// time, in arrival order.
type Channel interface {
	Subscribe(ctx context.Context, conversationID string, onEvent func(chat.Event), onClose func(error)) (Subscription, error)
}

// Outcome reports how Dispatch handled one event.
type Outcome int

const (
	// Applied mutated the session state.
	Applied Outcome = iota
	// Duplicate matched an already-held message id; nothing changed.
	Duplicate
	// Ignored concerned the local user (own typing or presence echo).
	Ignored
	// Stale arrived after teardown or for a message no longer held.
	Stale
	// Routed was a foreign message handed to the inbox side instead.
	Routed
)

// Hooks receive change notifications for the rendering collaborator.
// All fields are optional; hooks run on the dispatching goroutine.
type Hooks struct {
	OnMessages         func(messages []chat.Message)
	OnTyping           func(isTyping bool)
	OnPresence         func(online bool)
	OnRead             func()
	OnUploadSettled    func(result upload.Result)
	OnForeignMessage   func(msg chat.Message)
	OnSubscriptionLost func(err error)
}

type pendingSend struct {
	text  string
	files []chat.PendingFile
}

// Session synchronizes one conversation across the history fetch, the push
// stream and the local user's own sends.
type Session struct {
	fetcher Fetcher
	channel Channel
	uploads *upload.Coordinator
	userID  string
	role    chat.Role
	hooks   Hooks

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	conversationID string
	gen            uint64
	sub            Subscription
	messages       []chat.Message
	typing         bool
	online         bool
	focused        bool
	pending        *pendingSend
}

// New builds a session over injected collaborators. uploader may come from
// the same REST client as fetcher; it feeds the upload coordinator.
func New(fetcher Fetcher, channel Channel, uploader upload.Uploader, userID string, role chat.Role, hooks Hooks) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		fetcher: fetcher,
		channel: channel,
		uploads: upload.NewCoordinator(uploader),
		userID:  userID,
		role:    role,
		hooks:   hooks,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Load fetches the full history and merges it with whatever push events
// raced ahead of it: history becomes the base, already-held messages with
// ids absent from history are re-appended at the tail. Both arrival orders
// converge to the same sequence. On failure nothing is touched and the
// caller must issue a fresh Load.
func (s *Session) Load(ctx context.Context, conversationID string) error {
	history, err := s.fetcher.FetchMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	s.mu.Lock()
	seen := make(map[string]struct{}, len(history))
	for _, msg := range history {
		seen[msg.ID] = struct{}{}
	}

	merged := append([]chat.Message(nil), history...)
	for _, msg := range s.messages {
		if msg.ConversationID != "" && msg.ConversationID != conversationID {
			continue
		}
		if _, ok := seen[msg.ID]; !ok {
			merged = append(merged, msg)
		}
	}

	s.conversationID = conversationID
	s.messages = merged
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notifyMessages(snapshot)
	return nil
}

// Subscribe tears down any prior subscription, opens exactly one new push
// subscription for the conversation and acknowledges it as read. Events of
// the previous subscription are invalidated before the dial starts.
func (s *Session) Subscribe(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	s.gen++
	gen := s.gen
	s.conversationID = conversationID
	s.focused = true
	s.mu.Unlock()

	sub, err := s.channel.Subscribe(ctx, conversationID,
		func(ev chat.Event) { s.dispatch(gen, ev) },
		func(err error) {
			if err == nil {
				return
			}
			log.Printf("[session] subscription lost: %v", err)
			if s.hooks.OnSubscriptionLost != nil {
				s.hooks.OnSubscriptionLost(err)
			}
		},
	)
	if err != nil {
		return fmt.Errorf("open subscription: %w", err)
	}

	s.mu.Lock()
	if gen != s.gen {
		// A newer Subscribe or Close won the race while dialing.
		s.mu.Unlock()
		sub.Close()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	// Opening the conversation marks it read server-side.
	if err := sub.Send(chat.NewReadPayload()); err != nil {
		log.Printf("[session] read acknowledgment failed: %v", err)
	}
	return nil
}

// SetFocused tells the session whether the conversation view is the one on
// screen. While unfocused, foreign messages are routed to the inbox hook
// instead of being appended.
func (s *Session) SetFocused(focused bool) {
	s.mu.Lock()
	s.focused = focused
	s.mu.Unlock()
}

// Dispatch routes one push event by its discriminant. Exposed for tests
// and for callers injecting events from an external transport.
func (s *Session) Dispatch(ev chat.Event) Outcome {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	return s.dispatch(gen, ev)
}

func (s *Session) dispatch(gen uint64, ev chat.Event) Outcome {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return Stale
	}

	switch ev := ev.(type) {
	case chat.MessageEvent:
		return s.applyMessageLocked(ev.Message)

	case chat.TypingEvent:
		if ev.SenderRole == s.role {
			s.mu.Unlock()
			return Ignored
		}
		s.typing = ev.IsTyping
		s.mu.Unlock()
		if s.hooks.OnTyping != nil {
			s.hooks.OnTyping(ev.IsTyping)
		}
		return Applied

	case chat.PresenceEvent:
		if ev.UserID == s.userID {
			s.mu.Unlock()
			return Ignored
		}
		s.online = ev.IsOnline
		s.mu.Unlock()
		if s.hooks.OnPresence != nil {
			s.hooks.OnPresence(ev.IsOnline)
		}
		return Applied

	case chat.ReadEvent:
		for i := range s.messages {
			if s.messages[i].Sender == s.userID {
				s.messages[i].Status = chat.StatusRead
			}
		}
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		if s.hooks.OnRead != nil {
			s.hooks.OnRead()
		}
		s.notifyMessages(snapshot)
		return Applied

	case chat.AttachmentEvent:
		for i := range s.messages {
			if s.messages[i].ID == ev.MessageID {
				s.messages[i].Attachments = append(s.messages[i].Attachments, ev.Attachment)
				snapshot := s.snapshotLocked()
				s.mu.Unlock()
				s.notifyMessages(snapshot)
				return Applied
			}
		}
		// Attachments are never buffered for messages we no longer hold.
		s.mu.Unlock()
		return Stale

	default:
		s.mu.Unlock()
		return Ignored
	}
}

// applyMessageLocked appends a message if its id is unseen and, for the
// local user's own messages, treats the event as the confirmation of the
// most recent send. Called with s.mu held; releases it.
func (s *Session) applyMessageLocked(msg chat.Message) Outcome {
	if !s.focused && msg.Sender != s.userID {
		s.mu.Unlock()
		if s.hooks.OnForeignMessage != nil {
			s.hooks.OnForeignMessage(msg)
		}
		return Routed
	}

	for _, held := range s.messages {
		if held.ID == msg.ID {
			s.mu.Unlock()
			return Duplicate
		}
	}
	s.messages = append(s.messages, msg)

	var settle *pendingSend
	if msg.Sender == s.userID && s.pending != nil {
		if len(s.pending.files) == 0 {
			s.pending = nil
		} else {
			settle = s.pending
		}
	}
	ctx := s.ctx
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if settle != nil {
		go s.settleUploads(ctx, msg.ID, settle.files)
	}
	s.notifyMessages(snapshot)
	return Applied
}

// settleUploads runs the upload batch and clears the send guard once every
// outcome is known, whether or not the attachment events have arrived yet.
func (s *Session) settleUploads(ctx context.Context, messageID string, files []chat.PendingFile) {
	result := s.uploads.Run(ctx, messageID, files)

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	if !result.OK() {
		log.Printf("[session] %d of %d uploads failed for message %s", len(result.Failed), len(files), messageID)
	}
	if s.hooks.OnUploadSettled != nil {
		s.hooks.OnUploadSettled(result)
	}
}

// Send captures a pending send and transmits the text over the open
// subscription. It returns before the server confirms; the confirmation is
// the next own-authored message event. Rejections are synchronous and
// happen before any network interaction.
func (s *Session) Send(text string, files []chat.PendingFile) error {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	if text == "" && len(files) == 0 {
		s.mu.Unlock()
		return ErrEmptySend
	}
	sub := s.sub
	if sub == nil {
		s.mu.Unlock()
		return ErrNotSubscribed
	}
	s.pending = &pendingSend{text: text, files: append([]chat.PendingFile(nil), files...)}
	s.mu.Unlock()

	// Sending implies the user stopped typing.
	if err := sub.Send(chat.NewTypingPayload(false)); err != nil {
		log.Printf("[session] typing reset failed: %v", err)
	}

	if err := sub.Send(chat.NewMessagePayload(text)); err != nil {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendTyping publishes the local typing level. The debounce that turns
// keystrokes into levels belongs to the input surface, not here.
func (s *Session) SendTyping(isTyping bool) error {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub == nil {
		return ErrNotSubscribed
	}
	return sub.Send(chat.NewTypingPayload(isTyping))
}

// Close disconnects the subscription and discards the message sequence,
// the projections and any in-flight pending send. Events still in flight
// for the old subscription are invalidated synchronously.
func (s *Session) Close() {
	s.mu.Lock()
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	s.gen++
	s.conversationID = ""
	s.messages = nil
	s.typing = false
	s.online = false
	s.pending = nil

	// Cancel in-flight uploads, then arm a fresh lifetime for the next
	// conversation this session opens.
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()
}

// ConversationID returns the id of the currently loaded conversation.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns a copy of the current message sequence.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Typing reports the peer's last explicit typing level.
func (s *Session) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Online reports the peer's presence.
func (s *Session) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// SendInFlight reports whether a pending send awaits confirmation.
func (s *Session) SendInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Session) snapshotLocked() []chat.Message {
	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

func (s *Session) notifyMessages(snapshot []chat.Message) {
	if s.hooks.OnMessages != nil {
		s.hooks.OnMessages(snapshot)
	}
}
