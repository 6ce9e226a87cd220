// Package widget is the embeddable surface of the chat client: it wires
// the REST fetcher, the push channel, the conversation session and the
// inbox aggregator, and routes events between them as the user navigates.
package widget

import (
	"context"
	"sync"

	"github.com/luis-byt/aware-chat/internal/api"
	"github.com/luis-byt/aware-chat/internal/config"
	"github.com/luis-byt/aware-chat/internal/model/chat"
	"github.com/luis-byt/aware-chat/internal/push"
	"github.com/luis-byt/aware-chat/internal/service/inbox"
	"github.com/luis-byt/aware-chat/internal/service/session"
	"github.com/luis-byt/aware-chat/internal/service/upload"
)

// Fetcher is the REST surface the widget consumes.
type Fetcher interface {
	session.Fetcher
	inbox.Fetcher
	upload.Uploader
	FetchContacts(ctx context.Context) ([]chat.Contact, error)
	CreateConversation(ctx context.Context, contactID string, role chat.Role) (chat.Conversation, error)
}

// Notifications receive every state change a rendering collaborator cares
// about. All fields are optional.
type Notifications struct {
	OnMessages         func(messages []chat.Message)
	OnTyping           func(isTyping bool)
	OnPresence         func(online bool)
	OnRead             func()
	OnUnreadTotal      func(total int)
	OnUploadSettled    func(result upload.Result)
	OnSubscriptionLost func(err error)
}

// Widget ties one user's inbox and at most one open conversation together.
type Widget struct {
	fetcher Fetcher
	inbox   *inbox.Aggregator
	session *session.Session
	userID  string

	mu         sync.Mutex
	openConvID string
}

// New builds a widget from configuration, using the real REST client and
// websocket channel.
func New(cfg config.ClientConfig, notify Notifications) *Widget {
	client := api.NewClient(cfg.APIBaseURL, cfg.Token)
	channel := push.NewChannel(cfg.WSBaseURL, cfg.Token)
	return NewWithCollaborators(client, channelAdapter{channel}, cfg.UserID, cfg.Role, notify)
}

// NewWithCollaborators builds a widget over injected collaborators,
// enabling independent instances and test doubles.
func NewWithCollaborators(fetcher Fetcher, channel session.Channel, userID string, role chat.Role, notify Notifications) *Widget {
	w := &Widget{
		fetcher: fetcher,
		userID:  userID,
	}
	w.inbox = inbox.New(fetcher, notify.OnUnreadTotal)
	w.session = session.New(fetcher, channel, fetcher, userID, role, session.Hooks{
		OnMessages:      notify.OnMessages,
		OnTyping:        notify.OnTyping,
		OnPresence:      notify.OnPresence,
		OnRead:          notify.OnRead,
		OnUploadSettled: notify.OnUploadSettled,
		OnForeignMessage: func(msg chat.Message) {
			w.inbox.OnForeignMessage(msg.ConversationID, msg)
		},
		OnSubscriptionLost: notify.OnSubscriptionLost,
	})
	return w
}

// OpenInbox loads the conversation summary list. The snapshot is
// authoritative for every unread counter.
func (w *Widget) OpenInbox(ctx context.Context) ([]chat.Conversation, error) {
	if err := w.inbox.Load(ctx); err != nil {
		return nil, err
	}
	return w.inbox.Conversations(), nil
}

// Contacts lists the users a new conversation can be started with.
func (w *Widget) Contacts(ctx context.Context) ([]chat.Contact, error) {
	return w.fetcher.FetchContacts(ctx)
}

// StartConversation creates (or resumes) a thread with a contact and opens it.
func (w *Widget) StartConversation(ctx context.Context, contact chat.Contact) (chat.Conversation, error) {
	conv, err := w.fetcher.CreateConversation(ctx, contact.ID, contact.Role)
	if err != nil {
		return chat.Conversation{}, err
	}
	if err := w.OpenConversation(ctx, conv.ID); err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

// OpenConversation loads a conversation's history, opens its push
// subscription and clears its unread counter. Any previously open
// conversation is torn down first.
func (w *Widget) OpenConversation(ctx context.Context, conversationID string) error {
	w.mu.Lock()
	w.openConvID = conversationID
	w.mu.Unlock()

	if err := w.session.Load(ctx, conversationID); err != nil {
		return err
	}
	if err := w.session.Subscribe(ctx, conversationID); err != nil {
		return err
	}

	w.inbox.OnConversationOpened(conversationID)
	return nil
}

// CloseConversation tears the open conversation down and returns the
// widget to the inbox view.
func (w *Widget) CloseConversation() {
	w.mu.Lock()
	w.openConvID = ""
	w.mu.Unlock()
	w.session.Close()
}

// SetFocused marks whether the conversation view is on screen. An
// unfocused session routes incoming peer messages into the inbox counters
// instead of the message list.
func (w *Widget) SetFocused(focused bool) {
	w.session.SetFocused(focused)
}

// Send submits a message with optional pending files. See session.Send for
// the single-flight contract.
func (w *Widget) Send(text string, files []chat.PendingFile) error {
	return w.session.Send(text, files)
}

// SendTyping publishes the local typing level to the peer.
func (w *Widget) SendTyping(isTyping bool) error {
	return w.session.SendTyping(isTyping)
}

// Session exposes the open conversation's projections.
func (w *Widget) Session() *session.Session {
	return w.session
}

// Inbox exposes the summary list and counters.
func (w *Widget) Inbox() *inbox.Aggregator {
	return w.inbox
}

// UnreadTotal returns the global badge count.
func (w *Widget) UnreadTotal() int {
	return w.inbox.UnreadTotal()
}

// channelAdapter narrows *push.Channel to the session.Channel interface.
type channelAdapter struct {
	channel *push.Channel
}

func (c channelAdapter) Subscribe(ctx context.Context, conversationID string, onEvent func(chat.Event), onClose func(error)) (session.Subscription, error) {
	sub, err := c.channel.Subscribe(ctx, conversationID, onEvent, onClose)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
