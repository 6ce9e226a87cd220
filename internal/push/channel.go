// Package push implements the asynchronous side of the chat backend: a
// per-conversation websocket subscription delivering typed events in
// arrival order.
package push

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luis-byt/aware-chat/internal/model/chat"
)

// ErrSubscriptionClosed is returned when sending over a torn-down subscription.
var ErrSubscriptionClosed = errors.New("subscription closed")

// Handler consumes one decoded inbound event. It is invoked from the
// subscription's read loop, one event at a time, in arrival order.
type Handler func(chat.Event)

// CloseHandler is invoked once when the subscription stops delivering
// events. err is nil when Close was called locally.
type CloseHandler func(err error)

// Channel dials push subscriptions against a ws base URL.
type Channel struct {
	wsBaseURL string
	token     string
	dialer    *websocket.Dialer
}

// NewChannel builds a channel factory for the given ws endpoint and token.
func NewChannel(wsBaseURL, token string) *Channel {
	return &Channel{
		wsBaseURL: wsBaseURL,
		token:     token,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Subscribe opens one subscription for a conversation and starts its read
// loop. The caller owns teardown via Close; the transport's own retry and
// reconnection policy lives outside this package.
func (c *Channel) Subscribe(ctx context.Context, conversationID string, onEvent Handler, onClose CloseHandler) (*Subscription, error) {
	endpoint := fmt.Sprintf("%s/ws/chat/%s/?token=%s", c.wsBaseURL, conversationID, url.QueryEscape(c.token))

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	sub := &Subscription{
		conversationID: conversationID,
		conn:           conn,
		closed:         make(chan struct{}),
	}
	go sub.readLoop(onEvent, onClose)
	return sub, nil
}

// Subscription is one live per-conversation event stream.
type Subscription struct {
	conversationID string
	conn           *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// ConversationID returns the conversation this subscription is bound to.
func (s *Subscription) ConversationID() string {
	return s.conversationID
}

// Send writes one outbound frame. Fire-and-forget: no ack is awaited.
func (s *Subscription) Send(payload any) error {
	select {
	case <-s.closed:
		return ErrSubscriptionClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}

// Close tears the subscription down. Events already in flight are dropped,
// never delivered after Close returns the loop to its caller.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

func (s *Subscription) readLoop(onEvent Handler, onClose CloseHandler) {
	defer s.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closed:
				// Local teardown, not a transport failure.
				if onClose != nil {
					onClose(nil)
				}
			default:
				if onClose != nil {
					onClose(err)
				}
			}
			return
		}

		event, err := chat.DecodeEvent(data)
		if err != nil {
			log.Printf("[push] dropping undecodable frame: %v", err)
			continue
		}

		select {
		case <-s.closed:
			return
		default:
		}
		onEvent(event)
	}
}
