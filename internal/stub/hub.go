package stub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/luis-byt/aware-chat/internal/model/chat"
)

// subscriber is one connected widget bound to a single conversation.
type subscriber struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
	role   chat.Role
	convID string
}

func (c *subscriber) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// hub tracks the live subscribers of each conversation.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *hub) register(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[c.convID] == nil {
		h.subs[c.convID] = make(map[*subscriber]struct{})
	}
	h.subs[c.convID][c] = struct{}{}
}

func (h *hub) unregister(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[c.convID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.subs, c.convID)
		}
	}
}

// hasReader reports whether some other participant currently holds the
// conversation open.
func (h *hub) hasReader(convID, exceptUserID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs[convID] {
		if c.userID != exceptUserID {
			return true
		}
	}
	return false
}

// broadcast sends one event to every subscriber of the conversation,
// optionally skipping a single client.
func (h *hub) broadcast(convID string, payload any, skip *subscriber) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[stub] marshal broadcast: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.subs[convID] {
		if c == skip {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Slow consumer, drop the frame.
		}
	}
}
