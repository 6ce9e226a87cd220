// Package inbox owns the conversation summary list and the per-conversation
// unread counters for every conversation that is not currently open, plus
// the derived global unread total.
package inbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/luis-byt/aware-chat/internal/model/chat"
)

// Fetcher is the slice of the REST client the aggregator needs.
type Fetcher interface {
	FetchInbox(ctx context.Context) ([]chat.Conversation, error)
}

// Aggregator merges push-driven unread increments with REST-driven
// snapshots. The server is authoritative at load time; between loads the
// aggregator is the only writer of the counters.
type Aggregator struct {
	fetcher Fetcher

	mu            sync.Mutex
	conversations []chat.Conversation
	ledger        *Ledger
}

// New builds an aggregator. onTotalChanged receives every change of the
// global unread total.
func New(fetcher Fetcher, onTotalChanged func(total int)) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		ledger:  NewLedger(onTotalChanged),
	}
}

// Load replaces the held list wholesale with a fresh snapshot. Counters
// accumulated since the previous load are overwritten, not added to.
func (a *Aggregator) Load(ctx context.Context) error {
	conversations, err := a.fetcher.FetchInbox(ctx)
	if err != nil {
		return fmt.Errorf("load inbox: %w", err)
	}

	a.mu.Lock()
	a.conversations = conversations
	a.ledger.Recompute(a.conversations)
	a.mu.Unlock()
	return nil
}

// OnForeignMessage records a message that arrived for a conversation that
// is not the open one: its counter goes up by exactly one and its last
// message projection is refreshed. A conversation the snapshot does not
// know yet is left alone; the next Load picks it up.
func (a *Aggregator) OnForeignMessage(conversationID string, msg chat.Message) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.conversations {
		if a.conversations[i].ID != conversationID {
			continue
		}
		a.conversations[i].UnreadCount++
		copied := msg
		a.conversations[i].LastMessage = &copied
		a.ledger.Recompute(a.conversations)
		return true
	}
	return false
}

// OnConversationOpened zeroes the counter of a conversation the user just
// entered. This is the only path that decreases a counter between loads.
// It returns how many unread messages were cleared.
func (a *Aggregator) OnConversationOpened(conversationID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.conversations {
		if a.conversations[i].ID != conversationID {
			continue
		}
		cleared := a.conversations[i].UnreadCount
		a.conversations[i].UnreadCount = 0
		a.ledger.Recompute(a.conversations)
		return cleared
	}
	return 0
}

// Conversations returns a copy of the held summary list.
func (a *Aggregator) Conversations() []chat.Conversation {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := make([]chat.Conversation, len(a.conversations))
	copy(copied, a.conversations)
	return copied
}

// UnreadTotal returns the derived global unread count.
func (a *Aggregator) UnreadTotal() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ledger.Total()
}
