package inbox

import "github.com/luis-byt/aware-chat/internal/model/chat"

// Ledger derives the global unread badge count from the per-conversation
// counters. It holds no state of its own beyond the last derived total:
// the total is always recomputable from the counters, any divergence is a
// bug rather than a recoverable state.
type Ledger struct {
	total    int
	onChange func(total int)
}

// NewLedger builds a ledger. onChange fires whenever the derived total
// moves; it is the only externally visible badge writer.
func NewLedger(onChange func(total int)) *Ledger {
	return &Ledger{onChange: onChange}
}

// Recompute re-derives the total from scratch and reports it.
func (l *Ledger) Recompute(conversations []chat.Conversation) int {
	total := 0
	for _, conv := range conversations {
		total += conv.UnreadCount
	}

	if total != l.total {
		l.total = total
		if l.onChange != nil {
			l.onChange(total)
		}
	}
	return total
}

// Total returns the last derived value.
func (l *Ledger) Total() int {
	return l.total
}
