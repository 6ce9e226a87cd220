// Package preview renders inbox row text: the one-line last message
// summary and the bucketed timestamp next to it.
package preview

import (
	"fmt"
	"strings"
	"time"

	"github.com/luis-byt/aware-chat/internal/model/chat"
)

const maxPreviewRunes = 40

// LastMessage summarizes a conversation's last message for the inbox row.
func LastMessage(msg *chat.Message) string {
	if msg == nil {
		return "No messages"
	}

	if n := len(msg.Attachments); n > 0 {
		if n == 1 {
			return "1 attachment"
		}
		return fmt.Sprintf("%d attachments", n)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return "Message"
	}

	runes := []rune(text)
	if len(runes) > maxPreviewRunes {
		return string(runes[:maxPreviewRunes]) + "…"
	}
	return text
}

// InboxDate buckets a timestamp relative to now: today shows the clock
// time, yesterday a label, anything older the date.
func InboxDate(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	local := t.Local()
	day := func(v time.Time) time.Time {
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, v.Location())
	}

	switch day(now.Local()).Sub(day(local)) / (24 * time.Hour) {
	case 0:
		return local.Format("15:04")
	case 1:
		return "Yesterday"
	default:
		return local.Format("2006-01-02")
	}
}
