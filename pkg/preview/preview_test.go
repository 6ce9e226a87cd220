package preview_test

import (
	"strings"
	"testing"
	"time"

	"github.com/luis-byt/aware-chat/internal/model/chat"
	"github.com/luis-byt/aware-chat/pkg/preview"
)

func TestLastMessage(t *testing.T) {
	long := strings.Repeat("a", 45)

	cases := []struct {
		name string
		msg  *chat.Message
		want string
	}{
		{"no message", nil, "No messages"},
		{"plain text", &chat.Message{Text: "see you tomorrow"}, "see you tomorrow"},
		{"whitespace only", &chat.Message{Text: "   "}, "Message"},
		{"long text truncated", &chat.Message{Text: long}, strings.Repeat("a", 40) + "…"},
		{"one attachment", &chat.Message{Text: "ignored", Attachments: []chat.Attachment{{ID: "a1"}}}, "1 attachment"},
		{"several attachments", &chat.Message{Attachments: []chat.Attachment{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}}}, "3 attachments"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := preview.LastMessage(tc.msg); got != tc.want {
				t.Fatalf("LastMessage = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLastMessageTruncatesOnRunes(t *testing.T) {
	text := strings.Repeat("ü", 41)
	got := preview.LastMessage(&chat.Message{Text: text})
	if want := strings.Repeat("ü", 40) + "…"; got != want {
		t.Fatalf("LastMessage = %q, want %q", got, want)
	}
}

func TestInboxDate(t *testing.T) {
	now := time.Date(2025, time.March, 10, 18, 30, 0, 0, time.Local)

	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"zero time", time.Time{}, ""},
		{"earlier today", time.Date(2025, time.March, 10, 9, 15, 0, 0, time.Local), "09:15"},
		{"yesterday", time.Date(2025, time.March, 9, 23, 59, 0, 0, time.Local), "Yesterday"},
		{"last week", time.Date(2025, time.March, 3, 12, 0, 0, 0, time.Local), "2025-03-03"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := preview.InboxDate(tc.at, now); got != tc.want {
				t.Fatalf("InboxDate = %q, want %q", got, tc.want)
			}
		})
	}
}
