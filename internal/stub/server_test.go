package stub_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/luis-byt/aware-chat/internal/api"
	"github.com/luis-byt/aware-chat/internal/model/chat"
	"github.com/luis-byt/aware-chat/internal/push"
	"github.com/luis-byt/aware-chat/internal/stub"
)

// harness runs the stub backend behind httptest and hands out real REST
// clients and push channels for the seeded accounts.
type harness struct {
	srv *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	server := stub.NewServer(stub.NewStore(stub.Seed()))
	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)
	return &harness{srv: srv}
}

func (h *harness) client(token string) *api.Client {
	return api.NewClient(h.srv.URL, token)
}

func (h *harness) channel(token string) *push.Channel {
	return push.NewChannel("ws"+strings.TrimPrefix(h.srv.URL, "http"), token)
}

func waitFor[T chat.Event](t *testing.T, events <-chan chat.Event, match func(T) bool) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if typed, ok := ev.(T); ok && match(typed) {
				return typed
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestContactsAndConversationCreation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor := h.client("doc-1")

	contacts, err := doctor.FetchContacts(ctx)
	if err != nil {
		t.Fatalf("FetchContacts err: %v", err)
	}
	if len(contacts) != 1 || contacts[0].ID != "pat-1" || contacts[0].Role != chat.RolePatient {
		t.Fatalf("contacts = %+v", contacts)
	}

	conv, err := doctor.CreateConversation(ctx, "pat-1", chat.RolePatient)
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}
	if conv.Doctor.ID != "doc-1" || conv.Patient.ID != "pat-1" {
		t.Fatalf("participants = %+v", conv)
	}

	// Creating again from either side returns the same thread.
	again, err := h.client("pat-1").CreateConversation(ctx, "doc-1", chat.RoleDoctor)
	if err != nil {
		t.Fatalf("CreateConversation (peer) err: %v", err)
	}
	if again.ID != conv.ID {
		t.Fatalf("expected the existing conversation %s, got %s", conv.ID, again.ID)
	}
}

func TestSendEchoConfirmsAndHistoryAgrees(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor := h.client("doc-1")

	conv, err := doctor.CreateConversation(ctx, "pat-1", chat.RolePatient)
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	events := make(chan chat.Event, 16)
	sub, err := h.channel("doc-1").Subscribe(ctx, conv.ID, func(ev chat.Event) { events <- ev }, nil)
	if err != nil {
		t.Fatalf("Subscribe err: %v", err)
	}
	defer sub.Close()

	if err := sub.Send(chat.NewMessagePayload("hello there")); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	// The sender's own echo is the confirmation, id assigned server-side.
	echo := waitFor(t, events, func(ev chat.MessageEvent) bool {
		return ev.Message.Text == "hello there"
	})
	if echo.Message.ID == "" || echo.Message.Sender != "doc-1" {
		t.Fatalf("echo = %+v", echo.Message)
	}

	msgs, err := doctor.FetchMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("FetchMessages err: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != echo.Message.ID {
		t.Fatalf("history = %+v", msgs)
	}
}

func TestUnreadBumpsOnlyWithoutLiveReader(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor := h.client("doc-1")

	conv, err := doctor.CreateConversation(ctx, "pat-1", chat.RolePatient)
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	events := make(chan chat.Event, 16)
	sub, err := h.channel("doc-1").Subscribe(ctx, conv.ID, func(ev chat.Event) { events <- ev }, nil)
	if err != nil {
		t.Fatalf("Subscribe err: %v", err)
	}
	defer sub.Close()

	// Patient is offline, so the send must bump their counter.
	if err := sub.Send(chat.NewMessagePayload("are you there?")); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	waitFor(t, events, func(ev chat.MessageEvent) bool { return ev.Message.Text == "are you there?" })

	inbox, err := h.client("pat-1").FetchInbox(ctx)
	if err != nil {
		t.Fatalf("FetchInbox err: %v", err)
	}
	if len(inbox) != 1 || inbox[0].UnreadCount != 1 {
		t.Fatalf("patient inbox = %+v", inbox)
	}
	if inbox[0].LastMessage == nil || inbox[0].LastMessage.Text != "are you there?" {
		t.Fatalf("last message = %+v", inbox[0].LastMessage)
	}

	// With the patient subscribed, a new send reaches them live and the
	// counter stays where it is.
	patientEvents := make(chan chat.Event, 16)
	patientSub, err := h.channel("pat-1").Subscribe(ctx, conv.ID, func(ev chat.Event) { patientEvents <- ev }, nil)
	if err != nil {
		t.Fatalf("patient Subscribe err: %v", err)
	}
	defer patientSub.Close()
	waitFor(t, events, func(ev chat.PresenceEvent) bool { return ev.UserID == "pat-1" && ev.IsOnline })

	if err := sub.Send(chat.NewMessagePayload("good, you made it")); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	waitFor(t, patientEvents, func(ev chat.MessageEvent) bool { return ev.Message.Text == "good, you made it" })

	inbox, err = h.client("pat-1").FetchInbox(ctx)
	if err != nil {
		t.Fatalf("FetchInbox err: %v", err)
	}
	if inbox[0].UnreadCount != 1 {
		t.Fatalf("unread = %d, want 1 (live delivery must not bump)", inbox[0].UnreadCount)
	}
}

func TestReadReceiptClearsCounterAndFlipsStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor := h.client("doc-1")

	conv, err := doctor.CreateConversation(ctx, "pat-1", chat.RolePatient)
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	docEvents := make(chan chat.Event, 16)
	docSub, err := h.channel("doc-1").Subscribe(ctx, conv.ID, func(ev chat.Event) { docEvents <- ev }, nil)
	if err != nil {
		t.Fatalf("Subscribe err: %v", err)
	}
	defer docSub.Close()

	if err := docSub.Send(chat.NewMessagePayload("please confirm")); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	waitFor(t, docEvents, func(ev chat.MessageEvent) bool { return ev.Message.Text == "please confirm" })

	patEvents := make(chan chat.Event, 16)
	patSub, err := h.channel("pat-1").Subscribe(ctx, conv.ID, func(ev chat.Event) { patEvents <- ev }, nil)
	if err != nil {
		t.Fatalf("patient Subscribe err: %v", err)
	}
	defer patSub.Close()

	if err := patSub.Send(chat.NewReadPayload()); err != nil {
		t.Fatalf("read Send err: %v", err)
	}

	// The receipt is broadcast to the peer, not echoed to the reader.
	waitFor(t, docEvents, func(chat.ReadEvent) bool { return true })

	inbox, err := h.client("pat-1").FetchInbox(ctx)
	if err != nil {
		t.Fatalf("FetchInbox err: %v", err)
	}
	if inbox[0].UnreadCount != 0 {
		t.Fatalf("unread after read = %d", inbox[0].UnreadCount)
	}

	msgs, err := doctor.FetchMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("FetchMessages err: %v", err)
	}
	if msgs[0].Status != chat.StatusRead {
		t.Fatalf("status = %q, want read", msgs[0].Status)
	}
}

func TestTypingBroadcastCarriesSenderRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	conv, err := h.client("doc-1").CreateConversation(ctx, "pat-1", chat.RolePatient)
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	patEvents := make(chan chat.Event, 16)
	patSub, err := h.channel("pat-1").Subscribe(ctx, conv.ID, func(ev chat.Event) { patEvents <- ev }, nil)
	if err != nil {
		t.Fatalf("patient Subscribe err: %v", err)
	}
	defer patSub.Close()

	docSub, err := h.channel("doc-1").Subscribe(ctx, conv.ID, func(chat.Event) {}, nil)
	if err != nil {
		t.Fatalf("doctor Subscribe err: %v", err)
	}
	defer docSub.Close()

	if err := docSub.Send(chat.NewTypingPayload(true)); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	ev := waitFor(t, patEvents, func(ev chat.TypingEvent) bool { return ev.IsTyping })
	if ev.SenderRole != chat.RoleDoctor {
		t.Fatalf("sender_role = %q", ev.SenderRole)
	}
}

func TestAttachmentUploadBroadcastsToEveryone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor := h.client("doc-1")

	conv, err := doctor.CreateConversation(ctx, "pat-1", chat.RolePatient)
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	docEvents := make(chan chat.Event, 16)
	docSub, err := h.channel("doc-1").Subscribe(ctx, conv.ID, func(ev chat.Event) { docEvents <- ev }, nil)
	if err != nil {
		t.Fatalf("Subscribe err: %v", err)
	}
	defer docSub.Close()

	if err := docSub.Send(chat.NewMessagePayload("scan attached")); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	echo := waitFor(t, docEvents, func(ev chat.MessageEvent) bool { return ev.Message.Text == "scan attached" })

	att, err := doctor.UploadAttachment(ctx, echo.Message.ID, chat.PendingFile{
		Name:        "scan.png",
		ContentType: "image/png",
		Data:        []byte{0x89, 'P', 'N', 'G'},
	})
	if err != nil {
		t.Fatalf("UploadAttachment err: %v", err)
	}
	if att.FileSize != 4 || !strings.HasSuffix(att.File, "/scan.png") {
		t.Fatalf("attachment ack = %+v", att)
	}

	// The uploader receives the canonical record over push as well.
	ev := waitFor(t, docEvents, func(ev chat.AttachmentEvent) bool { return ev.MessageID == echo.Message.ID })
	if ev.Attachment.FileType != "image/png" {
		t.Fatalf("pushed attachment = %+v", ev.Attachment)
	}

	msgs, err := doctor.FetchMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("FetchMessages err: %v", err)
	}
	if len(msgs[0].Attachments) != 1 {
		t.Fatalf("history attachments = %+v", msgs[0].Attachments)
	}
}

func TestUnknownTokenRejected(t *testing.T) {
	h := newHarness(t)

	if _, err := h.client("nobody").FetchInbox(context.Background()); err == nil {
		t.Fatal("expected an auth error")
	}
	if _, err := h.channel("nobody").Subscribe(context.Background(), "conv-x", func(chat.Event) {}, nil); err == nil {
		t.Fatal("expected the websocket dial to be refused")
	}
}
