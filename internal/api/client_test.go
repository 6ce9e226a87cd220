package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luis-byt/aware-chat/internal/api"
	"github.com/luis-byt/aware-chat/internal/model/chat"
)

func TestFetchInboxSendsAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/inbox" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "JWT token-1" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode([]chat.Conversation{{ID: "c1", UnreadCount: 2}})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "token-1")
	conversations, err := client.FetchInbox(context.Background())
	if err != nil {
		t.Fatalf("FetchInbox err: %v", err)
	}
	if len(conversations) != 1 || conversations[0].ID != "c1" {
		t.Fatalf("unexpected inbox: %+v", conversations)
	}
}

func TestCreateConversationPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat/conversations" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if payload["contact_id"] != "doc-1" || payload["contact_role"] != "doctor" {
			t.Errorf("payload = %v", payload)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(chat.Conversation{ID: "c9"})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "token-1")
	conv, err := client.CreateConversation(context.Background(), "doc-1", chat.RoleDoctor)
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}
	if conv.ID != "c9" {
		t.Fatalf("conversation id = %q", conv.ID)
	}
}

func TestFetchMessagesPreservesServerOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/conversations/c1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]chat.Message{{ID: "b"}, {ID: "a"}})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "token-1")
	msgs, err := client.FetchMessages(context.Background(), "c1")
	if err != nil {
		t.Fatalf("FetchMessages err: %v", err)
	}
	if msgs[0].ID != "b" || msgs[1].ID != "a" {
		t.Fatalf("order changed: %+v", msgs)
	}
}

func TestUploadAttachmentMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/messages/m1/attachments" {
			t.Errorf("path = %q", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "scan.png" {
			t.Errorf("filename = %q", header.Filename)
		}
		if got := header.Header.Get("Content-Type"); got != "image/png" {
			t.Errorf("part content type = %q", got)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "pixels" {
			t.Errorf("body = %q", data)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(chat.Attachment{ID: "a1", MessageID: "m1"})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "token-1")
	file := chat.PendingFile{Name: "scan.png", ContentType: "image/png", Data: []byte("pixels")}
	att, err := client.UploadAttachment(context.Background(), "m1", file)
	if err != nil {
		t.Fatalf("UploadAttachment err: %v", err)
	}
	if att.ID != "a1" {
		t.Fatalf("attachment id = %q", att.ID)
	}
}

func TestErrorStatusSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "bad")
	if _, err := client.FetchInbox(context.Background()); err == nil {
		t.Fatal("expected error for 401 response")
	}
}
