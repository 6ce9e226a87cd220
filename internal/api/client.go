// Package api implements the REST side of the chat backend: the one-shot
// history fetches and the attachment upload call. Live updates arrive over
// the push channel instead (see internal/push).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/luis-byt/aware-chat/internal/model/chat"
)

// Client talks to the chat REST endpoints with JWT bearer auth.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient builds a REST client for the given base URL and token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchInbox returns the conversation summary list for the local user.
func (c *Client) FetchInbox(ctx context.Context) ([]chat.Conversation, error) {
	var out []chat.Conversation
	if err := c.getJSON(ctx, "/api/chat/inbox", &out); err != nil {
		return nil, fmt.Errorf("fetch inbox: %w", err)
	}
	return out, nil
}

// FetchContacts returns the users the local user may start a conversation with.
func (c *Client) FetchContacts(ctx context.Context) ([]chat.Contact, error) {
	var out []chat.Contact
	if err := c.getJSON(ctx, "/api/chat/contacts", &out); err != nil {
		return nil, fmt.Errorf("fetch contacts: %w", err)
	}
	return out, nil
}

// CreateConversation opens (or returns the existing) thread with a contact.
func (c *Client) CreateConversation(ctx context.Context, contactID string, role chat.Role) (chat.Conversation, error) {
	payload := map[string]string{
		"contact_id":   contactID,
		"contact_role": string(role),
	}

	var out chat.Conversation
	if err := c.postJSON(ctx, "/api/chat/conversations", payload, &out); err != nil {
		return chat.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return out, nil
}

// FetchMessages returns the full history of one conversation in server
// order. Callers must not re-sort it.
func (c *Client) FetchMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var out []chat.Message
	path := fmt.Sprintf("/api/chat/conversations/%s/messages", conversationID)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return out, nil
}

// UploadAttachment posts one pending file against a confirmed message id.
// The returned record is informational only: the canonical attachment
// arrives later as a push event.
func (c *Client) UploadAttachment(ctx context.Context, messageID string, file chat.PendingFile) (chat.Attachment, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := form.CreatePart(header)
	if err != nil {
		return chat.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return chat.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}
	if err := form.Close(); err != nil {
		return chat.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}

	path := fmt.Sprintf("/api/chat/messages/%s/attachments", messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return chat.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "JWT "+c.token)

	var out chat.Attachment
	if err := c.do(req, &out); err != nil {
		return chat.Attachment{}, fmt.Errorf("upload attachment: %w", err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "JWT "+c.token)
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "JWT "+c.token)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
