package stub

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/luis-byt/aware-chat/internal/model/chat"
)

// Server exposes the stub backend over HTTP and websocket.
type Server struct {
	store    *Store
	hub      *hub
	upgrader websocket.Upgrader
}

// NewServer builds a stub server around the given store.
func NewServer(store *Store) *Server {
	return &Server{
		store: store,
		hub:   newHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router wires the REST endpoints and the push endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/chat", func(api chi.Router) {
		api.Get("/inbox", s.handleInbox)
		api.Get("/contacts", s.handleContacts)
		api.Post("/conversations", s.handleCreateConversation)
		api.Get("/conversations/{conversationID}/messages", s.handleMessages)
		api.Post("/messages/{messageID}/attachments", s.handleUploadAttachment)
	})

	r.Get("/ws/chat/{conversationID}/", s.handleSubscribe)
	return r
}

// authUser resolves the request's bearer token. The stub treats the token
// itself as the user id.
func (s *Server) authUser(r *http.Request) (User, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "JWT ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return s.store.User(strings.TrimSpace(token))
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authUser(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unknown token")
		return
	}
	respondJSON(w, http.StatusOK, s.store.Inbox(user.ID))
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authUser(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unknown token")
		return
	}
	respondJSON(w, http.StatusOK, s.store.Contacts(user.ID))
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authUser(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unknown token")
		return
	}

	var payload struct {
		ContactID   string    `json:"contact_id"`
		ContactRole chat.Role `json:"contact_role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ContactID == "" {
		respondError(w, http.StatusBadRequest, "contact_id is required")
		return
	}

	conv, err := s.store.CreateConversation(user.ID, payload.ContactID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authUser(r); !ok {
		respondError(w, http.StatusUnauthorized, "unknown token")
		return
	}

	msgs, err := s.store.Messages(chi.URLParam(r, "conversationID"))
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authUser(r); !ok {
		respondError(w, http.StatusUnauthorized, "unknown token")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	messageID := chi.URLParam(r, "messageID")
	att, conversationID, err := s.store.AddAttachment(messageID, header.Filename, contentType, size)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	// The upload response is informational; the canonical record goes out
	// as a push event, to every subscriber including the uploader.
	s.hub.broadcast(conversationID, map[string]any{
		"type":       chat.EventAttachment,
		"message_id": messageID,
		"attachment": att,
	}, nil)

	respondJSON(w, http.StatusCreated, att)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authUser(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "unknown token")
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	if _, ok := s.store.Conversation(conversationID); !ok {
		respondError(w, http.StatusNotFound, "conversation not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[stub] upgrade failed: %v", err)
		return
	}

	sub := &subscriber{
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: user.ID,
		role:   user.Role,
		convID: conversationID,
	}
	s.hub.register(sub)
	go sub.writePump()

	s.hub.broadcast(conversationID, map[string]any{
		"type":      chat.EventPresence,
		"user_id":   user.ID,
		"is_online": true,
	}, nil)

	s.readPump(sub)
}

func (s *Server) readPump(sub *subscriber) {
	defer func() {
		s.hub.unregister(sub)
		sub.conn.Close()
		s.hub.broadcast(sub.convID, map[string]any{
			"type":      chat.EventPresence,
			"user_id":   sub.userID,
			"is_online": false,
		}, nil)
	}()

	for {
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			IsTyping bool   `json:"is_typing"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("[stub] drop malformed frame: %v", err)
			continue
		}

		switch frame.Type {
		case chat.EventMessage:
			reading := s.hub.hasReader(sub.convID, sub.userID)
			msg, err := s.store.AppendMessage(sub.convID, sub.userID, frame.Text, reading)
			if err != nil {
				log.Printf("[stub] append message: %v", err)
				continue
			}
			// Everyone gets the event, sender included: the echo is the
			// send confirmation.
			s.hub.broadcast(sub.convID, map[string]any{
				"type":    chat.EventMessage,
				"message": msg,
			}, nil)

		case chat.EventTyping:
			s.hub.broadcast(sub.convID, map[string]any{
				"type":        chat.EventTyping,
				"sender_role": sub.role,
				"is_typing":   frame.IsTyping,
			}, nil)

		case chat.EventRead:
			s.store.MarkRead(sub.convID, sub.userID)
			s.hub.broadcast(sub.convID, map[string]any{
				"type": chat.EventRead,
			}, sub)

		default:
			log.Printf("[stub] drop unknown frame type %q", frame.Type)
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[stub] encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
