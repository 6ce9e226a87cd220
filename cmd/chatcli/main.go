// Command chatcli is a terminal rendering collaborator for the widget: it
// draws the inbox, the contact picker and the open conversation, and feeds
// user input back into the synchronization core. Attach files with
// "/attach <path>" before pressing enter.
package main

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/luis-byt/aware-chat/internal/config"
	"github.com/luis-byt/aware-chat/internal/model/chat"
	"github.com/luis-byt/aware-chat/internal/service/upload"
	"github.com/luis-byt/aware-chat/internal/widget"
	"github.com/luis-byt/aware-chat/pkg/preview"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0d6efd")).Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	badgeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	mineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	otherStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0d6efd"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).Italic(true)
)

type viewState int

const (
	viewInbox viewState = iota
	viewContacts
	viewConversation
)

// Messages pumped from widget notifications into the tea loop.

type messagesMsg []chat.Message
type typingMsg bool
type presenceMsg bool
type unreadMsg int
type uploadSettledMsg upload.Result
type inboxLoadedMsg struct {
	conversations []chat.Conversation
	err           error
}
type contactsLoadedMsg struct {
	contacts []chat.Contact
	err      error
}
type conversationOpenedMsg struct {
	id  string
	err error
}
type typingExpiredMsg struct{}

type model struct {
	w      *widget.Widget
	cfg    config.ClientConfig
	events chan tea.Msg

	view          viewState
	conversations []chat.Conversation
	selected      int
	contacts      []chat.Contact
	openConvTitle string

	messages    []chat.Message
	peerTyping  bool
	peerOnline  bool
	unreadTotal int
	pending     []chat.PendingFile

	input    textinput.Model
	history  viewport.Model
	width    int
	height   int
	errText  string
	typingAt time.Time
}

func initialModel(w *widget.Widget, cfg config.ClientConfig, events chan tea.Msg) model {
	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.CharLimit = 1000

	return model{
		w:       w,
		cfg:     cfg,
		events:  events,
		view:    viewInbox,
		input:   input,
		history: viewport.New(80, 20),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadInbox(), m.waitForEvent())
}

func (m model) waitForEvent() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}

func (m model) loadInbox() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		conversations, err := m.w.OpenInbox(ctx)
		return inboxLoadedMsg{conversations: conversations, err: err}
	}
}

func (m model) loadContacts() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		contacts, err := m.w.Contacts(ctx)
		return contactsLoadedMsg{contacts: contacts, err: err}
	}
}

func (m model) openConversation(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := m.w.OpenConversation(ctx, id)
		return conversationOpenedMsg{id: id, err: err}
	}
}

func (m model) startConversation(contact chat.Contact) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		conv, err := m.w.StartConversation(ctx, contact)
		return conversationOpenedMsg{id: conv.ID, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.history.Width = msg.Width
		m.history.Height = msg.Height - 6
		return m, nil

	case inboxLoadedMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.conversations = msg.conversations
		if m.selected >= len(m.conversations) {
			m.selected = 0
		}
		return m, nil

	case contactsLoadedMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.contacts = msg.contacts
		m.selected = 0
		return m, nil

	case conversationOpenedMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
			m.view = viewInbox
			return m, nil
		}
		m.errText = ""
		m.view = viewConversation
		m.peerTyping = false
		m.peerOnline = false
		m.pending = nil
		m.input.Focus()
		return m, textinput.Blink

	case messagesMsg:
		m.messages = msg
		m.history.SetContent(m.renderMessages())
		m.history.GotoBottom()
		return m, m.waitForEvent()

	case typingMsg:
		m.peerTyping = bool(msg)
		return m, m.waitForEvent()

	case presenceMsg:
		m.peerOnline = bool(msg)
		return m, m.waitForEvent()

	case unreadMsg:
		m.unreadTotal = int(msg)
		return m, m.waitForEvent()

	case uploadSettledMsg:
		result := upload.Result(msg)
		if !result.OK() {
			m.errText = fmt.Sprintf("%d attachment(s) failed to upload", len(result.Failed))
		}
		return m, m.waitForEvent()

	case typingExpiredMsg:
		if !m.typingAt.IsZero() && time.Since(m.typingAt) >= time.Second {
			m.typingAt = time.Time{}
			_ = m.w.SendTyping(false)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case viewInbox:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.conversations)-1 {
				m.selected++
			}
		case "n":
			m.view = viewContacts
			return m, m.loadContacts()
		case "r":
			return m, m.loadInbox()
		case "enter":
			if len(m.conversations) > 0 {
				conv := m.conversations[m.selected]
				m.openConvTitle = conv.Peer(m.cfg.UserID).FullName
				return m, m.openConversation(conv.ID)
			}
		}
		return m, nil

	case viewContacts:
		switch msg.String() {
		case "esc", "q":
			m.view = viewInbox
			return m, m.loadInbox()
		case "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.contacts)-1 {
				m.selected++
			}
		case "enter":
			if len(m.contacts) > 0 {
				contact := m.contacts[m.selected]
				m.openConvTitle = contact.Name
				return m, m.startConversation(contact)
			}
		}
		return m, nil

	default: // viewConversation
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			m.w.CloseConversation()
			m.view = viewInbox
			m.messages = nil
			m.input.Reset()
			return m, m.loadInbox()
		case "enter":
			return m.submit()
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			// Publish the typing level, emitter-owned 1s debounce.
			if m.typingAt.IsZero() {
				_ = m.w.SendTyping(true)
			}
			m.typingAt = time.Now()
			expire := tea.Tick(time.Second, func(time.Time) tea.Msg { return typingExpiredMsg{} })
			return m, tea.Batch(cmd, expire)
		}
	}
}

func (m model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())

	if path, ok := strings.CutPrefix(text, "/attach "); ok {
		file, err := readPendingFile(strings.TrimSpace(path))
		if err != nil {
			m.errText = err.Error()
			return m, nil
		}
		m.pending = append(m.pending, file)
		m.errText = ""
		m.input.Reset()
		return m, nil
	}

	if err := m.w.Send(text, m.pending); err != nil {
		m.errText = err.Error()
		return m, nil
	}
	m.errText = ""
	m.pending = nil
	m.input.Reset()
	return m, nil
}

func readPendingFile(path string) (chat.PendingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.PendingFile{}, fmt.Errorf("attach: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	return chat.PendingFile{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (m model) View() string {
	switch m.view {
	case viewInbox:
		return m.viewInbox()
	case viewContacts:
		return m.viewContacts()
	default:
		return m.viewConversation()
	}
}

func (m model) viewInbox() string {
	var b strings.Builder
	title := "Messages"
	if m.unreadTotal > 0 {
		title += " " + badgeStyle.Render(fmt.Sprintf("(%d)", m.unreadTotal))
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	if len(m.conversations) == 0 {
		b.WriteString(mutedStyle.Render("No conversations") + "\n")
	}
	for i, conv := range m.conversations {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		line := cursor + conv.Peer(m.cfg.UserID).FullName
		if conv.UnreadCount > 0 {
			line += " " + badgeStyle.Render(fmt.Sprintf("[%d]", conv.UnreadCount))
		}
		var when string
		if conv.LastMessage != nil {
			when = preview.InboxDate(conv.LastMessage.CreatedAt, time.Now())
		}
		b.WriteString(line + "  " + mutedStyle.Render(when) + "\n")
		b.WriteString("    " + mutedStyle.Render(preview.LastMessage(conv.LastMessage)) + "\n")
	}

	if m.errText != "" {
		b.WriteString("\n" + errStyle.Render(m.errText) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("enter open · n new · r refresh · q quit"))
	return b.String()
}

func (m model) viewContacts() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("New conversation") + "\n\n")

	if len(m.contacts) == 0 {
		b.WriteString(mutedStyle.Render("No contacts available") + "\n")
	}
	for i, contact := range m.contacts {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		b.WriteString(cursor + contact.Name + " " + mutedStyle.Render(string(contact.Role)) + "\n")
	}

	if m.errText != "" {
		b.WriteString("\n" + errStyle.Render(m.errText) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render("enter start · esc back"))
	return b.String()
}

func (m model) viewConversation() string {
	var b strings.Builder

	status := mutedStyle.Render("offline")
	if m.peerOnline {
		status = mineStyle.Render("online")
	}
	b.WriteString(titleStyle.Render(m.openConvTitle) + " " + status + "\n")
	if m.peerTyping {
		b.WriteString(mutedStyle.Render("typing…") + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString(m.history.View() + "\n")

	if len(m.pending) > 0 {
		names := make([]string, len(m.pending))
		for i, f := range m.pending {
			names[i] = f.Name
		}
		b.WriteString(mutedStyle.Render("attachments: "+strings.Join(names, ", ")) + "\n")
	}
	if m.errText != "" {
		b.WriteString(errStyle.Render(m.errText) + "\n")
	}
	b.WriteString(m.input.View() + "\n")
	b.WriteString(helpStyle.Render("enter send · /attach <path> · esc back"))
	return b.String()
}

func (m model) renderMessages() string {
	var b strings.Builder
	for _, msg := range m.messages {
		style := otherStyle
		check := ""
		if msg.Sender == m.cfg.UserID {
			style = mineStyle
			check = " ✓"
			if msg.Status == chat.StatusRead {
				check = " ✓✓"
			}
		}
		when := msg.CreatedAt.Local().Format("15:04")
		b.WriteString(style.Render(msg.Text) + mutedStyle.Render(" "+when+check) + "\n")
		for _, att := range msg.Attachments {
			kind := "file"
			if att.IsImage() {
				kind = "image"
			}
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  [%s] %s (%d KB)", kind, att.FileName(), att.FileSize/1024)) + "\n")
		}
	}
	return b.String()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.Client.Token == "" || cfg.Client.UserID == "" {
		log.Fatal("CHAT_TOKEN and CHAT_USER_ID must be set")
	}

	events := make(chan tea.Msg, 64)
	notify := widget.Notifications{
		OnMessages:      func(ms []chat.Message) { events <- messagesMsg(ms) },
		OnTyping:        func(v bool) { events <- typingMsg(v) },
		OnPresence:      func(v bool) { events <- presenceMsg(v) },
		OnUnreadTotal:   func(total int) { events <- unreadMsg(total) },
		OnUploadSettled: func(r upload.Result) { events <- uploadSettledMsg(r) },
	}
	w := widget.New(cfg.Client, notify)

	p := tea.NewProgram(initialModel(w, cfg.Client, events), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("ui error: %v", err)
	}
}
